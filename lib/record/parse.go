// Copyright 2026 The Depsync Authors
// SPDX-License-Identifier: Apache-2.0

package record

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Declaration is the parsed dependency section of one item body.
type Declaration struct {
	// Dependencies lists the declared edges in declaration order.
	// Duplicate references to the same item are preserved here; the
	// graph builder collapses them.
	Dependencies []Dependency

	// Metadata holds the "key: value" lines from the section. Keys
	// are lowercased; values keep their original form.
	Metadata map[string]string
}

// ParseError reports a malformed dependency declaration in an item
// body. The reconciler skips items with parse errors and surfaces them
// for operator attention — they are a data problem, not a transient
// failure, so they are never retried automatically.
type ParseError struct {
	// Line is the 1-based line number of the offending line within
	// the body.
	Line int

	// Text is the offending line, trimmed.
	Text string

	// Reason describes what was wrong.
	Reason string
}

func (err *ParseError) Error() string {
	return fmt.Sprintf("record: line %d: %s: %q", err.Line, err.Reason, err.Text)
}

// dependencyHeading matches the section heading that opens the
// dependency block, at any markdown heading level.
var dependencyHeading = regexp.MustCompile(`(?i)^#{1,6}\s+dependencies\s*$`)

// checkboxEntry matches a well-formed task-list dependency entry:
// "- [ ] #12" or "- [x] #34", with an optional trailing comment after
// the reference.
var checkboxEntry = regexp.MustCompile(`^[-*]\s+\[([ xX])\]\s+#(\d+)\s*(\S.*)?$`)

// metadataLine matches a "key: value" line inside the section.
var metadataLine = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9_-]*)\s*:\s*(.+)$`)

// Parse extracts the dependency declaration from an item body. Bodies
// without a dependency section yield an empty Declaration and no
// error — most items have no dependencies.
//
// Inside the section, every task-list line ("- [..] ...") must be a
// well-formed item reference; anything else under a checkbox marker is
// a *ParseError. Prose lines are ignored. The section ends at the next
// markdown heading.
func Parse(body string) (Declaration, error) {
	declaration := Declaration{}

	lines := strings.Split(body, "\n")
	inSection := false
	for i, raw := range lines {
		line := strings.TrimSpace(raw)

		if dependencyHeading.MatchString(line) {
			inSection = true
			continue
		}
		if !inSection {
			continue
		}
		if strings.HasPrefix(line, "#") {
			// Next heading closes the section. Later sections with the
			// same heading reopen it, which the loop handles naturally.
			inSection = dependencyHeading.MatchString(line)
			continue
		}
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "- [") || strings.HasPrefix(line, "* [") {
			match := checkboxEntry.FindStringSubmatch(line)
			if match == nil {
				return Declaration{}, &ParseError{
					Line:   i + 1,
					Text:   line,
					Reason: "malformed dependency entry (want \"- [ ] #<number>\")",
				}
			}
			number, err := strconv.ParseInt(match[2], 10, 64)
			if err != nil || number <= 0 {
				return Declaration{}, &ParseError{
					Line:   i + 1,
					Text:   line,
					Reason: "invalid item reference",
				}
			}
			declaration.Dependencies = append(declaration.Dependencies, Dependency{
				On:        ItemID(number),
				Completed: match[1] != " ",
			})
			continue
		}

		if match := metadataLine.FindStringSubmatch(line); match != nil {
			if declaration.Metadata == nil {
				declaration.Metadata = make(map[string]string)
			}
			declaration.Metadata[strings.ToLower(match[1])] = strings.TrimSpace(match[2])
		}
		// Anything else is prose; ignore it.
	}

	return declaration, nil
}

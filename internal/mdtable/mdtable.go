// Package mdtable extracts the markdown table a model reply is expected to
// contain and returns it as ordered rows of cell strings.
//
// The models are instructed to emit nothing but the table, but the parser
// tolerates preamble and postamble around it: scanning starts at the first
// header/separator pair and stops at the first line without a cell delimiter.
package mdtable

import (
	"errors"
	"regexp"
	"strings"
)

// ErrNoTable is returned when no header/separator pair is found, or when a
// located header is followed by zero data rows.
var ErrNoTable = errors.New("no markdown table found in response")

const delimiter = "|"

// softBreakRe matches inline HTML line-break markup models sometimes emit
// inside cells instead of a real newline.
var softBreakRe = regexp.MustCompile(`(?i)<br\s*/?>`)

// Parse returns the table rows from a raw model reply. The first row is the
// header; every following row is a data row. Soft breaks and literal "\n"
// markers inside a cell are collapsed to spaces so they are never mistaken for
// a row boundary, while real newlines keep separating rows.
func Parse(raw string) ([][]string, error) {
	lines := strings.Split(normalize(raw), "\n")

	var rows [][]string
	for i := 0; i+1 < len(lines); i++ {
		header := strings.TrimSpace(lines[i])
		separator := strings.TrimSpace(lines[i+1])
		if !isHeader(header, separator) {
			continue
		}

		rows = append(rows, splitRow(header))
		for _, line := range lines[i+2:] {
			line = strings.TrimSpace(line)
			if !strings.Contains(line, delimiter) {
				// Table content has ended; anything after is ignored.
				break
			}
			rows = append(rows, splitRow(line))
		}
		break
	}

	// A lone header with no data rows is as useless as no table at all.
	if len(rows) < 2 {
		return nil, ErrNoTable
	}
	return rows, nil
}

// normalize collapses soft-break markup and literal backslash-n markers into
// spaces, preserving real newlines as the only row boundaries.
func normalize(raw string) string {
	s := softBreakRe.ReplaceAllString(raw, " ")
	s = strings.ReplaceAll(s, `\n`, " ")
	return strings.TrimSpace(s)
}

// isHeader reports whether line looks like a table header given the line that
// follows it: both contain the delimiter and the follower carries the
// markdown separator dashes.
func isHeader(line, next string) bool {
	return strings.Contains(line, delimiter) &&
		strings.Contains(next, delimiter) &&
		strings.Contains(next, "---")
}

// splitRow splits a table line into trimmed cells. Leading and trailing
// delimiters are stripped first so they never produce empty edge cells.
func splitRow(line string) []string {
	line = strings.TrimSpace(line)
	line = strings.Trim(line, delimiter)
	parts := strings.Split(line, delimiter)
	cells := make([]string, len(parts))
	for i, p := range parts {
		cells[i] = strings.TrimSpace(p)
	}
	return cells
}

// Package hunk parses unified-diff patch text into structured hunks.
package hunk

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Sumatoshi-tech/repairharvest/pkg/textutil"
)

// LineKind classifies a hunk body line by its leading marker.
type LineKind int

const (
	// Context is an unchanged line (or anything without a +/- marker).
	Context LineKind = iota
	// Added is a line present only in the new file.
	Added
	// Removed is a line present only in the old file.
	Removed
)

// String returns the lowercase name of the kind.
func (k LineKind) String() string {
	switch k {
	case Added:
		return "added"
	case Removed:
		return "removed"
	default:
		return "context"
	}
}

// Line is a single tagged body line. Text excludes the marker character.
type Line struct {
	Kind LineKind
	Text string
}

// Hunk is one "@@ -a,b +c,d @@" section of a patch.
type Hunk struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int
	Lines    []Line
}

// OldEnd returns the last 1-based line of the hunk's original range.
// For pure insertions (OldLines == 0) it is OldStart-1.
func (h Hunk) OldEnd() int {
	return h.OldStart + h.OldLines - 1
}

// Added returns the text of every added line in order.
func (h Hunk) Added() []string {
	var added []string

	for _, line := range h.Lines {
		if line.Kind == Added {
			added = append(added, line.Text)
		}
	}

	return added
}

const (
	headerPrefix = "@@ "
	fileMarker   = "+++"

	// omittedLength is the hunk length implied when the header omits it.
	omittedLength = 1
)

var headerRE = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// Parse returns the hunks of a single-file patch in document order.
// Text without any valid header yields nil; malformed input is never an error.
func Parse(patch string) []Hunk {
	lines := textutil.SplitLines(patch)

	var hunks []Hunk

	for i := 0; i < len(lines); {
		h, ok := parseHeader(lines[i])
		i++

		if !ok {
			continue
		}

		for i < len(lines) && !strings.HasPrefix(lines[i], headerPrefix) {
			h.Lines = append(h.Lines, classify(lines[i]))
			i++
		}

		hunks = append(hunks, h)
	}

	return hunks
}

func parseHeader(line string) (Hunk, bool) {
	m := headerRE.FindStringSubmatch(line)
	if m == nil {
		return Hunk{}, false
	}

	oldStart, oldErr := strconv.Atoi(m[1])
	newStart, newErr := strconv.Atoi(m[3])

	if oldErr != nil || newErr != nil {
		return Hunk{}, false
	}

	oldLines, ok := parseLength(m[2])
	if !ok {
		return Hunk{}, false
	}

	newLines, ok := parseLength(m[4])
	if !ok {
		return Hunk{}, false
	}

	return Hunk{
		OldStart: oldStart,
		OldLines: oldLines,
		NewStart: newStart,
		NewLines: newLines,
	}, true
}

func parseLength(raw string) (int, bool) {
	if raw == "" {
		return omittedLength, true
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}

	return n, true
}

func classify(raw string) Line {
	switch {
	case strings.HasPrefix(raw, fileMarker):
		return Line{Kind: Context, Text: raw}
	case strings.HasPrefix(raw, "+"):
		return Line{Kind: Added, Text: raw[1:]}
	case strings.HasPrefix(raw, "-"):
		return Line{Kind: Removed, Text: raw[1:]}
	case strings.HasPrefix(raw, " "):
		return Line{Kind: Context, Text: raw[1:]}
	default:
		return Line{Kind: Context, Text: raw}
	}
}

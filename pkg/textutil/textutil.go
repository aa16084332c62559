// Package textutil provides text utilities shared by the harvesting stages:
// binary detection, line splitting and single-line flattening.
package textutil

import (
	"bytes"
	"strings"
)

// BinarySniffLength is the maximum number of bytes scanned for null-byte
// detection. Matches the heuristic used by Git and most editors.
const BinarySniffLength = 8000

// IsBinary returns true if data contains a null byte within the first
// BinarySniffLength bytes. Empty data is not binary.
func IsBinary(data []byte) bool {
	if len(data) == 0 {
		return false
	}

	sniff := data
	if len(sniff) > BinarySniffLength {
		sniff = sniff[:BinarySniffLength]
	}

	return bytes.IndexByte(sniff, 0) >= 0
}

// SplitLines splits text into lines on "\n", "\r\n" and "\r", dropping the
// terminators. A trailing terminator does not produce an empty last line and
// empty text yields no lines. Form feed, vertical tab and Unicode separators
// stay inside the line so numbering matches git.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}

	lines := make([]string, 0, strings.Count(text, "\n")+1)
	start := 0

	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\n':
			lines = append(lines, text[start:i])
			start = i + 1
		case '\r':
			lines = append(lines, text[start:i])

			if i+1 < len(text) && text[i+1] == '\n' {
				i++
			}

			start = i + 1
		}
	}

	if start < len(text) {
		lines = append(lines, text[start:])
	}

	return lines
}

// Flatten replaces every line terminator with a single space so the text
// fits in one CSV cell line.
func Flatten(text string) string {
	text = strings.ReplaceAll(text, "\r\n", " ")
	text = strings.ReplaceAll(text, "\n", " ")

	return strings.ReplaceAll(text, "\r", " ")
}

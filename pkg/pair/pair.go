// Package pair turns a parsed patch and the pre-change file text into a
// masked input / replacement output training pair.
//
// All hunks of a patch are collapsed into one envelope spanning the smallest
// original start to the largest original end. Hunks that are far apart are
// still masked as a single span; downstream consumers rely on that
// granularity, so it must not be refined here.
package pair

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Sumatoshi-tech/repairharvest/pkg/hunk"
	"github.com/Sumatoshi-tech/repairharvest/pkg/textutil"
)

// ErrNotBuildable is returned when a patch yields no usable region.
var ErrNotBuildable = errors.New("pair not buildable")

// Not-buildable reasons, wrapped by ErrNotBuildable.
var (
	ErrNoHunks       = fmt.Errorf("%w: no hunks", ErrNotBuildable)
	ErrEmptyEnvelope = fmt.Errorf("%w: empty envelope", ErrNotBuildable)
	ErrNoAddedLines  = fmt.Errorf("%w: no added lines", ErrNotBuildable)
	ErrEmptyOutput   = fmt.Errorf("%w: empty replacement", ErrNotBuildable)
)

// Output defaults. They reproduce the published dataset byte for byte.
const (
	DefaultFillToken     = "<FILL_ME>"
	DefaultCommentPrefix = "# "
	DefaultCommentMarker = "#"
)

// Options controls how the masked region is rendered.
type Options struct {
	// FillToken marks where the model must generate the replacement.
	FillToken string
	// CommentPrefix is prepended to every non-blank masked line.
	CommentPrefix string
	// CommentMarker replaces blank masked lines.
	CommentMarker string
}

// Pair is a built training pair.
type Pair struct {
	// Input is the buggy file with the envelope commented out and the fill token appended.
	Input string
	// Output is every added line of the patch, newline-joined.
	Output string
	// Start and End are the 0-based inclusive envelope bounds in the buggy file.
	Start int
	End   int
}

// Builder renders pairs with a fixed set of options.
type Builder struct {
	opts Options
}

// NewBuilder creates a builder, filling empty options with the defaults.
func NewBuilder(opts Options) *Builder {
	if opts.FillToken == "" {
		opts.FillToken = DefaultFillToken
	}

	if opts.CommentPrefix == "" {
		opts.CommentPrefix = DefaultCommentPrefix
	}

	if opts.CommentMarker == "" {
		opts.CommentMarker = DefaultCommentMarker
	}

	return &Builder{opts: opts}
}

// Build builds a pair from the buggy file text and its parsed hunks with default options.
func Build(buggy string, hunks []hunk.Hunk) (Pair, error) {
	return NewBuilder(Options{}).Build(buggy, hunks)
}

// Build masks the envelope of hunks in buggy and collects the replacement text.
// It returns an error wrapping ErrNotBuildable when no usable region exists.
func (b *Builder) Build(buggy string, hunks []hunk.Hunk) (Pair, error) {
	if len(hunks) == 0 {
		return Pair{}, ErrNoHunks
	}

	lines := textutil.SplitLines(buggy)
	start, end := envelope(hunks, len(lines))

	if start > end {
		return Pair{}, ErrEmptyEnvelope
	}

	var added []string
	for _, h := range hunks {
		added = append(added, h.Added()...)
	}

	if len(added) == 0 {
		return Pair{}, ErrNoAddedLines
	}

	output := strings.Join(added, "\n")
	if output == "" {
		return Pair{}, ErrEmptyOutput
	}

	masked := make([]string, 0, len(lines)-(end-start)+1)
	masked = append(masked, lines[:start]...)
	masked = append(masked, b.comment(lines[start:end+1]), b.opts.FillToken)
	masked = append(masked, lines[end+1:]...)

	return Pair{
		Input:  strings.Join(masked, "\n"),
		Output: output,
		Start:  start,
		End:    end,
	}, nil
}

// envelope returns the 0-based inclusive bounds covering every hunk's
// original range, clamped to a file of n lines.
func envelope(hunks []hunk.Hunk, n int) (int, int) {
	minStart := hunks[0].OldStart
	maxEnd := hunks[0].OldEnd()

	for _, h := range hunks[1:] {
		minStart = min(minStart, h.OldStart)
		maxEnd = max(maxEnd, h.OldEnd())
	}

	return max(0, minStart-1), min(n-1, maxEnd-1)
}

func (b *Builder) comment(lines []string) string {
	commented := make([]string, len(lines))

	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			commented[i] = b.opts.CommentMarker

			continue
		}

		commented[i] = b.opts.CommentPrefix + line
	}

	return strings.Join(commented, "\n")
}

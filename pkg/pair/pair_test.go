package pair

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/repairharvest/pkg/hunk"
)

func TestBuild_SingleHunk(t *testing.T) {
	t.Parallel()

	buggy := "a\nb\nc\nd\ne\n"
	hunks := hunk.Parse("@@ -2,2 +2,1 @@\n-b\n-c\n+B2\n")

	p, err := Build(buggy, hunks)
	require.NoError(t, err)

	assert.Equal(t, "B2", p.Output)
	assert.Equal(t, "a\n# b\n# c\n<FILL_ME>\nd\ne", p.Input)
	assert.Equal(t, 1, p.Start)
	assert.Equal(t, 2, p.End)
}

func TestBuild_BlankLinesUseBareMarker(t *testing.T) {
	t.Parallel()

	buggy := "x = 1\n\n   \ny = 2\n"
	hunks := []hunk.Hunk{{
		OldStart: 1, OldLines: 3, NewStart: 1, NewLines: 1,
		Lines: []hunk.Line{{Kind: hunk.Added, Text: "x = 2"}},
	}}

	p, err := Build(buggy, hunks)
	require.NoError(t, err)
	assert.Equal(t, "# x = 1\n#\n#\n<FILL_ME>\ny = 2", p.Input)
}

func TestBuild_DisjointHunksShareOneEnvelope(t *testing.T) {
	t.Parallel()

	buggy := "l1\nl2\nl3\nl4\nl5\nl6\n"
	patch := "@@ -2,1 +2,1 @@\n-l2\n+L2\n@@ -5,1 +5,1 @@\n-l5\n+L5\n"

	p, err := Build(buggy, hunk.Parse(patch))
	require.NoError(t, err)

	assert.Equal(t, "l1\n# l2\n# l3\n# l4\n# l5\n<FILL_ME>\nl6", p.Input)
	assert.Equal(t, "L2\nL5", p.Output)
}

func TestBuild_EnvelopeClampedToFileLength(t *testing.T) {
	t.Parallel()

	p, err := Build("only\n", hunk.Parse("@@ -1,10 +1,1 @@\n-only\n+fixed\n"))
	require.NoError(t, err)

	assert.Equal(t, "# only\n<FILL_ME>", p.Input)
	assert.Equal(t, 0, p.End)
}

func TestBuild_NotBuildable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		buggy string
		patch string
		want  error
	}{
		{"no hunks", "a\n", "", ErrNoHunks},
		{"pure deletion", "a\nb\nc\n", "@@ -2,1 +1,0 @@\n-b\n", ErrNoAddedLines},
		{"pure insertion", "a\nb\n", "@@ -1,0 +2,1 @@\n+new\n", ErrEmptyEnvelope},
		{"empty buggy file", "", "@@ -1,1 +1,1 @@\n-a\n+b\n", ErrEmptyEnvelope},
		{"blank replacement", "a\nb\n", "@@ -2,1 +2,1 @@\n-b\n+\n", ErrEmptyOutput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Build(tt.buggy, hunk.Parse(tt.patch))
			require.ErrorIs(t, err, tt.want)
			require.ErrorIs(t, err, ErrNotBuildable)
		})
	}
}

func TestBuilder_CustomOptions(t *testing.T) {
	t.Parallel()

	b := NewBuilder(Options{FillToken: "<MASK>", CommentPrefix: "// ", CommentMarker: "//"})

	p, err := b.Build("a\n\nc\n", hunk.Parse("@@ -1,2 +1,1 @@\n-a\n-\n+A\n"))
	require.NoError(t, err)
	assert.Equal(t, "// a\n//\n<MASK>\nc", p.Input)
}

func TestStats(t *testing.T) {
	t.Parallel()

	s := Stats("a\nb\nc\n", "a\nB\nc\nd\n")
	assert.Equal(t, 2, s.Inserted)
	assert.Equal(t, 1, s.Deleted)
	assert.Equal(t, 3, s.Changed())

	assert.Zero(t, Stats("same\n", "same\n").Changed())
}

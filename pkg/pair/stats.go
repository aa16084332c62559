package pair

import (
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// EditStats summarizes a line-level diff between two file versions.
type EditStats struct {
	Inserted int
	Deleted  int
}

// Changed returns the total number of inserted and deleted lines.
func (s EditStats) Changed() int {
	return s.Inserted + s.Deleted
}

// Stats computes line-level insertion and deletion counts from buggy to fixed.
func Stats(buggy, fixed string) EditStats {
	dmp := diffmatchpatch.New()

	// Each rune stands for one line after the line-to-rune encoding.
	src, dst, _ := dmp.DiffLinesToRunes(buggy, fixed)
	diffs := dmp.DiffMainRunes(src, dst, false)

	var stats EditStats

	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			stats.Inserted += utf8.RuneCountInString(d.Text)
		case diffmatchpatch.DiffDelete:
			stats.Deleted += utf8.RuneCountInString(d.Text)
		case diffmatchpatch.DiffEqual:
		}
	}

	return stats
}

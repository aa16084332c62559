package dataset

import (
	"errors"
	"fmt"

	"github.com/Sumatoshi-tech/repairharvest/pkg/textutil"
)

// Sink is the dataset writer paired with the seen-set.
type Sink struct {
	writer *Writer
	seen   *SeenSet
}

// Open opens the dataset and seen files, creating them if needed.
func Open(datasetPath, seenPath string) (*Sink, error) {
	seen, err := LoadSeenSet(seenPath)
	if err != nil {
		return nil, err
	}

	writer, err := OpenWriter(datasetPath)
	if err != nil {
		_ = seen.Close()

		return nil, err
	}

	return &Sink{writer: writer, seen: seen}, nil
}

// IsSeen reports whether the commit was already processed.
func (s *Sink) IsSeen(sha string) bool {
	return s.seen.Contains(sha)
}

// Append writes rec with its commit message flattened to one line, then
// marks its commit as seen. The row is durable before the SHA is recorded.
func (s *Sink) Append(rec Record) error {
	rec.CommitMessage = textutil.Flatten(rec.CommitMessage)

	err := s.writer.Write(rec)
	if err != nil {
		return err
	}

	return s.MarkSeen(rec.CommitSHA)
}

// MarkSeen records a commit that was fully examined, whether or not it produced rows.
func (s *Sink) MarkSeen(sha string) error {
	err := s.seen.Add(sha)
	if err != nil {
		return fmt.Errorf("mark seen %s: %w", sha, err)
	}

	return nil
}

// SeenCount returns the size of the seen-set.
func (s *Sink) SeenCount() int {
	return s.seen.Len()
}

// Written returns the rows appended since Open.
func (s *Sink) Written() int {
	return s.writer.Rows()
}

// Close closes both files.
func (s *Sink) Close() error {
	return errors.Join(s.writer.Close(), s.seen.Close())
}

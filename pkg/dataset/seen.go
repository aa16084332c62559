package dataset

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"
)

// SeenSet is the durable set of commit SHAs already processed.
// The file holds one SHA per line and is only ever appended to.
type SeenSet struct {
	mu   sync.Mutex
	file *os.File
	shas map[string]struct{}
}

// LoadSeenSet reads the seen file at path, creating it if absent, and keeps
// it open for appending. Blank lines and surrounding whitespace are ignored.
func LoadSeenSet(path string) (*SeenSet, error) {
	shas, err := readSeen(path)
	if err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, filePerm)
	if err != nil {
		return nil, fmt.Errorf("open seen file: %w", err)
	}

	return &SeenSet{file: file, shas: shas}, nil
}

// ReadSeenCount returns the number of distinct SHAs in the seen file at path
// without opening it for writing. A missing file counts as empty.
func ReadSeenCount(path string) (int, error) {
	shas, err := readSeen(path)
	if err != nil {
		return 0, err
	}

	return len(shas), nil
}

func readSeen(path string) (map[string]struct{}, error) {
	shas := make(map[string]struct{})

	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return shas, nil
	}

	if err != nil {
		return nil, fmt.Errorf("open seen file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		sha := strings.TrimSpace(scanner.Text())
		if sha != "" {
			shas[sha] = struct{}{}
		}
	}

	err = scanner.Err()
	if err != nil {
		return nil, fmt.Errorf("read seen file: %w", err)
	}

	return shas, nil
}

// Contains reports whether sha was already processed.
func (s *SeenSet) Contains(sha string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.shas[sha]

	return ok
}

// Add records sha durably. Adding a present SHA is a no-op.
func (s *SeenSet) Add(sha string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.shas[sha]; ok {
		return nil
	}

	_, err := s.file.WriteString(sha + "\n")
	if err != nil {
		return fmt.Errorf("append seen sha: %w", err)
	}

	err = s.file.Sync()
	if err != nil {
		return fmt.Errorf("sync seen file: %w", err)
	}

	s.shas[sha] = struct{}{}

	return nil
}

// Len returns the number of distinct SHAs.
func (s *SeenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.shas)
}

// Close closes the seen file.
func (s *SeenSet) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.file.Close()
}

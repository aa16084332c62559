package persist

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
)

// File and directory permissions for state files.
const (
	filePerm = 0o600
	dirPerm  = 0o750
)

// SaveFile encodes state and atomically replaces path with the result.
// The document is written to a temporary file in the same directory, synced,
// then renamed over path, so readers never observe a partial write.
func SaveFile(path string, codec Codec, state any) error {
	var buf bytes.Buffer

	err := codec.Encode(&buf, state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	return WriteAtomic(path, buf.Bytes())
}

// LoadFile decodes the file at path into state, which must be a pointer.
func LoadFile(path string, codec Codec, state any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read state file: %w", err)
	}

	err = codec.Decode(bytes.NewReader(data), state)
	if err != nil {
		return fmt.Errorf("decode state: %w", err)
	}

	return nil
}

// WriteAtomic writes data to path through a synced temporary file and a rename.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)

	err := os.MkdirAll(dir, dirPerm)
	if err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	tmpName := tmp.Name()

	_, writeErr := tmp.Write(data)
	if writeErr == nil {
		writeErr = tmp.Sync()
	}

	closeErr := tmp.Close()

	if writeErr != nil || closeErr != nil {
		os.Remove(tmpName)

		if writeErr != nil {
			return fmt.Errorf("write temp file: %w", writeErr)
		}

		return fmt.Errorf("close temp file: %w", closeErr)
	}

	err = os.Chmod(tmpName, filePerm)
	if err != nil {
		os.Remove(tmpName)

		return fmt.Errorf("chmod temp file: %w", err)
	}

	err = os.Rename(tmpName, path)
	if err != nil {
		os.Remove(tmpName)

		return fmt.Errorf("rename state file: %w", err)
	}

	return nil
}

// Persister handles I/O for a specific state type at a fixed path.
type Persister[T any] struct {
	path  string
	codec Codec
}

// NewPersister creates a persister for path using codec.
func NewPersister[T any](path string, codec Codec) *Persister[T] {
	return &Persister[T]{
		path:  path,
		codec: codec,
	}
}

// Path returns the file the persister reads and writes.
func (p *Persister[T]) Path() string {
	return p.path
}

// Exists reports whether the state file is present.
func (p *Persister[T]) Exists() bool {
	_, err := os.Stat(p.path)

	return err == nil
}

// Save atomically writes state.
func (p *Persister[T]) Save(state *T) error {
	return SaveFile(p.path, p.codec, state)
}

// Load reads and decodes the state file.
func (p *Persister[T]) Load() (*T, error) {
	var state T

	err := p.LoadInto(&state)
	if err != nil {
		return nil, err
	}

	return &state, nil
}

// LoadInto decodes the state file over state, keeping fields the document omits.
func (p *Persister[T]) LoadInto(state *T) error {
	return LoadFile(p.path, p.codec, state)
}

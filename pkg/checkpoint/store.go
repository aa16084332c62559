package checkpoint

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/Sumatoshi-tech/repairharvest/pkg/persist"
)

//go:embed schema.json
var stateSchema []byte

// Store loads and saves the crawl state at a fixed path.
type Store struct {
	persister *persist.Persister[CrawlState]
}

// NewStore creates a store for the checkpoint file at path.
func NewStore(path string) *Store {
	return &Store{
		persister: persist.NewPersister[CrawlState](path, persist.NewJSONCodec()),
	}
}

// Path returns the checkpoint file path.
func (s *Store) Path() string {
	return s.persister.Path()
}

// Exists reports whether a checkpoint has been written.
func (s *Store) Exists() bool {
	return s.persister.Exists()
}

// Load reads and validates the checkpoint. Fields the document omits take
// their default values; a missing file is returned as fs.ErrNotExist.
func (s *Store) Load() (CrawlState, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		return CrawlState{}, fmt.Errorf("read checkpoint: %w", err)
	}

	validateErr := validateDocument(data)
	if validateErr != nil {
		return CrawlState{}, validateErr
	}

	state := CrawlState{Page: FirstPage}

	err = s.persister.LoadInto(&state)
	if err != nil {
		return CrawlState{}, fmt.Errorf("%w: %w", ErrInvalidState, err)
	}

	err = state.Validate()
	if err != nil {
		return CrawlState{}, err
	}

	return state, nil
}

// LoadOrDefault loads the checkpoint, or creates and persists the default
// state for today when none exists yet.
func (s *Store) LoadOrDefault(today Day) (CrawlState, error) {
	state, err := s.Load()
	if err == nil {
		return state, nil
	}

	if !errors.Is(err, fs.ErrNotExist) {
		return CrawlState{}, err
	}

	state = Default(today)

	saveErr := s.Save(state)
	if saveErr != nil {
		return CrawlState{}, saveErr
	}

	return state, nil
}

// Save validates and atomically writes state.
func (s *Store) Save(state CrawlState) error {
	err := state.Validate()
	if err != nil {
		return err
	}

	err = s.persister.Save(&state)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}

	return nil
}

func validateDocument(data []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(stateSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidState, err)
	}

	if result.Valid() {
		return nil
	}

	details := make([]string, 0, len(result.Errors()))
	for _, resultErr := range result.Errors() {
		details = append(details, resultErr.String())
	}

	return fmt.Errorf("%w: %s", ErrInvalidState, strings.Join(details, "; "))
}

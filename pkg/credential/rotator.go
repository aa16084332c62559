// Package credential rotates through a pool of API access tokens.
package credential

import (
	"errors"
	"net/http"
	"sync"
)

// ErrEmptyPool is returned when a rotator is created without credentials.
var ErrEmptyPool = errors.New("credential pool is empty")

// Header values sent with every API request.
const (
	HeaderAuthorization = "Authorization"
	HeaderAccept        = "Accept"

	// AcceptCommitSearch enables the commit search preview media type.
	AcceptCommitSearch = "application/vnd.github.cloak-preview+json"

	authScheme = "token "
)

// Rotator holds an ordered credential pool and the index of the active one.
// It is safe for concurrent use.
type Rotator struct {
	mu sync.Mutex

	tokens []string
	index  int

	// sinceSuccess counts rotations since the last successful request.
	sinceSuccess int
}

// NewRotator creates a rotator starting at the first credential.
// Blank tokens are dropped; the remaining order is preserved.
func NewRotator(tokens []string) (*Rotator, error) {
	pool := make([]string, 0, len(tokens))

	for _, tok := range tokens {
		if tok != "" {
			pool = append(pool, tok)
		}
	}

	if len(pool) == 0 {
		return nil, ErrEmptyPool
	}

	return &Rotator{tokens: pool}, nil
}

// Size returns the number of credentials in the pool.
func (r *Rotator) Size() int {
	return len(r.tokens)
}

// Index returns the 0-based position of the active credential.
func (r *Rotator) Index() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.index
}

// Current returns the active credential.
func (r *Rotator) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.tokens[r.index]
}

// Active returns the index and value of the active credential together.
func (r *Rotator) Active() (int, string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.index, r.tokens[r.index]
}

// Headers returns the request headers for the active credential.
func (r *Rotator) Headers() http.Header {
	h := make(http.Header, 2)
	_, token := r.Active()
	h.Set(HeaderAuthorization, authScheme+token)
	h.Set(HeaderAccept, AcceptCommitSearch)

	return h
}

// Rotate advances to the next credential, wrapping to the first after the last.
// It reports true when every credential has been tried since the last
// successful request, i.e. the pool has been exhausted.
func (r *Rotator) Rotate() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.index = (r.index + 1) % len(r.tokens)
	r.sinceSuccess++

	if r.sinceSuccess < len(r.tokens) {
		return false
	}

	r.sinceSuccess = 0

	return true
}

// MarkSuccess resets exhaustion tracking after a request succeeded.
func (r *Rotator) MarkSuccess() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sinceSuccess = 0
}

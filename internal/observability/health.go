package observability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

const (
	healthStatusOK          = "ok"
	healthStatusUnavailable = "unavailable"
)

// ErrCoolingDown reports that every credential is rate limited and requests are paused.
var ErrCoolingDown = errors.New("all credentials rate limited")

// ReadyCheck reports nil when the collection run can make progress.
type ReadyCheck func(ctx context.Context) error

// healthBody is the JSON document served by /healthz and /readyz.
type healthBody struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// HealthHandler serves liveness at /healthz: 200 while the process runs.
func HealthHandler() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		writeHealth(rw, http.StatusOK, healthBody{Status: healthStatusOK})
	})
}

// ReadyHandler serves readiness at /readyz. The first failing check answers
// 503 with its error as the reason.
func ReadyHandler(checks ...ReadyCheck) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, hr *http.Request) {
		for _, check := range checks {
			err := check(hr.Context())
			if err != nil {
				writeHealth(rw, http.StatusServiceUnavailable, healthBody{
					Status: healthStatusUnavailable,
					Reason: err.Error(),
				})

				return
			}
		}

		writeHealth(rw, http.StatusOK, healthBody{Status: healthStatusOK})
	})
}

func writeHealth(rw http.ResponseWriter, code int, body healthBody) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(code)

	_ = json.NewEncoder(rw).Encode(body)
}

// CooldownTracker records when the credential pool is cooling down after a
// full rotation. A nil tracker is always ready.
type CooldownTracker struct {
	mu    sync.Mutex
	until time.Time
	now   func() time.Time
}

// NewCooldownTracker creates a tracker using clock, or time.Now when nil.
func NewCooldownTracker(clock func() time.Time) *CooldownTracker {
	if clock == nil {
		clock = time.Now
	}

	return &CooldownTracker{now: clock}
}

// Start marks the pool as cooling down for d.
func (ct *CooldownTracker) Start(d time.Duration) {
	if ct == nil {
		return
	}

	ct.mu.Lock()
	defer ct.mu.Unlock()

	ct.until = ct.now().Add(d)
}

// End clears the cooldown once requests resume.
func (ct *CooldownTracker) End() {
	if ct == nil {
		return
	}

	ct.mu.Lock()
	defer ct.mu.Unlock()

	ct.until = time.Time{}
}

// Until returns the end of the current cooldown, or the zero time.
func (ct *CooldownTracker) Until() time.Time {
	if ct == nil {
		return time.Time{}
	}

	ct.mu.Lock()
	defer ct.mu.Unlock()

	if !ct.until.IsZero() && !ct.now().Before(ct.until) {
		return time.Time{}
	}

	return ct.until
}

// Check is a ReadyCheck failing with ErrCoolingDown during a cooldown.
func (ct *CooldownTracker) Check(_ context.Context) error {
	until := ct.Until()
	if until.IsZero() {
		return nil
	}

	return fmt.Errorf("%w until %s", ErrCoolingDown, until.UTC().Format(time.RFC3339))
}

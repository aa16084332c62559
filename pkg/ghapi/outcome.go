package ghapi

import (
	"errors"
	"net/http"

	"github.com/google/go-github/v68/github"
)

// Outcome classifies the result of one logical request.
type Outcome int

const (
	// OK means the request succeeded and carries data.
	OK Outcome = iota
	// Empty means the server answered definitively with nothing (not found, no results).
	Empty
	// TransientFailure means the request failed and was abandoned after retries.
	TransientFailure
	// RateLimited means the active credential was throttled.
	RateLimited
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case Empty:
		return "empty"
	case TransientFailure:
		return "transient_failure"
	case RateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

const headerRateRemaining = "X-RateLimit-Remaining"

// classifyAPI maps a go-github call result to an Outcome.
func classifyAPI(resp *github.Response, err error) Outcome {
	if err == nil {
		return OK
	}

	var (
		rateErr     *github.RateLimitError
		abuseErr    *github.AbuseRateLimitError
		acceptedErr *github.AcceptedError
	)

	switch {
	case errors.As(err, &rateErr), errors.As(err, &abuseErr):
		return RateLimited
	case errors.As(err, &acceptedErr):
		return TransientFailure
	}

	if resp == nil || resp.Response == nil {
		return TransientFailure
	}

	outcome := classifyStatus(resp.StatusCode, resp.Header)
	if outcome == OK {
		// A 2xx with an error is an undecodable body.
		return TransientFailure
	}

	return outcome
}

// classifyStatus maps an HTTP status and headers to an Outcome.
func classifyStatus(status int, header http.Header) Outcome {
	switch {
	case status >= http.StatusOK && status < http.StatusMultipleChoices:
		return OK
	case status == http.StatusTooManyRequests:
		return RateLimited
	case status == http.StatusForbidden && header.Get(headerRateRemaining) == "0":
		return RateLimited
	case status == http.StatusNotFound, status == http.StatusUnprocessableEntity:
		return Empty
	default:
		return TransientFailure
	}
}

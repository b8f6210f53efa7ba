package model

import (
	"errors"
	"fmt"
	"time"
)

// FetchKind classifies a fetch failure so callers can decide whether to
// retry, back off longer, or abort the source for this run.
type FetchKind string

const (
	FetchTimeout      FetchKind = "timeout"       // deadline or net timeout; retryable
	FetchBlocked      FetchKind = "blocked"       // 403/429 or a challenge-page body; one cool-down retry
	FetchDecodeError  FetchKind = "decode_error"  // content-encoding mismatch; structural, never retried
	FetchNetworkError FetchKind = "network_error" // DNS, refused connection, reset; retryable
)

// FetchError wraps a failed HTTP retrieval with its classification.
type FetchError struct {
	Kind       FetchKind
	URL        string
	StatusCode int           // zero when no response was received
	RetryAfter time.Duration // from Retry-After header, zero if absent
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: %s (HTTP %d)", e.URL, e.Kind, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// FetchKindOf returns the classification of err, or an empty kind if err is
// not a *FetchError.
func FetchKindOf(err error) FetchKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// ErrNotFound is returned by a blob store when no value exists for a key,
// and by the snapshot store when a source has no prior snapshot.
var ErrNotFound = errors.New("not found")

// CorruptError marks stored bytes that fail to parse as any known snapshot
// structure. Distinct from ErrNotFound: callers treat it as "no usable prior
// state" but log loudly, since it may indicate tampering or a crashed writer.
type CorruptError struct {
	Key string
	Err error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("snapshot %s is corrupted: %v", e.Key, e.Err)
}

func (e *CorruptError) Unwrap() error {
	return e.Err
}

package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotReady is returned by store reads before the first successful apply.
	ErrNotReady = errors.New("market data not ready")

	// ErrStaleUpdate is returned when an update is older than the applied snapshot.
	ErrStaleUpdate = errors.New("update older than current snapshot")
)

// TransportError reports a push channel that failed to open or closed unexpectedly.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError reports a malformed payload or a payload missing required fields.
type DecodeError struct {
	Payload string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Payload, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// FetchError reports a failed pull request.
type FetchError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.Endpoint, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Endpoint, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Kind names the fetched resource by the first path segment of the endpoint,
// e.g. "price" for /price and "candles" for /candles/1h.
func (e *FetchError) Kind() string {
	kind, _, _ := strings.Cut(strings.TrimPrefix(e.Endpoint, "/"), "/")
	if kind == "" {
		return "unknown"
	}
	return kind
}

// InconsistentSnapshotError reports an update whose price and analysis batch do not form one snapshot.
type InconsistentSnapshotError struct {
	Reason string
}

func (e *InconsistentSnapshotError) Error() string {
	return "inconsistent snapshot: " + e.Reason
}

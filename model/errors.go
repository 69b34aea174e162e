package model

import (
	"errors"
	"fmt"
)

// DecodeError reports malformed feed XML or incident JSON. It is
// provider-local: the poll cycle that hit it fails for that provider
// only and recovers on the next successful poll.
type DecodeError struct {
	Provider string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Provider, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// FetchError reports a network failure or non-2xx response. Like
// DecodeError it is provider-local and non-fatal to the rest of the
// system.
type FetchError struct {
	Provider   string
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d from %s", e.Provider, e.StatusCode, e.URL)
	}
	return fmt.Sprintf("fetch %s: %v", e.Provider, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsDecodeError reports whether err is or wraps a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// IsFetchError reports whether err is or wraps a FetchError.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

package audio

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrNotPlaying        = errors.New("nothing is playing")
	ErrIndexOutOfRange   = errors.New("index out of range")
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrSessionError      = errors.New("voice session error")

	// ErrStaleTrack is returned by identity-checked queue operations when the
	// track they were issued for is no longer the current one, or the
	// session it belonged to has been reset.
	ErrStaleTrack = errors.New("track is no longer current")
)

// SourceErrorKind classifies resolver failures.
type SourceErrorKind int

const (
	SourceUnreachable SourceErrorKind = iota
	SourceNotFound
	SourceDecodeFailed
)

func (k SourceErrorKind) String() string {
	switch k {
	case SourceNotFound:
		return "not found"
	case SourceDecodeFailed:
		return "decode failed"
	default:
		return "unreachable"
	}
}

// SourceError is returned by resolvers. It matches ErrSourceUnavailable
// with errors.Is.
type SourceError struct {
	Kind    SourceErrorKind
	Locator string
	Err     error
}

func (e *SourceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("source %s: %s", e.Locator, e.Kind)
	}
	return fmt.Sprintf("source %s: %s: %v", e.Locator, e.Kind, e.Err)
}

func (e *SourceError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrSourceUnavailable}
	}
	return []error{ErrSourceUnavailable, e.Err}
}

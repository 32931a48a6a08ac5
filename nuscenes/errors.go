package nuscenes

import (
	"errors"
	"fmt"
)

// ErrInternalBug marks a violated internal invariant. Seeing it wrapped in
// a returned error means a defect in this package, not in the dataset being
// loaded; please report it.
var ErrInternalBug = errors.New("internal invariant violated")

// FileError reports a metadata file that could not be read or decoded. It
// covers both I/O failures and malformed JSON; Unwrap exposes the cause so
// callers can distinguish them with errors.Is/As.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("corrupted dataset file %s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// CorruptedError reports a dataset whose records violate a structural or
// referential invariant. The reason names the offending token(s) and the
// rule that was broken.
type CorruptedError struct {
	Reason string
}

func (e *CorruptedError) Error() string { return "corrupted dataset: " + e.Reason }

func corruptedf(format string, args ...any) error {
	return &CorruptedError{Reason: fmt.Sprintf(format, args...)}
}

// ParseError reports a token or enumeration literal that does not match
// its wire encoding.
type ParseError struct {
	Value  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse %q: %s", e.Value, e.Reason)
}

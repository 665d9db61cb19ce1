package fits

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is matched by every LookupError.
	ErrNotFound = errors.New("not found")

	// ErrFormat is returned when a byte stream is not a valid FITS file.
	ErrFormat = errors.New("invalid FITS")

	// ErrValue is returned when a header card cannot be written: keywords
	// and strings must be printable ASCII and numbers finite.
	ErrValue = errors.New("invalid FITS header value")
)

// LookupError reports a missing extension, column or header keyword.
type LookupError struct {
	Kind string // "extension", "column" or "header key"
	Name string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

// Is makes errors.Is(err, ErrNotFound) true for lookup errors.
func (e *LookupError) Is(target error) bool {
	return target == ErrNotFound
}

func formatErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrFormat, fmt.Sprintf(format, args...))
}

func valueErr(key, format string, args ...any) error {
	return fmt.Errorf("%w: keyword %s: %s", ErrValue, key, fmt.Sprintf(format, args...))
}

package migration

import "fmt"

// FormatError reports a malformed, incomplete, or out-of-range connection
// descriptor or parameter. The message always names the offending field or
// value so the caller can correct the input; it is never retried here.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return e.Reason
}

// FormatErrorf builds a FormatError from a format string.
func FormatErrorf(format string, args ...any) *FormatError {
	return &FormatError{Reason: fmt.Sprintf(format, args...)}
}

// ConnectError wraps any failure to establish a database connection -
// descriptor parsing, validation, or the driver itself. It carries the
// original descriptor so the operator gets an actionable hint, and preserves
// the originating cause for errors.Is/As.
type ConnectError struct {
	DSN string
	Err error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("failed to connect to the database: %v (is your database server running on %q?)", e.Err, e.DSN)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

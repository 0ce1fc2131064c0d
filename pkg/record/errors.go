package record

import (
	"errors"
	"fmt"
)

// ErrFormat matches any FormatError via errors.Is.
var ErrFormat = errors.New("malformed record stream")

// FormatError means a record stream cannot be reshaped unambiguously. No partial
// result accompanies it.
type FormatError struct {
	Line   int // 1-based line number, 0 when not tied to a line
	Reason string
}

func (e *FormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("record: line %d: %s", e.Line, e.Reason)
	}
	return "record: " + e.Reason
}

func (e *FormatError) Is(target error) bool { return target == ErrFormat }

func formatErr(format string, args ...interface{}) *FormatError {
	return &FormatError{Reason: fmt.Sprintf(format, args...)}
}

package validation

import "fmt"

// Error names the first field that made a payload unacceptable.
type Error struct {
	Field  string // path of the offending field, e.g. "[2].score"; empty for the whole body
	Index  int    // element index inside a batch, -1 when not in a batch
	Reason string
}

func (e *Error) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func bodyError(reason string) *Error {
	return &Error{Index: -1, Reason: reason}
}

package chunkeval

import (
	"encoding/json"
	"fmt"
)

// Exception is an error raised inside the embedded interpreter while running a
// chunk. It is the execution-failure outcome of an Evaluate call and is
// propagated to the host unmodified.
type Exception struct {
	// Type is the exception class name (e.g., "ValueError", "ImportError").
	Type string `json:"exception"`

	// Message is the exception message.
	Message string `json:"message"`

	// Traceback is the full interpreter traceback string.
	Traceback string `json:"traceback"`

	// Cause is the chained exception, if the interpreter reported one.
	Cause *Exception `json:"cause,omitempty"`
}

// Error implements the error interface.
func (e *Exception) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// String formats the exception with its traceback for display.
func (e *Exception) String() string {
	s := fmt.Sprintf("%s: %s\n%s", e.Type, e.Message, e.Traceback)
	if e.Cause != nil {
		s += "\ncaused by " + e.Cause.String()
	}
	return s
}

// Unwrap returns the chained exception so errors.As can walk the cause chain.
func (e *Exception) Unwrap() error {
	if e.Cause == nil {
		return nil
	}
	return e.Cause
}

// newExceptionFromJSON decodes an exception reported by the interpreter shim.
func newExceptionFromJSON(data []byte) (*Exception, error) {
	var ex Exception
	if err := json.Unmarshal(data, &ex); err != nil {
		return nil, err
	}
	return &ex, nil
}

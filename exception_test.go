package chunkeval

import (
	"strings"
	"testing"
)

func TestExceptionFromJSON(t *testing.T) {
	jsonData := []byte(`{
		"exception": "ValueError",
		"message": "invalid value",
		"traceback": "Traceback (most recent call last):\n  File \"<chunk>\", line 1\nValueError: invalid value"
	}`)

	ex, err := newExceptionFromJSON(jsonData)
	if err != nil {
		t.Fatalf("Failed to parse exception: %v", err)
	}

	if ex.Type != "ValueError" {
		t.Errorf("Expected exception type 'ValueError', got '%s'", ex.Type)
	}
	if ex.Message != "invalid value" {
		t.Errorf("Expected message 'invalid value', got '%s'", ex.Message)
	}
	if ex.Cause != nil {
		t.Error("Expected Cause to be nil for simple exception")
	}
}

func TestExceptionWithCause(t *testing.T) {
	jsonData := []byte(`{
		"exception": "RuntimeError",
		"message": "operation failed",
		"traceback": "Traceback (most recent call last):\nRuntimeError: operation failed",
		"cause": {
			"exception": "OSError",
			"message": "file not found",
			"traceback": "Traceback (most recent call last):\nOSError: file not found"
		}
	}`)

	ex, err := newExceptionFromJSON(jsonData)
	if err != nil {
		t.Fatalf("Failed to parse exception with cause: %v", err)
	}

	if ex.Cause == nil {
		t.Fatal("Expected Cause to be non-nil for chained exception")
	}
	if ex.Cause.Type != "OSError" {
		t.Errorf("Expected cause type 'OSError', got '%s'", ex.Cause.Type)
	}
	if ex.Unwrap() != ex.Cause {
		t.Error("Expected Unwrap to return the cause")
	}
}

func TestExceptionError(t *testing.T) {
	ex := &Exception{Type: "KeyError", Message: "'missing'"}
	if ex.Error() != "KeyError: 'missing'" {
		t.Errorf("Unexpected Error(): %s", ex.Error())
	}
}

func TestExceptionStringIncludesTraceback(t *testing.T) {
	ex := &Exception{
		Type:      "ValueError",
		Message:   "bad",
		Traceback: "Traceback line",
		Cause:     &Exception{Type: "TypeError", Message: "worse", Traceback: "inner"},
	}
	s := ex.String()
	if !strings.Contains(s, "Traceback line") {
		t.Errorf("Expected traceback in String(), got %q", s)
	}
	if !strings.Contains(s, "caused by TypeError") {
		t.Errorf("Expected cause chain in String(), got %q", s)
	}
}

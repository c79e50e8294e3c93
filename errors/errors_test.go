package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(CategoryDatabase, "TEST_CODE", "test message")

	if err.Category != CategoryDatabase {
		t.Errorf("Category = %s, want %s", err.Category, CategoryDatabase)
	}
	if err.Code != "TEST_CODE" {
		t.Errorf("Code = %s, want TEST_CODE", err.Code)
	}
	if err.Message != "test message" {
		t.Errorf("Message = %s, want 'test message'", err.Message)
	}
	if err.Cause != nil {
		t.Error("Cause should be nil for New errors")
	}
}

func TestErrorString(t *testing.T) {
	tests := []struct {
		name     string
		err      *BeatBridgeError
		expected string
	}{
		{
			name:     "error without cause",
			err:      New(CategoryRecommend, "NO_CANDIDATE", "no candidate artist"),
			expected: "[recommend:NO_CANDIDATE] no candidate artist",
		},
		{
			name:     "error with cause",
			err:      Wrap(fmt.Errorf("disk full"), CategoryDatabase, "QUERY_FAILED", "insert failed"),
			expected: "[database:QUERY_FAILED] insert failed: disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestWrapAndUnwrap(t *testing.T) {
	cause := fmt.Errorf("underlying failure")
	err := Wrap(cause, CategoryServer, "START_FAILED", "server failed")

	if err.Unwrap() != cause {
		t.Error("Unwrap should return the wrapped cause")
	}
	if !strings.Contains(err.Error(), "underlying failure") {
		t.Error("Error string should include the cause")
	}
}

func TestWithContext(t *testing.T) {
	err := New(CategoryValidation, "INVALID_INPUT", "bad input").
		WithContext("field", "userID").
		WithContext("length", 150)

	ctx := GetErrorContext(err)
	if ctx == nil {
		t.Fatal("Context should not be nil")
	}
	if ctx["field"] != "userID" {
		t.Errorf("Context field = %v, want userID", ctx["field"])
	}
	if ctx["length"] != 150 {
		t.Errorf("Context length = %v, want 150", ctx["length"])
	}
}

func TestIsCategory(t *testing.T) {
	err := ErrRunInProgress

	if !IsCategory(err, CategoryRecommend) {
		t.Error("ErrRunInProgress should be in the recommend category")
	}
	if IsCategory(err, CategoryDatabase) {
		t.Error("ErrRunInProgress should not be in the database category")
	}
	if IsCategory(fmt.Errorf("plain error"), CategoryRecommend) {
		t.Error("plain errors belong to no category")
	}
	if IsCategory(nil, CategoryRecommend) {
		t.Error("nil belongs to no category")
	}
}

func TestIsCode(t *testing.T) {
	if !IsCode(ErrNoCandidate, "NO_CANDIDATE") {
		t.Error("ErrNoCandidate should carry code NO_CANDIDATE")
	}
	if IsCode(ErrNoCandidate, "RUN_IN_PROGRESS") {
		t.Error("ErrNoCandidate should not carry code RUN_IN_PROGRESS")
	}
	if IsCode(fmt.Errorf("plain error"), "NO_CANDIDATE") {
		t.Error("plain errors carry no code")
	}
}

func TestGetErrorCode(t *testing.T) {
	if code := GetErrorCode(ErrDatabaseQuery); code != "QUERY_FAILED" {
		t.Errorf("GetErrorCode = %s, want QUERY_FAILED", code)
	}
	if code := GetErrorCode(fmt.Errorf("plain")); code != "" {
		t.Errorf("GetErrorCode of plain error = %s, want empty", code)
	}
}

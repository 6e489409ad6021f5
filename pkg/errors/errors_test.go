package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	plain := New(CodeEmptyFile, "dump contains no records")
	if got := plain.Error(); got != "[EMPTY_FILE] dump contains no records" {
		t.Errorf("Error() = %q", got)
	}

	wrapped := Wrap(CodeParseError, "record 42", errors.New("unexpected end of JSON input"))
	want := "[PARSE_ERROR] record 42: unexpected end of JSON input"
	if got := wrapped.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestWrap_Unwrap(t *testing.T) {
	cause := fs.ErrNotExist
	err := Wrap(CodeDownloadError, "fetch dumps/app_3.jsonl", cause)

	if !errors.Is(err, fs.ErrNotExist) {
		t.Error("wrapped cause should survive errors.Is")
	}
	if err.Unwrap() != cause {
		t.Error("Unwrap should return the cause")
	}
}

func TestIs_MatchesByCode(t *testing.T) {
	a := Wrap(CodeAnalysisError, "flamegraph build", errors.New("no snapshots"))
	b := New(CodeAnalysisError, "")

	if !errors.Is(a, b) {
		t.Error("AppErrors with equal codes should match")
	}
	if errors.Is(a, New(CodeUploadError, "")) {
		t.Error("different codes must not match")
	}
	if errors.Is(a, errors.New("plain")) {
		t.Error("plain errors must not match an AppError")
	}
}

func TestGetErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"direct", New(CodeConfigError, "missing storage section"), CodeConfigError},
		{"wrapped once", Wrap(CodeDatabaseError, "save snapshot", errors.New("connection refused")), CodeDatabaseError},
		{"wrapped in fmt", fmt.Errorf("analyze: %w", New(CodeInvalidInput, "no input")), CodeInvalidInput},
		{"plain", errors.New("boom"), CodeUnknown},
		{"nil", nil, CodeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetErrorCode(tt.err); got != tt.want {
				t.Errorf("GetErrorCode = %q, want %q", got, tt.want)
			}
		})
	}
}

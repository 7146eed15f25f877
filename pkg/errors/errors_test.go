package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeInvalidConfiguration, "group width: %d", 0)

	if err.Code != ErrCodeInvalidConfiguration {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeInvalidConfiguration)
	}

	if err.Message != "group width: 0" {
		t.Errorf("Message = %v, want %v", err.Message, "group width: 0")
	}

	expected := "INVALID_CONFIGURATION: group width: 0"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("exit status 1")
	err := Wrap(ErrCodeQuantizationFailed, cause, "magick 3.bmp")

	if err.Code != ErrCodeQuantizationFailed {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeQuantizationFailed)
	}

	if err.Cause != cause {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}

	unwrapped := errors.Unwrap(err)
	if unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}

	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}

	expected := "QUANTIZATION_FAILED: magick 3.bmp: exit status 1"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     Code
		expected bool
	}{
		{
			name:     "matching code",
			err:      New(ErrCodeRenderFailure, "test"),
			code:     ErrCodeRenderFailure,
			expected: true,
		},
		{
			name:     "non-matching code",
			err:      New(ErrCodeRenderFailure, "test"),
			code:     ErrCodePageBreak,
			expected: false,
		},
		{
			name:     "wrapped error",
			err:      Wrap(ErrCodeRenderFailure, New(ErrCodeFileNotFound, "inner"), "outer"),
			code:     ErrCodeRenderFailure,
			expected: true,
		},
		{
			name:     "fmt wrapped",
			err:      fmt.Errorf("measures 1-2: %w", New(ErrCodeQuantizationFailed, "no output")),
			code:     ErrCodeQuantizationFailed,
			expected: true,
		},
		{
			name:     "non-Error type",
			err:      errors.New("plain error"),
			code:     ErrCodeInternal,
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			code:     ErrCodeInternal,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.expected {
				t.Errorf("Is() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Code
	}{
		{
			name:     "Error type",
			err:      New(ErrCodeWorkspace, "test"),
			expected: ErrCodeWorkspace,
		},
		{
			name:     "plain error",
			err:      errors.New("plain"),
			expected: "",
		},
		{
			name:     "nil",
			err:      nil,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.expected {
				t.Errorf("GetCode() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "Error type",
			err:      New(ErrCodeInvalidScore, "friendly message"),
			expected: "friendly message",
		},
		{
			name:     "plain error",
			err:      errors.New("plain error"),
			expected: "plain error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.expected {
				t.Errorf("UserMessage() = %v, want %v", got, tt.expected)
			}
		})
	}
}

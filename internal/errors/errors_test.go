package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "error without cause",
			err: &AppError{
				Code:    ErrCodeNotFound,
				Message: "job not found",
			},
			want: "job not found",
		},
		{
			name: "error with cause",
			err: &AppError{
				Code:    ErrCodeInternal,
				Message: "failed to persist share",
				Cause:   errors.New("underlying error"),
			},
			want: "failed to persist share: underlying error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("AppError.Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := &AppError{
		Code:    ErrCodeInternal,
		Message: "wrapped error",
		Cause:   cause,
	}

	if unwrapped := err.Unwrap(); !errors.Is(unwrapped, cause) {
		t.Errorf("AppError.Unwrap() = %v, want %v", unwrapped, cause)
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		wantCode ErrorCode
		wantMsg  string
	}{
		{name: "NotFound", err: NotFound("job not found"), wantCode: ErrCodeNotFound, wantMsg: "job not found"},
		{name: "NotFoundf", err: NotFoundf("job %s not found", "j1"), wantCode: ErrCodeNotFound, wantMsg: "job j1 not found"},
		{name: "Conflict", err: Conflict("duplicate active job"), wantCode: ErrCodeConflict, wantMsg: "duplicate active job"},
		{name: "Conflictf", err: Conflictf("lock held by %s", "alice"), wantCode: ErrCodeConflict, wantMsg: "lock held by alice"},
		{name: "Validation", err: Validation("quorum must be > 0"), wantCode: ErrCodeValidation, wantMsg: "quorum must be > 0"},
		{name: "Validationf", err: Validationf("chunk %d out of range", 9), wantCode: ErrCodeValidation, wantMsg: "chunk 9 out of range"},
		{name: "Internal", err: Internal("unexpected state"), wantCode: ErrCodeInternal, wantMsg: "unexpected state"},
		{name: "Internalf", err: Internalf("bad status %q", "x"), wantCode: ErrCodeInternal, wantMsg: `bad status "x"`},
		{name: "Unavailable", err: Unavailable("engine unreachable"), wantCode: ErrCodeUnavailable, wantMsg: "engine unreachable"},
		{name: "Unavailablef", err: Unavailablef("engine returned %d", 503), wantCode: ErrCodeUnavailable, wantMsg: "engine returned 503"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("Code = %v, want %v", tt.err.Code, tt.wantCode)
			}
			if tt.err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", tt.err.Message, tt.wantMsg)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")

	err := Wrap(cause, ErrCodeUnavailable, "engine call failed")
	if err.Code != ErrCodeUnavailable {
		t.Errorf("Wrap().Code = %v, want %v", err.Code, ErrCodeUnavailable)
	}
	if !errors.Is(err, cause) {
		t.Error("Wrap() should preserve the cause chain")
	}

	if got := Wrap(nil, ErrCodeInternal, "nothing"); got != nil {
		t.Errorf("Wrap(nil) = %v, want nil", got)
	}
}

func TestWrapf(t *testing.T) {
	cause := errors.New("boom")
	err := Wrapf(cause, ErrCodeInternal, "combine chunk %d", 3)
	if err.Message != "combine chunk 3" {
		t.Errorf("Wrapf().Message = %q", err.Message)
	}
	if got := Wrapf(nil, ErrCodeInternal, "nothing"); got != nil {
		t.Errorf("Wrapf(nil) = %v, want nil", got)
	}
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		predicate func(error) bool
		want      bool
	}{
		{name: "IsNotFound true", err: NotFound("x"), predicate: IsNotFound, want: true},
		{name: "IsNotFound wrapped", err: fmt.Errorf("get job: %w", NotFound("x")), predicate: IsNotFound, want: true},
		{name: "IsNotFound false", err: Conflict("x"), predicate: IsNotFound, want: false},
		{name: "IsConflict true", err: Conflict("x"), predicate: IsConflict, want: true},
		{name: "IsValidation true", err: Validation("x"), predicate: IsValidation, want: true},
		{name: "IsInternal true", err: Internal("x"), predicate: IsInternal, want: true},
		{name: "IsUnavailable true", err: Unavailable("x"), predicate: IsUnavailable, want: true},
		{name: "IsNotFound plain error", err: errors.New("x"), predicate: IsNotFound, want: false},
		{name: "IsNotFound nil", err: nil, predicate: IsNotFound, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.predicate(tt.err); got != tt.want {
				t.Errorf("predicate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "unavailable", err: Unavailable("engine 503"), want: true},
		{name: "timeout", err: &AppError{Code: ErrCodeTimeout, Message: "t"}, want: true},
		{name: "wrapped unavailable", err: fmt.Errorf("process chunk: %w", Unavailable("broker down")), want: true},
		{name: "validation", err: Validation("bad input"), want: false},
		{name: "conflict", err: Conflict("dup"), want: false},
		{name: "plain", err: errors.New("x"), want: false},
		{name: "nil", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetCode(t *testing.T) {
	if got := GetCode(Validation("x")); got != ErrCodeValidation {
		t.Errorf("GetCode() = %v, want %v", got, ErrCodeValidation)
	}
	if got := GetCode(errors.New("plain")); got != "" {
		t.Errorf("GetCode(plain) = %v, want empty", got)
	}
}

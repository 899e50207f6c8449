package errors

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestMapDBError_NilError(t *testing.T) {
	if err := MapDBError(nil); err != nil {
		t.Errorf("MapDBError(nil) = %v, want nil", err)
	}
}

func TestMapDBError_ContextErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode ErrorCode
	}{
		{name: "deadline exceeded", err: context.DeadlineExceeded, wantCode: ErrCodeTimeout},
		{name: "canceled", err: context.Canceled, wantCode: ErrCodeCanceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapDBError(tt.err)
			if GetCode(err) != tt.wantCode {
				t.Errorf("MapDBError() code = %v, want %v", GetCode(err), tt.wantCode)
			}
		})
	}
}

func TestMapDBError_NoRows(t *testing.T) {
	err := MapDBError(pgx.ErrNoRows)
	if !IsNotFound(err) {
		t.Errorf("MapDBError(pgx.ErrNoRows) should be NotFound, got %v", GetCode(err))
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		t.Error("mapped error should keep pgx.ErrNoRows in the chain")
	}
}

func TestMapDBError_UniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:           pgerrcode.UniqueViolation,
		ConstraintName: "jobs_active_election_operation_idx",
		Detail:         "Key (election_id, operation_type)=(e1, tally) already exists.",
	}

	err := MapDBError(pgErr)
	if !IsConflict(err) {
		t.Fatalf("unique violation should map to Conflict, got %v", GetCode(err))
	}

	var appErr *AppError
	if !errors.As(err, &appErr) {
		t.Fatal("expected *AppError")
	}
	if appErr.Field != "election_id, operation_type" {
		t.Errorf("Field = %q, want column list from detail", appErr.Field)
	}
}

func TestMapDBError_CheckViolation(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:           pgerrcode.CheckViolation,
		ConstraintName: "jobs_counter_bounds",
	}

	err := MapDBError(pgErr)
	if !IsValidation(err) {
		t.Errorf("check violation should map to Validation, got %v", GetCode(err))
	}
}

func TestMapDBError_NotNullViolation(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:       pgerrcode.NotNullViolation,
		ColumnName: "election_id",
	}

	err := MapDBError(pgErr)
	if !IsValidation(err) {
		t.Fatalf("not null violation should map to Validation, got %v", GetCode(err))
	}

	var appErr *AppError
	if !errors.As(err, &appErr) {
		t.Fatal("expected *AppError")
	}
	if appErr.Field != "election_id" {
		t.Errorf("Field = %q, want election_id", appErr.Field)
	}
}

func TestMapDBError_RetryableClasses(t *testing.T) {
	tests := []struct {
		name  string
		pgErr *pgconn.PgError
	}{
		{name: "serialization failure", pgErr: &pgconn.PgError{Code: pgerrcode.SerializationFailure}},
		{name: "deadlock detected", pgErr: &pgconn.PgError{Code: pgerrcode.DeadlockDetected}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapDBError(tt.pgErr)
			if !IsTransient(err) {
				t.Errorf("%s should map to a transient class, got %v", tt.name, GetCode(err))
			}
		})
	}
}

func TestMapDBError_UnknownPgError(t *testing.T) {
	pgErr := &pgconn.PgError{Code: pgerrcode.DivisionByZero}
	err := MapDBError(pgErr)
	if !IsInternal(err) {
		t.Errorf("unknown pg error should map to Internal, got %v", GetCode(err))
	}
}

func TestMapDBError_PassthroughUnknown(t *testing.T) {
	plain := errors.New("not a database error")
	if got := MapDBError(plain); !errors.Is(got, plain) {
		t.Errorf("unrecognized errors should pass through, got %v", got)
	}
}

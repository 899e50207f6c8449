// This file is a documentation template and should not be compiled.
// It uses placeholder types (ExampleService, ExampleRepository, etc.) that don't exist.
// Use this as a reference when writing tests for services.
//
//go:build ignore

package service

// TEMPLATE_test.go - Service Testing Pattern Examples
//
// This file demonstrates standard testing patterns for services.
// Use these patterns when writing tests for new services.

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/quorumworks/tallyd/internal/domain/model"
	"github.com/quorumworks/tallyd/internal/mocks"
)

// ═══════════════════════════════════════════════════════════════════════════
// PATTERN 1: Constructor Tests
// ═══════════════════════════════════════════════════════════════════════════

func TestNewExampleService_RequiredDependency(t *testing.T) {
	// New returns an error when a required dependency is missing.
	_, err := NewExampleService(ExampleOptions{Repo: nil})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ExampleRepository is required")

	// Must panics on the same input; reserve it for startup wiring.
	assert.Panics(t, func() {
		MustNewExampleService(ExampleOptions{Repo: nil})
	})
}

func TestNewExampleService_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockExampleRepository(ctrl)

	svc, err := NewExampleService(ExampleOptions{Repo: mockRepo})
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

// ═══════════════════════════════════════════════════════════════════════════
// PATTERN 2: Operation Tests (with Mocks)
// ═══════════════════════════════════════════════════════════════════════════

func TestExampleService_Get_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockExampleRepository(ctrl)
	svc := MustNewExampleService(ExampleOptions{Repo: mockRepo})

	ctx := context.Background()
	expected := &model.Example{ID: "example-1"}

	mockRepo.EXPECT().
		GetByID(ctx, "example-1").
		Return(expected, nil)

	got, err := svc.Get(ctx, "example-1")

	require.NoError(t, err)
	assert.Equal(t, expected, got)
}

func TestExampleService_Get_ValidationError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockExampleRepository(ctrl)
	svc := MustNewExampleService(ExampleOptions{Repo: mockRepo})

	// The repository must not be called on invalid input.
	got, err := svc.Get(context.Background(), "")

	require.Error(t, err)
	assert.Nil(t, got)
	assert.Contains(t, err.Error(), "example id is required")
}

func TestExampleService_Get_RepositoryError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockExampleRepository(ctrl)
	svc := MustNewExampleService(ExampleOptions{Repo: mockRepo})

	ctx := context.Background()
	repoErr := errors.New("database connection failed")

	mockRepo.EXPECT().
		GetByID(ctx, "example-1").
		Return(nil, repoErr)

	got, err := svc.Get(ctx, "example-1")

	require.Error(t, err)
	assert.Nil(t, got)
	// Verify the wrap chain still exposes the cause.
	assert.Contains(t, err.Error(), "get example")
	assert.ErrorIs(t, err, repoErr)
}

// ═══════════════════════════════════════════════════════════════════════════
// PATTERN 3: Table-Driven Tests
// ═══════════════════════════════════════════════════════════════════════════

func TestExampleService_Settle_InputValidation(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr string
	}{
		{name: "empty id", id: "", wantErr: "example id is required"},
		{name: "valid id", id: "example-1", wantErr: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockRepo := mocks.NewMockExampleRepository(ctrl)
			svc := MustNewExampleService(ExampleOptions{Repo: mockRepo})

			if tt.wantErr == "" {
				mockRepo.EXPECT().
					Settle(gomock.Any(), tt.id).
					Return(nil)
			}

			err := svc.Settle(context.Background(), tt.id)

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// NOTES FOR TEST WRITING
// ═══════════════════════════════════════════════════════════════════════════
//
// Best Practices:
// 1. Use gomock for mocking repository interfaces (mocks are generated into
//    internal/mocks; see internal/mocks/generate.go)
// 2. Use testify/require for assertions that should stop the test
// 3. Use testify/assert for assertions that should continue
// 4. Test success, validation, and repository-error paths for every operation
// 5. Use table-driven tests for multiple similar cases
// 6. Name tests TestServiceName_MethodName_Scenario
// 7. Verify error wrapping with assert.ErrorIs or assert.Contains
//
// Integration Tests:
// - Put in separate files: *_integration_test.go
// - Use testutil.WithAutoDB for a real database
// - Exercise the concrete repositories instead of mocks
//
// Workflow Tests:
// - Put in testutil/workflowtest for complete pipeline runs
// - Use a real database and a stub crypto engine; feed deliveries directly
//   into the worker runner instead of standing up a broker

package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(CodeValidation, "validation failed", http.StatusUnprocessableEntity)

	assert.Equal(t, CodeValidation, err.Code)
	assert.Equal(t, "validation failed", err.Message)
	assert.Equal(t, http.StatusUnprocessableEntity, err.StatusCode())
}

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without underlying error",
			appErr:   &AppError{Code: CodeNotFound, Message: "booking not found"},
			expected: "NOT_FOUND: booking not found",
		},
		{
			name: "with underlying error",
			appErr: &AppError{
				Code:    CodeInternal,
				Message: "internal error",
				Err:     errors.New("database connection failed"),
			},
			expected: "INTERNAL_ERROR: internal error (caused by: database connection failed)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appErr.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	appErr := Wrap(originalErr, CodeInternal, "wrapped", http.StatusInternalServerError)

	assert.Same(t, originalErr, errors.Unwrap(appErr))
	assert.True(t, errors.Is(appErr, originalErr))
}

func TestAppError_StatusCodeDefaultsToInternal(t *testing.T) {
	err := &AppError{Code: "SOMETHING"}
	assert.Equal(t, http.StatusInternalServerError, err.StatusCode())
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		code   string
		status int
	}{
		{"not found", NotFound("Booking"), CodeNotFound, http.StatusNotFound},
		{"not found with id", NotFoundWithID("Booking", "b-1"), CodeNotFound, http.StatusNotFound},
		{"validation", Validation("bad", nil), CodeValidation, http.StatusUnprocessableEntity},
		{"invalid input", InvalidInput("bad"), CodeInvalidInput, http.StatusBadRequest},
		{"forbidden", Forbidden("no"), CodeForbidden, http.StatusForbidden},
		{"conflict", Conflict("taken"), CodeConflict, http.StatusConflict},
		{"invalid transition", InvalidTransition("approved", "rejected"), CodeInvalidTransition, http.StatusConflict},
		{"internal", Internal("boom", nil), CodeInternal, http.StatusInternalServerError},
		{"timeout", Timeout("slow"), CodeTimeout, http.StatusGatewayTimeout},
		{"unavailable", Unavailable("Assistant"), CodeUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.StatusCode())
		})
	}
}

func TestNotFoundWithID_Details(t *testing.T) {
	err := NotFoundWithID("Booking", "12345")

	assert.Equal(t, "Booking not found", err.Message)
	assert.Equal(t, "12345", err.Details["id"])
	assert.Equal(t, "Booking", err.Details["resource"])
}

func TestInvalidTransition_Details(t *testing.T) {
	err := InvalidTransition("approved", "rejected")

	assert.Equal(t, "cannot change status from approved to rejected", err.Message)
	assert.Equal(t, "approved", err.Details["from"])
	assert.Equal(t, "rejected", err.Details["to"])
}

func TestIsAppError_FollowsWrapping(t *testing.T) {
	wrapped := fmt.Errorf("service layer: %w", Conflict("slot unavailable"))

	assert.True(t, IsAppError(wrapped))
	assert.True(t, HasCode(wrapped, CodeConflict))
	assert.False(t, HasCode(wrapped, CodeNotFound))
	assert.False(t, IsAppError(errors.New("regular error")))
}

func TestAsAppError(t *testing.T) {
	appErr := NotFound("Booking")
	assert.Same(t, appErr, AsAppError(appErr))

	regularErr := errors.New("regular error")
	result := AsAppError(regularErr)
	require.NotNil(t, result)
	assert.Equal(t, CodeInternal, result.Code)
	assert.Same(t, regularErr, result.Err)
}

func TestAppError_ToJSON(t *testing.T) {
	data := string(NotFoundWithID("Booking", "12345").ToJSON())

	assert.Contains(t, data, `"code":"NOT_FOUND"`)
	assert.Contains(t, data, `"message":"Booking not found"`)
	assert.NotContains(t, data, "HTTPStatus")
}

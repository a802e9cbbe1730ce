package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructorsStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    *ServiceError
		status int
		code   ErrorCode
	}{
		{"bad request", BadRequest("bad"), http.StatusBadRequest, CodeBadRequest},
		{"validation", Validation("invalid", map[string]string{"reps": "required"}), http.StatusBadRequest, CodeValidation},
		{"unauthorized", Unauthorized(""), http.StatusUnauthorized, CodeUnauthorized},
		{"invalid token", InvalidToken(nil), http.StatusUnauthorized, CodeInvalidToken},
		{"forbidden", Forbidden(""), http.StatusForbidden, CodeForbidden},
		{"not found", NotFound("Crusade not found"), http.StatusNotFound, CodeNotFound},
		{"conflict", Conflict("dup"), http.StatusConflict, CodeConflict},
		{"rate limit", RateLimitExceeded(10, "1s"), http.StatusTooManyRequests, CodeRateLimit},
		{"upstream", Upstream("discord", nil), http.StatusBadGateway, CodeUpstream},
		{"internal", Internal("", nil), http.StatusInternalServerError, CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.HTTPStatus)
			assert.Equal(t, tt.code, tt.err.Code)
			assert.NotEmpty(t, tt.err.Message)
		})
	}
}

func TestValidationDetails(t *testing.T) {
	err := Validation("Validation failed", map[string]string{"reps": "Reps must be between 0 and 1000"})
	require.NotNil(t, err.Details)
	assert.Equal(t, "Reps must be between 0 and 1000", err.Details["reps"])
}

func TestGetServiceErrorUnwraps(t *testing.T) {
	cause := stderrors.New("boom")
	wrapped := fmt.Errorf("enroll: %w", Internal("db", cause))

	se := GetServiceError(wrapped)
	require.NotNil(t, se)
	assert.Equal(t, CodeInternal, se.Code)
	assert.True(t, stderrors.Is(wrapped, cause))
	assert.True(t, Is(wrapped, CodeInternal))
	assert.False(t, Is(wrapped, CodeNotFound))
	assert.Nil(t, GetServiceError(cause))
}

func TestErrorString(t *testing.T) {
	assert.Equal(t, "NOT_FOUND: User not found", NotFound("User not found").Error())
	assert.Contains(t, InvalidToken(stderrors.New("expired")).Error(), "expired")
}

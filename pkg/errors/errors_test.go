package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, ErrValidationFailed.HTTPStatus)
	assert.Equal(t, http.StatusServiceUnavailable, ErrEngineUnavailable.HTTPStatus)
	assert.Equal(t, http.StatusUnprocessableEntity, ErrEngineRejected.HTTPStatus)
	assert.Equal(t, http.StatusConflict, ErrGenerationInProgress.HTTPStatus)
	assert.Equal(t, http.StatusConflict, ErrRevisionLimitReached.HTTPStatus)
	assert.Equal(t, http.StatusTooManyRequests, ErrQuotaExceeded.HTTPStatus)
	assert.Equal(t, http.StatusInternalServerError, New(CodeDatabaseError, "db").HTTPStatus)
}

func TestCopiesMatchOriginal(t *testing.T) {
	cause := stderrors.New("boom")
	err := fmt.Errorf("handler: %w", ErrEngineRejected.WithDetail("policy").WithError(cause))

	assert.ErrorIs(t, err, ErrEngineRejected)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrEngineUnavailable)
	assert.Empty(t, ErrEngineRejected.Detail)

	assert.True(t, IsAppError(err))
	assert.Equal(t, "policy", AsAppError(err).Detail)
	assert.Equal(t, CodeUnknown, AsAppError(cause).Code)
}

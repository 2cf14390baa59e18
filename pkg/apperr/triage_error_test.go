package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorWrapping(t *testing.T) {
	cause := errors.New("smtp down")
	err := ExternalError("gmail", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "[EXTERNAL_ERROR] external service error: gmail: smtp down", err.Error())
	assert.Equal(t, http.StatusBadGateway, GetHTTPStatus(fmt.Errorf("upload: %w", err)))
}

func TestAsAppError(t *testing.T) {
	bad := InvalidInput("email", "must be a gmail.com address")
	assert.Same(t, bad, AsAppError(fmt.Errorf("wrapped: %w", bad)))

	internal := AsAppError(errors.New("boom"))
	assert.Equal(t, CodeInternalError, internal.Code)
	assert.Equal(t, http.StatusInternalServerError, internal.Status)
}

func TestWithDetail(t *testing.T) {
	err := BadRequest("bad").WithDetail("rows", 3)
	assert.Equal(t, map[string]any{"rows": 3}, err.Details)
	assert.Equal(t, http.StatusBadRequest, GetHTTPStatus(err))
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(errors.New("x")))
}

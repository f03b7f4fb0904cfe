package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harbor-academy/backend/internal/apperr"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{apperr.NotFound("event not found"), http.StatusNotFound},
		{apperr.Validation("quantity must be positive"), http.StatusBadRequest},
		{apperr.CapacityExceeded("sold out"), http.StatusBadRequest},
		{apperr.InvalidState("event is inactive"), http.StatusBadRequest},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusFor(tc.err), tc.err.Error())
	}
}

func TestErrorHidesInternalMessage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Error(c, errors.New("pq: connection refused"), "failed to issue ticket")

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var body Body
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "failed to issue ticket", body.Error)
}

func TestErrorCarriesKind(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Error(c, apperr.CapacityExceeded("only 2 tickets remaining"), "unused")

	require.Equal(t, http.StatusBadRequest, w.Code)
	var body Body
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "only 2 tickets remaining", body.Error)
	assert.Equal(t, "capacity_exceeded", body.Code)
}

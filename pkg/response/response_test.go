package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ksred/tradejournal-api/internal/apperr"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func perform(method string, data interface{}, err error) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, "/api/trades/1", nil)
	Handle(c, data, err)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHandleSuccessStatusByMethod(t *testing.T) {
	w := perform(http.MethodGet, map[string]string{"id": "1"}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode(t, w).Success)

	w = perform(http.MethodPost, map[string]string{"id": "1"}, nil)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestHandleMapsErrorKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{apperr.NotFound("trade not found"), http.StatusNotFound, ErrCodeNotFound},
		{apperr.Forbidden("trade already closed"), http.StatusForbidden, ErrCodeForbidden},
		{apperr.Validation("position_size must be positive"), http.StatusBadRequest, ErrCodeValidationFailed},
		{apperr.Conflict("username taken", nil), http.StatusConflict, ErrCodeDuplicateResource},
		{apperr.Unauthorized("invalid token"), http.StatusUnauthorized, ErrCodeUnauthorized},
		{fmt.Errorf("close trade: %w", gorm.ErrRecordNotFound), http.StatusNotFound, ErrCodeNotFound},
	}
	for _, tc := range cases {
		w := perform(http.MethodPatch, nil, tc.err)
		assert.Equal(t, tc.status, w.Code, tc.err.Error())

		body := decode(t, w)
		assert.False(t, body.Success)
		require.NotNil(t, body.Error)
		assert.Equal(t, tc.code, body.Error.Code)
	}
}

func TestHandleHidesInternalErrors(t *testing.T) {
	w := perform(http.MethodGet, nil, errors.New("pq: connection reset by peer"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	body := decode(t, w)
	require.NotNil(t, body.Error)
	assert.Equal(t, "An unexpected error occurred", body.Error.Message)
	assert.NotContains(t, w.Body.String(), "connection reset")
}

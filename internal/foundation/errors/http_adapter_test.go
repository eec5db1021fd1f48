package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPErrorAdapter_StatusCodeFor(t *testing.T) {
	a := NewHTTPErrorAdapter(nil)
	assert.Equal(t, http.StatusOK, a.StatusCodeFor(nil))
	assert.Equal(t, http.StatusBadRequest, a.StatusCodeFor(ValidationError("bad limit").Build()))
	assert.Equal(t, http.StatusNotFound, a.StatusCodeFor(NotFoundError("no build").Build()))
	assert.Equal(t, http.StatusServiceUnavailable, a.StatusCodeFor(HistoryError("db closed").Build()))
	assert.Equal(t, http.StatusInternalServerError, a.StatusCodeFor(stderrors.New("x")))
}

func TestHTTPErrorAdapter_WriteErrorResponse(t *testing.T) {
	a := NewHTTPErrorAdapter(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/builds?limit=x", nil)

	a.WriteErrorResponse(rec, req, ValidationError("invalid limit").WithContext("limit", "x").Build())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body HTTPErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "invalid limit", body.Error)
	assert.Equal(t, "validation", body.Code)
	assert.Equal(t, "x", body.Details["limit"])
}

package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/promptflow/types"
)

func TestMapErrorKindToHTTPStatus(t *testing.T) {
	tests := []struct {
		kind types.ErrorKind
		want int
	}{
		{types.KindInvalidInput, http.StatusBadRequest},
		{types.KindAuthFailure, http.StatusUnauthorized},
		{types.KindQuotaExceeded, http.StatusTooManyRequests},
		{types.KindFallbackExhausted, http.StatusTooManyRequests},
		{types.KindTransient, http.StatusServiceUnavailable},
		{types.KindCancelled, 499},
		{types.KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, mapErrorKindToHTTPStatus(tt.kind))
		})
	}
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	err := types.NewError(types.KindAuthFailure, "bad key").WithModel("gemini-2.5-pro")
	WriteError(w, err, zap.NewNop())

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(types.KindAuthFailure), resp.Error.Kind)
	assert.Equal(t, "bad key", resp.Error.Message)
	assert.Equal(t, "gemini-2.5-pro", resp.Error.Model)
}

func TestWriteSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccess(w, map[string]string{"hello": "world"})

	assert.Equal(t, http.StatusOK, w.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.False(t, resp.Timestamp.IsZero())
}

func TestDecodeJSONBody_StrictMode(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"known": 1, "unknown": 2}`))

	var dst struct {
		Known int `json:"known"`
	}
	err := DecodeJSONBody(w, r, &dst, zap.NewNop())
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDecodeJSONBody_Valid(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"known": 7}`))

	var dst struct {
		Known int `json:"known"`
	}
	require.NoError(t, DecodeJSONBody(w, r, &dst, zap.NewNop()))
	assert.Equal(t, 7, dst.Known)
}

func TestResponseWriter_CapturesStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec)

	rw.WriteHeader(http.StatusTeapot)
	rw.WriteHeader(http.StatusOK) // second call is ignored

	assert.Equal(t, http.StatusTeapot, rw.StatusCode)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestResponseWriter_ImplicitOK(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec)

	_, err := rw.Write([]byte("body"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rw.StatusCode)
	assert.True(t, rw.Written)
}

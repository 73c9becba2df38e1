package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		name   string
		write  func(w http.ResponseWriter)
		status int
		code   string
	}{
		{"bad request", func(w http.ResponseWriter) { BadRequest(w, "x") }, 400, "validation"},
		{"not found", func(w http.ResponseWriter) { NotFound(w, "x") }, 404, "not_found"},
		{"conflict", func(w http.ResponseWriter) { Conflict(w, "x") }, 409, "conflict"},
		{"bad gateway", func(w http.ResponseWriter) { BadGateway(w, "x") }, 502, "collaborator"},
		{"unavailable", func(w http.ResponseWriter) { ServiceUnavailable(w, "x") }, 503, "unavailable"},
		{"internal", func(w http.ResponseWriter) { InternalError(w, errors.New("pq: secret detail")) }, 500, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
			body := decodeError(t, rec)
			assert.Equal(t, tt.code, body.Code)
			assert.NotContains(t, body.Error, "secret")
		})
	}
}

func TestDecode(t *testing.T) {
	type payload struct {
		Actor string `json:"actor"`
	}

	t.Run("valid", func(t *testing.T) {
		var p payload
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"actor":"ana"}`))
		assert.True(t, Decode(httptest.NewRecorder(), req, &p, 1024))
		assert.Equal(t, "ana", p.Actor)
	})

	t.Run("unknown field", func(t *testing.T) {
		var p payload
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"actor":"ana","extra":1}`))
		assert.False(t, Decode(rec, req, &p, 1024))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("too large", func(t *testing.T) {
		var p payload
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"actor":"`+strings.Repeat("a", 64)+`"}`))
		assert.False(t, Decode(rec, req, &p, 16))
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func TestLoggingAssignsRequestID(t *testing.T) {
	handler := Logging(arbor.NewLogger())(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r := httptest.NewRequest(http.MethodGet, "/api/report", nil)
	w := httptest.NewRecorder()

	handler(w, r)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestLoggingKeepsUpstreamRequestID(t *testing.T) {
	handler := Logging(arbor.NewLogger())(func(w http.ResponseWriter, r *http.Request) {})

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.Header.Set(RequestIDHeader, "proxy-trace-7")
	w := httptest.NewRecorder()

	handler(w, r)

	assert.Equal(t, "proxy-trace-7", w.Header().Get(RequestIDHeader))
}

func TestLoggingCountsResponseBytes(t *testing.T) {
	var captured *loggingResponseWriter
	handler := Logging(arbor.NewLogger())(func(w http.ResponseWriter, r *http.Request) {
		lrw, ok := w.(*loggingResponseWriter)
		require.True(t, ok)
		captured = lrw

		_, err := w.Write([]byte("hello"))
		require.NoError(t, err)
		_, err = w.Write([]byte(" world"))
		require.NoError(t, err)
	})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	handler(w, r)

	require.NotNil(t, captured)
	assert.Equal(t, len("hello world"), captured.bytes)
	assert.Equal(t, http.StatusOK, captured.statusCode)
}

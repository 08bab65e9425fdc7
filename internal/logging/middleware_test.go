package logging

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequestLoggerAttachesLoggerAndLogsStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, false)

	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqLogger, ok := FromContext(r.Context())
		require.True(t, ok)
		reqLogger.Info("inside handler")
		w.WriteHeader(http.StatusConflict)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/register", nil))
	require.Equal(t, http.StatusConflict, rec.Code)

	var entries []map[string]any
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		entries = append(entries, entry)
	}
	require.Len(t, entries, 2)

	require.Equal(t, "inside handler", entries[0]["msg"])
	require.Equal(t, "/register", entries[0]["path"])

	require.Equal(t, "request completed", entries[1]["msg"])
	require.Equal(t, "WARN", entries[1]["level"])
	require.EqualValues(t, http.StatusConflict, entries[1]["status"])
}

func TestGetLoggerFromContextFallsBack(t *testing.T) {
	_, ok := FromContext(context.Background())
	require.False(t, ok)
	require.NotNil(t, GetLoggerFromContext(context.Background()))
}

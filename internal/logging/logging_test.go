package logging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	prev := globalLogger
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(prev) })
	return logs
}

func TestWithRequestIDGeneratesID(t *testing.T) {
	observe(t)

	ctx := WithRequestID(context.Background(), "")
	id := GetRequestID(ctx)
	require.NotEmpty(t, id)

	ctx2 := WithRequestID(context.Background(), "fixed-id")
	assert.Equal(t, "fixed-id", GetRequestID(ctx2))
}

func TestWithContextCarriesRequestID(t *testing.T) {
	logs := observe(t)

	ctx := WithRequestID(context.Background(), "req-1")
	WithContext(ctx).Info("hello")

	entries := logs.FilterMessage("hello").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "req-1", entries[0].ContextMap()["request_id"])
}

func TestWithContextFallsBackToGlobal(t *testing.T) {
	observe(t)
	assert.Same(t, L(), WithContext(context.Background()))
}

func TestMiddlewareLogsAndEchoesRequestID(t *testing.T) {
	logs := observe(t)

	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "abc", GetRequestID(r.Context()))
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("X-Request-ID", "abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "abc", rec.Header().Get("X-Request-ID"))
	entries := logs.FilterMessage("request completed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(http.StatusAccepted), fields["status"])
	assert.Equal(t, int64(2), fields["size"])
}

func TestInitFallsBackToInfoOnBadLevel(t *testing.T) {
	prev := globalLogger
	t.Cleanup(func() { SetLogger(prev) })

	require.NoError(t, Init(Config{Level: "loud", Format: "console"}))
	assert.True(t, L().Core().Enabled(zapcore.InfoLevel))
	assert.False(t, L().Core().Enabled(zapcore.DebugLevel))

	SetLevel("debug")
	assert.True(t, L().Core().Enabled(zapcore.DebugLevel))
	SetLevel("info")
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recordingObserver struct {
	method string
	status int
	calls  int
}

func (o *recordingObserver) ObserveRequest(method string, status int, _ time.Duration) {
	o.method = method
	o.status = status
	o.calls++
}

func TestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	obs := &recordingObserver{}

	h := Logger(zap.New(core), obs)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/dues/2019/batch", nil))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "POST", fields["method"])
	assert.Equal(t, "/api/dues/2019/batch", fields["uri"])
	assert.EqualValues(t, http.StatusTeapot, fields["status"])
	assert.EqualValues(t, len("short and stout"), fields["size"])

	assert.Equal(t, 1, obs.calls)
	assert.Equal(t, http.MethodPost, obs.method)
	assert.Equal(t, http.StatusTeapot, obs.status)
}

func TestLogger_DefaultStatus(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	h := Logger(zap.New(core), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, 1, logs.Len())
	assert.EqualValues(t, http.StatusOK, logs.All()[0].ContextMap()["status"])
}

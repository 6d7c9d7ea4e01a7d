package server_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/muster/internal/api"
	"github.com/shaharia-lab/muster/internal/server"
	svcmocks "github.com/shaharia-lab/muster/internal/service/mocks"
	"github.com/shaharia-lab/muster/internal/storage"
)

func newTestServer(t *testing.T, opts server.Options) (*server.Server, *svcmocks.MockRequestService) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reqSvc := new(svcmocks.MockRequestService)
	subSvc := new(svcmocks.MockSubscriptionService)
	return server.New(api.New(reqSvc, subSvc, logger), opts, logger), reqSvc
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, server.Options{})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestHealth_Unavailable(t *testing.T) {
	srv, _ := newTestServer(t, server.Options{
		Health: func(context.Context) error { return errors.New("database is closed") },
	})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "muster_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	srv, _ := newTestServer(t, server.Options{Gatherer: reg})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "muster_test_total 1")
}

func TestAPIIsMountedUnderPrefix(t *testing.T) {
	srv, reqSvc := newTestServer(t, server.Options{})
	reqSvc.On("CreateRequest", mock.Anything, "hello").
		Return(&storage.NotificationRequest{ID: "r1", Status: storage.RequestStatusPending}, nil)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/requests",
		strings.NewReader(`{"message":"hello"}`)))

	assert.Equal(t, http.StatusAccepted, w.Code)
	reqSvc.AssertExpectations(t)
}

func TestCORS(t *testing.T) {
	srv, _ := newTestServer(t, server.Options{AllowedOrigins: []string{"https://ops.example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/requests", nil)
	req.Header.Set("Origin", "https://ops.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, "https://ops.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestPanicIsRecovered(t *testing.T) {
	srv, reqSvc := newTestServer(t, server.Options{})
	reqSvc.On("GetRequest", mock.Anything, "boom").Run(func(mock.Arguments) { panic("boom") })

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/requests/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/shaharia-lab/muster/internal/service"
)

const (
	errInvalidJSONBody = "invalid JSON body"
	// maxBodyBytes bounds request bodies; the largest valid body is a
	// registration token.
	maxBodyBytes = 64 << 10
)

// Server holds all dependencies for the REST API handlers.
type Server struct {
	requestSvc      service.RequestService
	subscriptionSvc service.SubscriptionService
	logger          *slog.Logger
}

// New creates a new API Server backed by the provided services.
func New(requestSvc service.RequestService, subscriptionSvc service.SubscriptionService, logger *slog.Logger) *Server {
	return &Server{
		requestSvc:      requestSvc,
		subscriptionSvc: subscriptionSvc,
		logger:          logger,
	}
}

// Mount registers all API routes under the given router.
func (s *Server) Mount(r chi.Router) {
	// Broadcast requests
	r.Get("/requests", s.handleListRequests)
	r.Post("/requests", s.handleCreateRequest)
	r.Get("/requests/{id}", s.handleGetRequest)

	// Device subscriptions
	r.Get("/subscriptions", s.handleListSubscriptions)
	r.Post("/subscriptions", s.handleRegisterSubscription)
	r.Delete("/subscriptions/{id}", s.handleDeleteSubscription)

	r.Get("/version", s.handleVersion)
}

// ─── Shared helpers ───────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// httpErr maps service errors to HTTP status codes.
func (s *Server) httpErr(w http.ResponseWriter, r *http.Request, err error) {
	var nfErr *service.NotFoundError
	var valErr *service.ValidationError
	switch {
	case errors.As(err, &nfErr):
		writeError(w, http.StatusNotFound, nfErr.Error())
	case errors.As(err, &valErr):
		writeError(w, http.StatusBadRequest, valErr.Error())
	default:
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidJSONBody)
		return false
	}
	return true
}

func parseQueryInt(r *http.Request, key string, defaultVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	return v
}

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

const maxListLimit = 500

type createRequestBody struct {
	Message string `json:"message"`
}

// handleCreateRequest stores a pending broadcast request. Dispatch happens
// asynchronously; the response carries the pending record.
func (s *Server) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	var body createRequestBody
	if !decodeJSON(w, r, &body) {
		return
	}

	req, err := s.requestSvc.CreateRequest(r.Context(), body.Message)
	if err != nil {
		s.httpErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, req)
}

// handleListRequests returns the most recent requests, newest first.
func (s *Server) handleListRequests(w http.ResponseWriter, r *http.Request) {
	limit := min(parseQueryInt(r, "limit", 50), maxListLimit)
	reqs, err := s.requestSvc.ListRequests(r.Context(), limit)
	if err != nil {
		s.httpErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reqs)
}

// handleGetRequest returns a single request by ID.
func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := s.requestSvc.GetRequest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.httpErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type registerSubscriptionBody struct {
	Token string `json:"token"`
}

func (s *Server) handleRegisterSubscription(w http.ResponseWriter, r *http.Request) {
	var body registerSubscriptionBody
	if !decodeJSON(w, r, &body) {
		return
	}

	sub, err := s.subscriptionSvc.Register(r.Context(), body.Token)
	if err != nil {
		s.httpErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (s *Server) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := s.subscriptionSvc.List(r.Context())
	if err != nil {
		s.httpErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

func (s *Server) handleDeleteSubscription(w http.ResponseWriter, r *http.Request) {
	if err := s.subscriptionSvc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.httpErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

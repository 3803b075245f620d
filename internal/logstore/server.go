// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Ditch Labs

package logstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// Observer is notified of each saved line
type Observer interface {
	ObserveSave(kind string, d time.Duration)
}

type saveRequest struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Server exposes a Store over HTTP
type Server struct {
	store    Store
	log      *logrus.Entry
	observer Observer
	now      func() time.Time
}

// NewServer creates a server; observer may be nil
func NewServer(store Store, observer Observer, log *logrus.Entry) *Server {
	return &Server{
		store:    store,
		log:      log,
		observer: observer,
		now:      time.Now,
	}
}

// Routes registers the endpoints on mux
func (s *Server) Routes(mux *http.ServeMux) {
	mux.Handle("/save-information", cors(http.HandlerFunc(s.handleSave)))
	mux.Handle("/information", cors(http.HandlerFunc(s.handleRecent)))
}

// Handler returns a mux with only the store endpoints
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Routes(mux)
	return mux
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST, OPTIONS")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if !ValidKind(req.Type) {
		s.fail(w, ErrInvalidType)
		return
	}

	start := time.Now()
	entry := Entry{Message: req.Message, Timestamp: s.now()}
	if err := s.store.Save(r.Context(), req.Type, entry); err != nil {
		s.fail(w, err)
		return
	}
	if s.observer != nil {
		s.observer.ObserveSave(req.Type, time.Since(start))
	}

	s.log.WithField("type", req.Type).Debug("information saved")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusCreated)
	fmt.Fprintf(w, "Information saved in %s", req.Type)
}

// handleRecent serves GET /information?type=terminal&limit=50
func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET, OPTIONS")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	kind := r.URL.Query().Get("type")
	if kind == "" {
		kind = KindInformation
	}
	limit := int64(100)
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries, err := s.store.Recent(r.Context(), kind, limit)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrInvalidType) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	s.log.WithError(err).Error("failed to save information")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	fmt.Fprintf(w, "Error saving information: %s", err.Error())
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Package api exposes the conversational HTTP surface: the chat endpoint,
// session inspection, and the usual health/version/metrics plumbing.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/majordomo-ai/majordomo/internal/compose"
	"github.com/majordomo-ai/majordomo/internal/executor"
	"github.com/majordomo-ai/majordomo/internal/session"
	"github.com/majordomo-ai/majordomo/pkg/models"
)

const maxChatBody = 64 << 10 // 64 KiB

// API holds the handlers' dependencies.
type API struct {
	engine   *executor.Engine
	sessions session.Store
}

// NewAPI creates the handler set.
func NewAPI(engine *executor.Engine, sessions session.Store) *API {
	return &API{engine: engine, sessions: sessions}
}

// Chat runs one conversational turn.
//
//	POST /api/v1/chat
func (a *API) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	body := http.MaxBytesReader(w, r.Body, maxChatBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message must not be empty")
		return
	}

	turn, _, err := a.engine.RunTurn(r.Context(), req.SessionID, req.Message)
	if err != nil {
		if errors.Is(err, session.ErrStateUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "session state unavailable, retry shortly")
			return
		}
		log.Error().Err(err).Msg("turn execution failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	reply, trace := compose.Compose(turn)
	writeJSON(w, http.StatusOK, models.ChatResponse{
		Reply:     reply,
		Trace:     trace,
		SessionID: turn.SessionID,
		Turn:      turn.Index,
		Status:    turn.Status,
	})
}

// GetSession returns the committed session state.
//
//	GET /api/v1/sessions/{sessionID}
func (a *API) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	s, err := a.sessions.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		log.Error().Err(err).Str("session_id", id).Msg("session lookup failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// ResetSlots clears session slots, optionally only those under a prefix.
//
//	DELETE /api/v1/sessions/{sessionID}/slots?prefix=calendar.
func (a *API) ResetSlots(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	prefix := r.URL.Query().Get("prefix")

	err := a.sessions.ResetSlots(r.Context(), id, func(key string) bool {
		return prefix == "" || strings.HasPrefix(key, prefix)
	})
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		log.Error().Err(err).Str("session_id", id).Msg("slot reset failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

package api

import (
	"net/http"

	"github.com/blueinsight/blueinsight/internal/answer"
)

func handleSessionHistory(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session")
	if sessionID == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "MISSING_SESSION", "session id is required", false, nil)
		return
	}
	history, err := deps.Engine.History(r.Context(), sessionID)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "HISTORY_FAILED", err.Error(), true, nil)
		return
	}
	if history == nil {
		history = []answer.Bundle{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessionId": sessionID,
		"history":   history,
	})
}

func handleSessionSuggestions(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session")
	if sessionID == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "MISSING_SESSION", "session id is required", false, nil)
		return
	}
	suggestions, err := deps.Engine.Suggestions(r.Context(), sessionID)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "SUGGESTIONS_FAILED", err.Error(), true, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessionId":   sessionID,
		"suggestions": suggestions,
	})
}

func handleClearSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session")
	if sessionID == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "MISSING_SESSION", "session id is required", false, nil)
		return
	}
	if err := deps.Engine.ClearSession(r.Context(), sessionID); err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "CLEAR_FAILED", err.Error(), true, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessionId": sessionID, "cleared": true})
}

func handleClearAllSessions(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if err := deps.Engine.ClearAllSessions(r.Context()); err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "CLEAR_FAILED", err.Error(), true, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cleared": true})
}

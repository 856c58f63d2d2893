package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/blueinsight/blueinsight/internal/engine"
)

const maxAskBodyBytes = 64 * 1024

type askRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"sessionId"`
	Context   string `json:"context"`
}

func decodeAskRequest(w http.ResponseWriter, r *http.Request) (askRequest, bool) {
	var request askRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxAskBodyBytes)
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON", false, nil)
		return askRequest{}, false
	}
	return request, true
}

func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	request, ok := decodeAskRequest(w, r)
	if !ok {
		return
	}

	bundle, err := deps.Engine.Ask(r.Context(), engine.Request{
		Question:  request.Question,
		SessionID: request.SessionID,
		Context:   request.Context,
	})
	if err != nil {
		status, code := askErrorStatus(err)
		writeError(r.Context(), w, status, code, err.Error(), false, nil)
		return
	}
	writeJSON(w, http.StatusOK, bundle)
}

func askErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, engine.ErrEmptyQuestion):
		return http.StatusBadRequest, "EMPTY_QUESTION"
	case errors.Is(err, engine.ErrQuestionTooLong):
		return http.StatusBadRequest, "QUESTION_TOO_LONG"
	case errors.Is(err, engine.ErrUnsafeQuestion):
		return http.StatusBadRequest, "UNSAFE_QUESTION"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

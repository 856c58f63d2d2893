package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/blueinsight/blueinsight/internal/engine"
	"github.com/blueinsight/blueinsight/internal/observability"
	"github.com/blueinsight/blueinsight/internal/stream"
)

// handleAskStream answers the question, then replays the bundle as
// server-sent events with word-level cadence. Client disconnects cancel the
// stream mid-flight; a cancelled stream ends without a complete event.
func handleAskStream(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	request, ok := decodeAskRequest(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(r.Context(), w, http.StatusInternalServerError, "STREAMING_UNSUPPORTED", "response writer does not support streaming", false, nil)
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

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	streamID := observability.TraceIDFromContext(r.Context())
	if streamID == "" {
		streamID = "stream"
	}

	err = deps.Streamer.Run(r.Context(), streamID, bundle, func(event stream.Event) {
		payload, marshalErr := json.Marshal(event)
		if marshalErr != nil {
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	})
	if err != nil && !errors.Is(err, stream.ErrCancelled) && deps.Logger != nil {
		deps.Logger.WarnContext(r.Context(), "answer stream aborted", slog.Any("error", err))
	}
}

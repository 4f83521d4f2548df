package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/lancehub/lancehub/internal/infrastructure/sse"
)

// streamEndpoint opens a server-sent-events connection carrying bid change
// notifications. The client subscribes to its own user channel implicitly and
// may additionally subscribe to project broadcast topics via ?projects=.
func (s *Server) streamEndpoint(w http.ResponseWriter, r *http.Request) {
	au := authUserFrom(r.Context())

	topics := make([]string, 0, 4)
	for _, raw := range splitCSV(r.URL.Query().Get("projects")) {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid project id in projects parameter")
			return
		}
		topics = append(topics, "project:"+id.String())
	}

	clientID := uuid.New().String()
	client := sse.NewClient(clientID, au.UserID.String(), topics)
	s.sseHub.Register(client)
	defer s.sseHub.Unregister(clientID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "streaming not supported")
		return
	}
	w.WriteHeader(http.StatusOK)
	// Initial comment flushes headers and confirms the connection.
	_, _ = w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case msg := <-client.MessageChan:
			if msg == nil {
				return
			}
			payload, _ := json.Marshal(msg)
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(payload)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

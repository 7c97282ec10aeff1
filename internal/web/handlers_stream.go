package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/JonMunkholm/fuelledger/internal/core"
	"github.com/JonMunkholm/fuelledger/internal/logging"
	"github.com/JonMunkholm/fuelledger/internal/session"
	"github.com/JonMunkholm/fuelledger/internal/store"
	"github.com/JonMunkholm/fuelledger/internal/web/middleware"
	"github.com/go-chi/chi/v5"
)

// streamKeepAlive is how often an idle stream sends a comment line so
// proxies do not close it.
var streamKeepAlive = 25 * time.Second

// sessionEvent tells a stream client its session ended.
type sessionEvent struct {
	State    string `json:"state"`
	Redirect string `json:"redirect"`
}

// handleStream sends change events for one collection as server-sent
// events:
//
//	event: ready    once, after the subscription is live
//	event: change   a store.Event per write
//	event: resync   changes were missed; reload and reconnect. The stream ends
//	event: session  the session expired or was signed out; the stream ends
//
// Watching a stream does not count as session activity.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	if !core.Streamable(collection) {
		respondError(w, r, &core.NotFoundError{Path: collection})
		return
	}

	ctx := r.Context()
	auth, _ := middleware.FromContext(ctx)
	guard, ok := s.sessions.Guard(auth.Session.ID)
	if !ok {
		respondError(w, r, session.ErrNoSession)
		return
	}

	events := make(chan store.Event, 16)
	unsubscribe, err := s.service.Subscribe(ctx, collection, func(ev store.Event) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer unsubscribe()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	send := func(event string, v any) bool {
		if err := writeEvent(w, event, v); err != nil {
			return false
		}
		return rc.Flush() == nil
	}

	logger := logging.WithFields(ctx, "collection", collection)
	logger.Debug("stream opened")
	defer logger.Debug("stream closed")

	if !send("ready", map[string]string{"collection": collection}) {
		return
	}

	ticker := time.NewTicker(streamKeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-guard.Done():
			state := "signed_out"
			if guard.State() == session.GuardExpired {
				state = "expired"
			}
			send("session", sessionEvent{State: state, Redirect: middleware.LoginPath})
			return

		case ev := <-events:
			if ev.Type == store.EventResync {
				logger.Info("stream fell behind, asking client to resync")
				send("resync", map[string]string{"collection": collection})
				return
			}
			if !send("change", ev) {
				return
			}

		case <-ticker.C:
			if _, err := io.WriteString(w, ": keepalive\n\n"); err != nil {
				return
			}
			if rc.Flush() != nil {
				return
			}
		}
	}
}

func writeEvent(w io.Writer, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

package livefeed

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"lincona/internal/transcript"
)

// DefaultSubscriberBuffer bounds how far a websocket client may lag
// behind the live feed before its events start dropping.
const DefaultSubscriberBuffer = 128

var upgrader = websocket.Upgrader{
	// Local-only convenience endpoint (SPEC_FULL.md §B); the UI is an
	// external process on the same host, not a browser origin to police.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Server serves GET /sessions/{id}/events: it replays a session's
// transcript history and then streams new events as they are published
// to hub. It never accepts writes; the only way to affect a session is
// still through the driver's own input loop.
type Server struct {
	httpServer *http.Server
	hub        *Hub
	dataRoot   string
}

// New builds a Server bound to addr. It does not start listening until
// Serve is called.
func New(addr, dataRoot string, hub *Hub) *Server {
	s := &Server{hub: hub, dataRoot: dataRoot}
	mux := http.NewServeMux()
	mux.HandleFunc("/sessions/", s.handleSessionEvents)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // streaming connection
	}
	return s
}

// Serve blocks until ctx is cancelled, then shuts the server down.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/sessions/")
	path = strings.TrimSuffix(path, "/events")
	sessionID := strings.Trim(path, "/")
	if sessionID == "" || !strings.HasSuffix(r.URL.Path, "/events") {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	history, err := transcript.ReadAll(transcriptPath(s.dataRoot, sessionID))
	if err == nil {
		for _, ev := range history {
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}

	sub, unsub := s.hub.Subscribe(sessionID, DefaultSubscriberBuffer)
	defer unsub()

	for ev := range sub {
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}
}

func transcriptPath(dataRoot, sessionID string) string {
	return filepath.Join(dataRoot, "sessions", sessionID+".jsonl")
}

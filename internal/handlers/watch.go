// internal/handlers/watch.go
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/ilushkaDushni/walkmap-sub001/internal/lobby"
	"github.com/ilushkaDushni/walkmap-sub001/internal/middleware"
)

// WatchLobby upgrades a participant's pull loop to a push stream: the server
// sends a fresh snapshot every pull interval until the lobby goes terminal
// or the client disconnects. The stream is read-only; session state is only
// ever written through the PATCH endpoint, so the one-writer semantics of
// the polling protocol are unchanged. Clients must still tolerate staleness:
// a dropped stream falls back to plain GET polling.
func (s *Server) WatchLobby(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	lobbyID, err := lobbyIDParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	// Reject before upgrading so a bad lobby id costs no socket.
	if _, err := s.Sessions.Snapshot(lobbyID, userID); err != nil {
		s.writeError(w, err)
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{"walkmap"},
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.Logger.Warnf("websocket accept error: %v", err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "handler finished")
	middleware.LogWebSocketConnect(s.Logger, r.RemoteAddr, r.URL.Path)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Drain the read side so client close frames are noticed; participants
	// never send session data over this stream.
	go func() {
		defer cancel()
		for {
			if _, _, err := c.Read(ctx); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(lobby.PullInterval)
	defer ticker.Stop()

	var streamErr error
	for {
		snap, err := s.Sessions.Snapshot(lobbyID, userID)
		if err != nil {
			// Terminal, expired, or reaped: tell the client and stop.
			c.Close(websocket.StatusNormalClosure, "lobby closed")
			middleware.LogWebSocketDisconnect(s.Logger, r.RemoteAddr, r.URL.Path, nil)
			return
		}
		if err := wsjson.Write(ctx, c, snap); err != nil {
			streamErr = err
			break
		}

		select {
		case <-ctx.Done():
			middleware.LogWebSocketDisconnect(s.Logger, r.RemoteAddr, r.URL.Path, nil)
			return
		case <-ticker.C:
		}
	}
	middleware.LogWebSocketDisconnect(s.Logger, r.RemoteAddr, r.URL.Path, streamErr)
}

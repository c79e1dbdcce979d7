// internal/handlers/server.go
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ilushkaDushni/walkmap-sub001/internal/cache"
	"github.com/ilushkaDushni/walkmap-sub001/internal/lobby"
	"github.com/ilushkaDushni/walkmap-sub001/internal/middleware"
	"github.com/ilushkaDushni/walkmap-sub001/internal/models"
)

// UserDirectory resolves an authenticated user id to its profile.
type UserDirectory interface {
	User(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Server wires the session engine and its collaborators to the HTTP surface.
type Server struct {
	Logger     *logrus.Logger
	Sessions   *lobby.Store
	Users      UserDirectory
	RouteDir   lobby.RouteDirectory
	Completion *lobby.Coordinator

	// Publish delivers lifecycle events to the out-of-band queue. Nil
	// disables event publishing; failures are logged, never surfaced.
	Publish func(ctx context.Context, record cache.LobbyEventRecord) error
}

// Router builds the HTTP routing table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.LogMiddleware(s.Logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/lobbies", func(r chi.Router) {
		r.Post("/", s.CreateLobby)
		r.Post("/join", s.JoinLobby)
		r.Get("/{id}", s.GetLobby)
		r.Patch("/{id}/host-state", s.PatchHostState)
		r.Post("/{id}/start", s.StartLobby)
		r.Post("/{id}/complete", s.CompleteLobby)
		r.Post("/{id}/leave", s.LeaveLobby)
		r.Delete("/{id}", s.ForceCloseLobby)
		r.Get("/{id}/watch", s.WatchLobby)
	})
	return r
}

// emit publishes a lifecycle event, best-effort.
func (s *Server) emit(ctx context.Context, eventType string, lobbyID, routeID, actorID uuid.UUID, payload map[string]interface{}) {
	if s.Publish == nil {
		return
	}
	record := cache.LobbyEventRecord{
		LobbyID:   lobbyID,
		RouteID:   routeID,
		EventType: eventType,
		ActorID:   actorID,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	}
	if err := s.Publish(ctx, record); err != nil {
		s.Logger.Warnf("publish %s event for lobby %s: %v", eventType, lobbyID, err)
	}
}

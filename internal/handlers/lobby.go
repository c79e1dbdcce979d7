// internal/handlers/lobby.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ilushkaDushni/walkmap-sub001/internal/lobby"
	"github.com/ilushkaDushni/walkmap-sub001/internal/models"
)

// caller resolves identity and profile in one step. A token whose user no
// longer exists counts as unauthenticated.
func (s *Server) caller(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	userID, err := requireUser(r)
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	user, err := s.Users.User(r.Context(), userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.writeError(w, errUnauthenticated)
		} else {
			s.writeError(w, err)
		}
		return nil, false
	}
	return user, true
}

func lobbyIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, lobby.ErrNotFound
	}
	return id, nil
}

type createLobbyRequest struct {
	RouteID         string `json:"routeId"`
	MaxParticipants int    `json:"maxParticipants,omitempty"`
}

// CreateLobby opens a waiting lobby for the caller and hands back its join
// code.
func (s *Server) CreateLobby(w http.ResponseWriter, r *http.Request) {
	user, ok := s.caller(w, r)
	if !ok {
		return
	}

	var req createLobbyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad create payload", http.StatusBadRequest)
		return
	}
	routeID, err := uuid.Parse(req.RouteID)
	if err != nil {
		http.Error(w, "invalid route id", http.StatusBadRequest)
		return
	}

	// Validate the route reference before allocating anything.
	if _, err := s.RouteDir.Route(r.Context(), routeID); err != nil {
		s.writeError(w, err)
		return
	}

	snap, err := s.Sessions.Create(*user, routeID, req.MaxParticipants)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.emit(r.Context(), "lobby_created", snap.ID, snap.RouteID, user.ID, nil)
	respondJSON(w, http.StatusCreated, snap)
}

type joinLobbyRequest struct {
	JoinCode string `json:"joinCode"`
}

// JoinLobby admits the caller into the waiting lobby matching the code.
func (s *Server) JoinLobby(w http.ResponseWriter, r *http.Request) {
	user, ok := s.caller(w, r)
	if !ok {
		return
	}

	var req joinLobbyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad join payload", http.StatusBadRequest)
		return
	}

	snap, err := s.Sessions.Admit(req.JoinCode, *user)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.emit(r.Context(), "lobby_joined", snap.ID, snap.RouteID, user.ID, nil)
	respondJSON(w, http.StatusOK, map[string]interface{}{"id": snap.ID})
}

// GetLobby returns the caller's view of the lobby, including the derived
// hostOffline flag. This is the participant pull of the sync protocol.
func (s *Server) GetLobby(w http.ResponseWriter, r *http.Request) {
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

	snap, err := s.Sessions.Snapshot(lobbyID, userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// PatchHostState applies a host push: a partial update of the live
// host-authored state.
func (s *Server) PatchHostState(w http.ResponseWriter, r *http.Request) {
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

	var patch models.HostStatePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "bad host state payload", http.StatusBadRequest)
		return
	}
	if patch.Empty() {
		http.Error(w, "empty host state patch", http.StatusBadRequest)
		return
	}

	snap, err := s.Sessions.PatchHostState(lobbyID, userID, &patch)
	if err != nil {
		s.writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// StartLobby moves a waiting lobby to active. Host only.
func (s *Server) StartLobby(w http.ResponseWriter, r *http.Request) {
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

	snap, err := s.Sessions.Start(lobbyID, userID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.emit(r.Context(), "lobby_started", snap.ID, snap.RouteID, userID, nil)
	respondJSON(w, http.StatusOK, snap)
}

// CompleteLobby finalizes the walk and returns per-participant reward and
// achievement results. Host only; safe to retry.
func (s *Server) CompleteLobby(w http.ResponseWriter, r *http.Request) {
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

	summary, err := s.Completion.Complete(r.Context(), lobbyID, userID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.emit(r.Context(), "lobby_completed", summary.LobbyID, summary.RouteID, userID, map[string]interface{}{
		"participants": len(summary.Results),
	})
	respondJSON(w, http.StatusOK, summary)
}

// LeaveLobby removes the caller from the lobby. A leaving host disbands it.
func (s *Server) LeaveLobby(w http.ResponseWriter, r *http.Request) {
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

	disbanded, err := s.Sessions.Leave(lobbyID, userID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	event := "lobby_left"
	if disbanded {
		event = "lobby_disbanded"
	}
	s.emit(r.Context(), event, lobbyID, uuid.Nil, userID, nil)
	respondJSON(w, http.StatusOK, map[string]interface{}{"disbanded": disbanded})
}

// ForceCloseLobby transitions any non-terminal lobby to closed. Admin only.
func (s *Server) ForceCloseLobby(w http.ResponseWriter, r *http.Request) {
	user, ok := s.caller(w, r)
	if !ok {
		return
	}
	if !user.IsAdmin {
		s.writeError(w, lobby.ErrForbidden)
		return
	}
	lobbyID, err := lobbyIDParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	snap, err := s.Sessions.ForceClose(lobbyID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.emit(r.Context(), "lobby_force_closed", snap.ID, snap.RouteID, user.ID, nil)
	respondJSON(w, http.StatusOK, map[string]interface{}{"id": snap.ID, "status": snap.Status})
}

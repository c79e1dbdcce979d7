// internal/handlers/utils.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ilushkaDushni/walkmap-sub001/internal/auth"
	"github.com/ilushkaDushni/walkmap-sub001/internal/lobby"
)

var errUnauthenticated = errors.New("unauthenticated")

// extractCookieToken extracts a named cookie value from the Cookie header,
// or returns empty if not found.
func extractCookieToken(cookieHeader, cookieName string) string {
	parts := strings.Split(cookieHeader, cookieName+"=")
	if len(parts) < 2 {
		return ""
	}
	token := parts[1]
	if idx := strings.Index(token, ";"); idx != -1 {
		token = token[:idx]
	}
	return token
}

// requireUser resolves the caller's identity from a bearer header or the
// auth_token cookie.
func requireUser(r *http.Request) (uuid.UUID, error) {
	var token string
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		token = strings.TrimPrefix(h, "Bearer ")
	} else {
		token = extractCookieToken(r.Header.Get("Cookie"), "auth_token")
	}
	if token == "" {
		return uuid.Nil, errUnauthenticated
	}

	sub, err := auth.AuthenticateJWT(token)
	if err != nil {
		return uuid.Nil, errUnauthenticated
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, errUnauthenticated
	}
	return userID, nil
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps engine errors onto the HTTP status taxonomy. Anything
// unrecognized is an internal fault.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errUnauthenticated):
		http.Error(w, "missing or invalid credentials", http.StatusUnauthorized)
	case errors.Is(err, lobby.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, lobby.ErrNotFound):
		http.Error(w, "lobby not found", http.StatusNotFound)
	case errors.Is(err, lobby.ErrAlreadyHosting):
		http.Error(w, "you already have an open lobby", http.StatusBadRequest)
	case errors.Is(err, lobby.ErrRouteNotFound):
		http.Error(w, "unknown route", http.StatusBadRequest)
	case errors.Is(err, lobby.ErrFull):
		http.Error(w, "lobby is full", http.StatusBadRequest)
	case errors.Is(err, lobby.ErrInvalidCode):
		http.Error(w, "join code must be 6 characters", http.StatusBadRequest)
	case errors.Is(err, lobby.ErrConflict):
		http.Error(w, "lobby is in the wrong state for that", http.StatusConflict)
	default:
		s.Logger.Errorf("internal error: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

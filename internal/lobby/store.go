// internal/lobby/store.go
package lobby

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ilushkaDushni/walkmap-sub001/internal/models"
)

// terminalRetention is how long completed/closed lobbies stay in memory so
// that completion retries and late pollers can still resolve them.
const terminalRetention = time.Hour

// Store owns every live lobby and enforces the session invariants: at most
// one non-terminal lobby per host, join-code uniqueness among non-terminal
// lobbies, and capacity bounds. It is the sole mutator of lobby records.
type Store struct {
	mu      sync.Mutex
	lobbies map[uuid.UUID]*Lobby
	byCode  map[string]uuid.UUID    // non-terminal lobbies only
	byHost  map[uuid.UUID]uuid.UUID // non-terminal lobbies only

	now func() time.Time // overridable in tests
}

// NewStore initializes an empty session store.
func NewStore() *Store {
	return &Store{
		lobbies: make(map[uuid.UUID]*Lobby),
		byCode:  make(map[string]uuid.UUID),
		byHost:  make(map[uuid.UUID]uuid.UUID),
		now:     time.Now,
	}
}

// releaseIndexes frees the host slot and join code of a lobby that just went
// terminal. The code becomes eligible for reuse immediately.
func (s *Store) releaseIndexes(l *Lobby) {
	if id, ok := s.byCode[l.JoinCode]; ok && id == l.ID {
		delete(s.byCode, l.JoinCode)
	}
	if id, ok := s.byHost[l.HostID]; ok && id == l.ID {
		delete(s.byHost, l.HostID)
	}
}

// expireIfOverdue lazily closes a lobby whose TTL has passed. Expiry is
// enforced at read/admission time; the reaper only backstops this.
func (s *Store) expireIfOverdue(l *Lobby, now time.Time) {
	if l.expired(now) {
		l.close(now)
		s.releaseIndexes(l)
		log.Printf("lobby %s expired, closed", l.ID)
	}
}

// Create opens a waiting lobby for the host. Fails with ErrAlreadyHosting if
// the host already owns a non-terminal lobby. maxParticipants of 0 means the
// default capacity.
func (s *Store) Create(host models.User, routeID uuid.UUID, maxParticipants int) (models.LobbySnapshot, error) {
	if maxParticipants <= 0 {
		maxParticipants = DefaultMaxParticipants
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	if existingID, ok := s.byHost[host.ID]; ok {
		if existing := s.lobbies[existingID]; existing != nil {
			s.expireIfOverdue(existing, now)
			if !existing.Status.Terminal() {
				return models.LobbySnapshot{}, ErrAlreadyHosting
			}
		}
	}

	code, err := allocateCode(func(c string) bool {
		_, taken := s.byCode[c]
		return taken
	})
	if err != nil {
		return models.LobbySnapshot{}, err
	}

	l := newLobby(models.Participant{
		UserID:    host.ID,
		Username:  host.Username,
		AvatarURL: host.AvatarURL,
	}, routeID, maxParticipants, code, now)

	s.lobbies[l.ID] = l
	s.byCode[code] = l.ID
	s.byHost[host.ID] = l.ID
	return l.snapshot(now), nil
}

// Admit adds a user to the waiting lobby matching the join code. Admission
// is idempotent for users who are already participants. Codes only match
// waiting lobbies: an active or terminal lobby is unreachable even with the
// correct code.
func (s *Store) Admit(rawCode string, user models.User) (models.LobbySnapshot, error) {
	code, err := NormalizeCode(rawCode)
	if err != nil {
		return models.LobbySnapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	id, ok := s.byCode[code]
	if !ok {
		return models.LobbySnapshot{}, ErrNotFound
	}
	l := s.lobbies[id]
	s.expireIfOverdue(l, now)
	if l.Status != models.LobbyWaiting {
		return models.LobbySnapshot{}, ErrNotFound
	}
	if l.isParticipant(user.ID) {
		return l.snapshot(now), nil
	}
	if len(l.Participants) >= l.MaxParticipants {
		return models.LobbySnapshot{}, ErrFull
	}

	l.Participants = append(l.Participants, models.Participant{
		UserID:    user.ID,
		Username:  user.Username,
		AvatarURL: user.AvatarURL,
		JoinedAt:  now,
	})
	return l.snapshot(now), nil
}

// Snapshot returns the current state of a lobby for one of its participants.
// Terminal and expired lobbies read as not found; a disbanded lobby simply
// disappears from its former participants' point of view.
func (s *Store) Snapshot(lobbyID, callerID uuid.UUID) (models.LobbySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	l, ok := s.lobbies[lobbyID]
	if !ok {
		return models.LobbySnapshot{}, ErrNotFound
	}
	s.expireIfOverdue(l, now)
	if l.Status.Terminal() {
		return models.LobbySnapshot{}, ErrNotFound
	}
	if !l.isParticipant(callerID) {
		return models.LobbySnapshot{}, ErrForbidden
	}
	return l.snapshot(now), nil
}

// PatchHostState merges a partial host-state update into an active lobby.
// Only the host may write; the lobby reads as not found unless active.
func (s *Store) PatchHostState(lobbyID, callerID uuid.UUID, patch *models.HostStatePatch) (models.LobbySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	l, ok := s.lobbies[lobbyID]
	if !ok {
		return models.LobbySnapshot{}, ErrNotFound
	}
	s.expireIfOverdue(l, now)
	if l.Status != models.LobbyActive {
		return models.LobbySnapshot{}, ErrNotFound
	}
	if callerID != l.HostID {
		return models.LobbySnapshot{}, ErrForbidden
	}

	l.applyPatch(patch, now)
	return l.snapshot(now), nil
}

// Start moves a waiting lobby to active. Host only.
func (s *Store) Start(lobbyID, callerID uuid.UUID) (models.LobbySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	l, ok := s.lobbies[lobbyID]
	if !ok {
		return models.LobbySnapshot{}, ErrNotFound
	}
	s.expireIfOverdue(l, now)
	if l.Status.Terminal() {
		return models.LobbySnapshot{}, ErrNotFound
	}
	if callerID != l.HostID {
		return models.LobbySnapshot{}, ErrForbidden
	}
	if err := l.start(); err != nil {
		return models.LobbySnapshot{}, err
	}
	// Stamp the host state so the lobby does not read as host-offline
	// before the first push arrives.
	l.HostState.UpdatedAt = now
	return l.snapshot(now), nil
}

// Leave removes a participant. A leaving host disbands the whole lobby
// (status completed, no rewards); any other participant is simply dropped.
// Returns whether the lobby was disbanded.
func (s *Store) Leave(lobbyID, userID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	l, ok := s.lobbies[lobbyID]
	if !ok {
		return false, ErrNotFound
	}
	s.expireIfOverdue(l, now)
	if l.Status.Terminal() {
		return false, ErrNotFound
	}
	if !l.isParticipant(userID) {
		return false, ErrForbidden
	}

	if userID == l.HostID {
		l.complete(now)
		s.releaseIndexes(l)
		log.Printf("lobby %s disbanded by host %s", l.ID, userID)
		return true, nil
	}
	l.removeParticipant(userID)
	return false, nil
}

// BeginCompletion validates that the caller may finalize the lobby and
// returns a stable participant snapshot for the reward loop. An
// already-completed lobby is accepted so that completion retries can
// re-report per-participant results; a waiting lobby is a conflict.
func (s *Store) BeginCompletion(lobbyID, callerID uuid.UUID) (models.LobbySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	l, ok := s.lobbies[lobbyID]
	if !ok {
		return models.LobbySnapshot{}, ErrNotFound
	}
	s.expireIfOverdue(l, now)
	if l.Status == models.LobbyClosed {
		return models.LobbySnapshot{}, ErrNotFound
	}
	if callerID != l.HostID {
		return models.LobbySnapshot{}, ErrForbidden
	}
	if l.Status == models.LobbyWaiting {
		return models.LobbySnapshot{}, ErrConflict
	}
	return l.snapshot(now), nil
}

// FinishCompletion transitions the lobby to completed after the reward loop
// ran. Idempotent; returns the completion timestamp.
func (s *Store) FinishCompletion(lobbyID uuid.UUID) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	l, ok := s.lobbies[lobbyID]
	if !ok {
		return time.Time{}, ErrNotFound
	}
	if l.Status == models.LobbyClosed {
		return time.Time{}, ErrNotFound
	}
	wasTerminal := l.Status.Terminal()
	l.complete(now)
	if !wasTerminal {
		s.releaseIndexes(l)
	}
	return *l.CompletedAt, nil
}

// ForceClose transitions any non-terminal lobby to closed. Reserved for
// privileged callers; the handler performs the permission check.
func (s *Store) ForceClose(lobbyID uuid.UUID) (models.LobbySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	l, ok := s.lobbies[lobbyID]
	if !ok || l.Status.Terminal() {
		return models.LobbySnapshot{}, ErrNotFound
	}
	l.close(now)
	s.releaseIndexes(l)
	log.Printf("lobby %s force-closed", l.ID)
	return l.snapshot(now), nil
}

// RunReaper sweeps the store until ctx is done: overdue non-terminal lobbies
// are closed, and terminal lobbies past the retention window are dropped.
func (s *Store) RunReaper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Store) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	for id, l := range s.lobbies {
		s.expireIfOverdue(l, now)
		if !l.Status.Terminal() {
			continue
		}
		terminalAt := l.ClosedAt
		if l.CompletedAt != nil {
			terminalAt = l.CompletedAt
		}
		if terminalAt != nil && now.Sub(*terminalAt) > terminalRetention {
			delete(s.lobbies, id)
			log.Printf("lobby %s reaped", id)
		}
	}
}

// internal/lobby/lobby.go
package lobby

import (
	"time"

	"github.com/google/uuid"
	"github.com/ilushkaDushni/walkmap-sub001/internal/models"
)

const (
	// DefaultMaxParticipants is the lobby capacity when creation does not
	// specify one.
	DefaultMaxParticipants = 5

	// SessionTTL is how long a lobby may live before it is considered
	// expired. Expiry is checked on every read and admission; the reaper
	// additionally closes overdue lobbies in the background.
	SessionTTL = 4 * time.Hour

	// HostOfflineAfter is the staleness threshold after which an active
	// lobby's host counts as offline on reads.
	HostOfflineAfter = 30 * time.Second
)

// Lobby is one ephemeral group-walk session. All fields are guarded by the
// owning Store's mutex; methods on Lobby assume that lock is held.
type Lobby struct {
	ID              uuid.UUID
	RouteID         uuid.UUID
	HostID          uuid.UUID
	JoinCode        string
	Status          models.LobbyStatus
	Participants    []models.Participant
	MaxParticipants int
	HostState       models.HostState
	CreatedAt       time.Time
	ExpiresAt       time.Time
	CompletedAt     *time.Time
	ClosedAt        *time.Time
}

func newLobby(host models.Participant, routeID uuid.UUID, maxParticipants int, code string, now time.Time) *Lobby {
	host.JoinedAt = now
	return &Lobby{
		ID:              uuid.New(),
		RouteID:         routeID,
		HostID:          host.UserID,
		JoinCode:        code,
		Status:          models.LobbyWaiting,
		Participants:    []models.Participant{host},
		MaxParticipants: maxParticipants,
		HostState: models.HostState{
			Position:               nil,
			Progress:               0,
			TriggeredCheckpointIDs: []string{},
			TotalCoins:             0,
			Audio:                  models.AudioState{UpdatedAt: now},
			UpdatedAt:              now,
		},
		CreatedAt: now,
		ExpiresAt: now.Add(SessionTTL),
	}
}

// expired reports whether a non-terminal lobby has outlived its TTL.
func (l *Lobby) expired(now time.Time) bool {
	return !l.Status.Terminal() && now.After(l.ExpiresAt)
}

func (l *Lobby) isParticipant(userID uuid.UUID) bool {
	for _, p := range l.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

func (l *Lobby) removeParticipant(userID uuid.UUID) {
	for i, p := range l.Participants {
		if p.UserID == userID {
			l.Participants = append(l.Participants[:i], l.Participants[i+1:]...)
			return
		}
	}
}

// applyPatch merges a partial host-state update. Absent fields are left
// untouched; progress is clamped to [0,1]; the audio section is stamped
// independently of the top-level UpdatedAt.
func (l *Lobby) applyPatch(patch *models.HostStatePatch, now time.Time) {
	if patch.Position != nil {
		pos := *patch.Position
		l.HostState.Position = &pos
	}
	if patch.Progress != nil {
		l.HostState.Progress = clampProgress(*patch.Progress)
	}
	if patch.TriggeredCheckpointIDs != nil {
		l.HostState.TriggeredCheckpointIDs = dedupe(patch.TriggeredCheckpointIDs)
	}
	if patch.TotalCoins != nil {
		l.HostState.TotalCoins = *patch.TotalCoins
	}
	if patch.Audio != nil {
		l.HostState.Audio = models.AudioState{
			IsPlaying:   patch.Audio.IsPlaying,
			TrackIndex:  patch.Audio.TrackIndex,
			CurrentTime: patch.Audio.CurrentTime,
			UpdatedAt:   now,
		}
	}
	l.HostState.UpdatedAt = now
}

func clampProgress(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// start moves waiting -> active.
func (l *Lobby) start() error {
	switch l.Status {
	case models.LobbyWaiting:
		l.Status = models.LobbyActive
		return nil
	case models.LobbyActive:
		return ErrConflict
	default:
		return ErrNotFound
	}
}

// complete moves the lobby to completed and stamps CompletedAt. Calling it
// on an already-completed lobby is a no-op so completion retries stay safe.
func (l *Lobby) complete(now time.Time) {
	if l.Status == models.LobbyCompleted {
		return
	}
	l.Status = models.LobbyCompleted
	t := now
	l.CompletedAt = &t
}

// close moves any non-terminal lobby to closed.
func (l *Lobby) close(now time.Time) {
	l.Status = models.LobbyClosed
	t := now
	l.ClosedAt = &t
}

// snapshot copies the lobby into a read-only view and derives HostOffline.
func (l *Lobby) snapshot(now time.Time) models.LobbySnapshot {
	participants := make([]models.Participant, len(l.Participants))
	copy(participants, l.Participants)

	hostState := l.HostState
	if l.HostState.Position != nil {
		pos := *l.HostState.Position
		hostState.Position = &pos
	}
	hostState.TriggeredCheckpointIDs = append([]string(nil), l.HostState.TriggeredCheckpointIDs...)

	return models.LobbySnapshot{
		ID:              l.ID,
		RouteID:         l.RouteID,
		HostID:          l.HostID,
		JoinCode:        l.JoinCode,
		Status:          l.Status,
		Participants:    participants,
		MaxParticipants: l.MaxParticipants,
		HostState:       hostState,
		HostOffline:     l.Status == models.LobbyActive && now.Sub(l.HostState.UpdatedAt) > HostOfflineAfter,
		CreatedAt:       l.CreatedAt,
		ExpiresAt:       l.ExpiresAt,
		CompletedAt:     l.CompletedAt,
		ClosedAt:        l.ClosedAt,
	}
}

// internal/models/lobby.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// LobbyStatus is the lifecycle state of a walk lobby.
type LobbyStatus string

const (
	LobbyWaiting   LobbyStatus = "waiting"
	LobbyActive    LobbyStatus = "active"
	LobbyCompleted LobbyStatus = "completed"
	LobbyClosed    LobbyStatus = "closed"
)

// Terminal reports whether no further transitions are possible.
func (s LobbyStatus) Terminal() bool {
	return s == LobbyCompleted || s == LobbyClosed
}

// Participant is one member of a lobby. The host is always participants[0].
type Participant struct {
	UserID    uuid.UUID `json:"userId"`
	Username  string    `json:"username"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	JoinedAt  time.Time `json:"joinedAt"`
}

// Position is a WGS84 coordinate reported by the host's device.
type Position struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// AudioState describes the host's audio playback at the moment of its last flush.
// UpdatedAt is stamped server-side whenever the audio section is patched, so
// readers can project the expected playhead forward in wall-clock time.
type AudioState struct {
	IsPlaying   bool      `json:"isPlaying"`
	TrackIndex  int       `json:"trackIndex"`
	CurrentTime float64   `json:"currentTime"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// HostState is the live host-authored payload. Only the host writes it;
// every other participant reads it as-is.
type HostState struct {
	Position               *Position  `json:"position"`
	Progress               float64    `json:"progress"`
	TriggeredCheckpointIDs []string   `json:"triggeredCheckpointIds"`
	TotalCoins             int        `json:"totalCoins"`
	Audio                  AudioState `json:"audio"`
	UpdatedAt              time.Time  `json:"updatedAt"`
}

// HostStatePatch carries a partial host-state update. Nil fields are left
// unchanged; the audio section is replaced as a whole when present.
type HostStatePatch struct {
	Position               *Position    `json:"position,omitempty"`
	Progress               *float64     `json:"progress,omitempty"`
	TriggeredCheckpointIDs []string     `json:"triggeredCheckpointIds,omitempty"`
	TotalCoins             *int         `json:"totalCoins,omitempty"`
	Audio                  *AudioUpdate `json:"audio,omitempty"`
}

// Empty reports whether the patch carries no fields at all.
func (p *HostStatePatch) Empty() bool {
	return p.Position == nil && p.Progress == nil && p.TriggeredCheckpointIDs == nil &&
		p.TotalCoins == nil && p.Audio == nil
}

// AudioUpdate is the host's audio section as written by a patch, before the
// server stamps UpdatedAt.
type AudioUpdate struct {
	IsPlaying   bool    `json:"isPlaying"`
	TrackIndex  int     `json:"trackIndex"`
	CurrentTime float64 `json:"currentTime"`
}

// LobbySnapshot is a read-only copy of a lobby handed to participants.
// HostOffline is derived at read time, never stored.
type LobbySnapshot struct {
	ID              uuid.UUID     `json:"id"`
	RouteID         uuid.UUID     `json:"routeId"`
	HostID          uuid.UUID     `json:"hostId"`
	JoinCode        string        `json:"joinCode"`
	Status          LobbyStatus   `json:"status"`
	Participants    []Participant `json:"participants"`
	MaxParticipants int           `json:"maxParticipants"`
	HostState       HostState     `json:"hostState"`
	HostOffline     bool          `json:"hostOffline"`
	CreatedAt       time.Time     `json:"createdAt"`
	ExpiresAt       time.Time     `json:"expiresAt"`
	CompletedAt     *time.Time    `json:"completedAt,omitempty"`
	ClosedAt        *time.Time    `json:"closedAt,omitempty"`
}

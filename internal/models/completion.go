// internal/models/completion.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// ParticipantReward is the per-participant outcome of completing a walk.
type ParticipantReward struct {
	UserID            uuid.UUID `json:"userId"`
	Username          string    `json:"username"`
	CoinsAwarded      int       `json:"coinsAwarded"`
	NewAchievements   []string  `json:"newAchievements"`
	AchievementReward int       `json:"achievementReward"`
	AlreadyCompleted  bool      `json:"alreadyCompleted"`
	Error             string    `json:"error,omitempty"`
}

// CompletionSummary aggregates the results of finishing a lobby.
type CompletionSummary struct {
	LobbyID     uuid.UUID           `json:"lobbyId"`
	RouteID     uuid.UUID           `json:"routeId"`
	RouteTitle  string              `json:"routeTitle"`
	Results     []ParticipantReward `json:"results"`
	CompletedAt time.Time           `json:"completedAt"`
}

// AchievementResult is what the achievement evaluator returns for one user.
type AchievementResult struct {
	Unlocked   []string `json:"unlocked"`
	BonusCoins int      `json:"bonusCoins"`
}

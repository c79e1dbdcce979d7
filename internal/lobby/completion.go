// internal/lobby/completion.go
package lobby

import (
	"context"

	"github.com/google/uuid"
	"github.com/ilushkaDushni/walkmap-sub001/internal/models"
	"github.com/sirupsen/logrus"
)

// DefaultRewardCoins applies when a route defines no reward of its own.
const DefaultRewardCoins = 10

// RouteDirectory resolves route references. Implementations return
// ErrRouteNotFound for unknown ids.
type RouteDirectory interface {
	Route(ctx context.Context, id uuid.UUID) (*models.Route, error)
}

// RewardLedger is the durable reward store. RecordCompletion must enforce
// (userID, routeID) uniqueness atomically: it returns false with a nil error
// when the pair already exists, which the coordinator treats as "already
// completed", not as a failure.
type RewardLedger interface {
	RecordCompletion(ctx context.Context, userID, routeID, lobbyID uuid.UUID) (bool, error)
	GrantCoins(ctx context.Context, userID uuid.UUID, amount int, lobbyID, routeID uuid.UUID) (int, error)
}

// AchievementEvaluator is the external achievement engine. It is invoked for
// every participant on every completion, including already-rewarded ones,
// since unrelated achievements may have newly become eligible.
type AchievementEvaluator interface {
	Evaluate(ctx context.Context, userID uuid.UUID) (models.AchievementResult, error)
}

// Coordinator finalizes a walk: it awards each participant exactly once per
// route, runs achievement evaluation, and closes the session.
type Coordinator struct {
	store        *Store
	routes       RouteDirectory
	ledger       RewardLedger
	achievements AchievementEvaluator
	logger       *logrus.Logger
}

func NewCoordinator(store *Store, routes RouteDirectory, ledger RewardLedger, achievements AchievementEvaluator, logger *logrus.Logger) *Coordinator {
	return &Coordinator{
		store:        store,
		routes:       routes,
		ledger:       ledger,
		achievements: achievements,
		logger:       logger,
	}
}

// Complete runs the completion flow for a lobby on behalf of its host.
// Re-invocation is safe: duplicate rewards are absorbed into
// alreadyCompleted results, and the lobby transition is idempotent. One
// participant's failure never blocks the others.
func (c *Coordinator) Complete(ctx context.Context, lobbyID, callerID uuid.UUID) (*models.CompletionSummary, error) {
	snap, err := c.store.BeginCompletion(lobbyID, callerID)
	if err != nil {
		return nil, err
	}

	route, err := c.routes.Route(ctx, snap.RouteID)
	if err != nil {
		return nil, err
	}
	coins := route.RewardCoins
	if coins <= 0 {
		coins = DefaultRewardCoins
	}

	results := make([]models.ParticipantReward, 0, len(snap.Participants))
	for _, p := range snap.Participants {
		results = append(results, c.rewardParticipant(ctx, p, snap.ID, snap.RouteID, coins))
	}

	completedAt, err := c.store.FinishCompletion(lobbyID)
	if err != nil {
		return nil, err
	}

	return &models.CompletionSummary{
		LobbyID:     snap.ID,
		RouteID:     snap.RouteID,
		RouteTitle:  route.Title,
		Results:     results,
		CompletedAt: completedAt,
	}, nil
}

func (c *Coordinator) rewardParticipant(ctx context.Context, p models.Participant, lobbyID, routeID uuid.UUID, coins int) models.ParticipantReward {
	res := models.ParticipantReward{
		UserID:          p.UserID,
		Username:        p.Username,
		NewAchievements: []string{},
	}

	created, err := c.ledger.RecordCompletion(ctx, p.UserID, routeID, lobbyID)
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"lobby": lobbyID,
			"user":  p.UserID,
			"route": routeID,
		}).Errorf("record completion failed: %v", err)
		res.Error = "reward could not be recorded"
		return res
	}

	if !created {
		res.AlreadyCompleted = true
	} else {
		balance, err := c.ledger.GrantCoins(ctx, p.UserID, coins, lobbyID, routeID)
		if err != nil {
			c.logger.WithFields(logrus.Fields{
				"lobby": lobbyID,
				"user":  p.UserID,
			}).Errorf("grant coins failed: %v", err)
			res.Error = "reward could not be credited"
		} else {
			res.CoinsAwarded = coins
			c.logger.WithFields(logrus.Fields{
				"lobby":   lobbyID,
				"user":    p.UserID,
				"coins":   coins,
				"balance": balance,
			}).Info("route reward granted")
		}
	}

	ach, err := c.achievements.Evaluate(ctx, p.UserID)
	if err != nil {
		c.logger.Warnf("achievement evaluation failed for user %s: %v", p.UserID, err)
		return res
	}
	if ach.Unlocked != nil {
		res.NewAchievements = ach.Unlocked
	}
	res.AchievementReward = ach.BonusCoins
	return res
}

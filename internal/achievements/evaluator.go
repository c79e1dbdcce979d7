// internal/achievements/evaluator.go
package achievements

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/ilushkaDushni/walkmap-sub001/internal/database"
	"github.com/ilushkaDushni/walkmap-sub001/internal/models"
)

// tiers are the walk-count achievements this evaluator knows about. Each
// unlocks once per user; the unique insert in the database layer enforces
// that regardless of how often evaluation runs.
var tiers = []struct {
	count int
	id    string
	bonus int
}{
	{1, "first_walk", 25},
	{5, "wandering_five", 50},
	{10, "ten_routes", 100},
	{25, "trailblazer", 250},
}

// Evaluator re-checks a user's achievements and returns anything newly
// unlocked plus the bonus coins granted for it. Evaluation is safe to run
// repeatedly for the same user.
type Evaluator struct{}

func (Evaluator) Evaluate(ctx context.Context, userID uuid.UUID) (models.AchievementResult, error) {
	var res models.AchievementResult

	completions, err := database.CountRouteCompletions(ctx, userID)
	if err != nil {
		return res, fmt.Errorf("count completions: %w", err)
	}

	for _, tier := range tiers {
		if completions < tier.count {
			continue
		}
		created, err := database.InsertUserAchievement(ctx, userID, tier.id)
		if err != nil {
			return res, fmt.Errorf("unlock %s: %w", tier.id, err)
		}
		if created {
			res.Unlocked = append(res.Unlocked, tier.id)
			res.BonusCoins += tier.bonus
		}
	}

	if res.BonusCoins > 0 {
		if _, err := database.GrantCoins(ctx, userID, res.BonusCoins, "achievement", nil, nil); err != nil {
			return res, fmt.Errorf("grant achievement bonus: %w", err)
		}
	}
	return res, nil
}

// Noop is an evaluator for deployments without achievements.
type Noop struct{}

func (Noop) Evaluate(ctx context.Context, userID uuid.UUID) (models.AchievementResult, error) {
	return models.AchievementResult{}, nil
}

package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// InsertRouteCompletion records that a user finished a route. The
// route_completions table carries UNIQUE (user_id, route_id); that
// constraint is the single source of truth for "already rewarded", so a
// duplicate-key rejection is reported as (false, nil) rather than an error.
// This is what keeps completion idempotent under retries and concurrent
// callers.
func InsertRouteCompletion(ctx context.Context, userID, routeID, lobbyID uuid.UUID) (bool, error) {
	q := `
	INSERT INTO route_completions (user_id, route_id, lobby_id, completed_at)
	VALUES ($1, $2, $3, NOW())
	`
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, execErr := tx.Exec(ctx, q, userID, routeID, lobbyID)
		return execErr
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return false, nil
		}
		return false, fmt.Errorf("failed to insert route completion: %w", err)
	}
	return true, nil
}

// GrantCoins atomically increments the user's balance and appends a ledger
// entry recording the amount, the resulting balance, and provenance. Both
// writes share one transaction.
func GrantCoins(ctx context.Context, userID uuid.UUID, amount int, entryType string, lobbyID, routeID *uuid.UUID) (int, error) {
	var balance int
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`UPDATE users SET coins = coins + $1 WHERE id = $2 RETURNING coins`,
			amount, userID,
		).Scan(&balance)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO coin_ledger (user_id, entry_type, amount, balance, lobby_id, route_id, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
			userID, entryType, amount, balance, lobbyID, routeID,
		)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to grant coins: %w", err)
	}
	return balance, nil
}

// CountRouteCompletions returns how many distinct routes the user has
// finished. Used by the achievement evaluator.
func CountRouteCompletions(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := DB.QueryRow(ctx,
		`SELECT COUNT(*) FROM route_completions WHERE user_id = $1`, userID,
	).Scan(&n)
	return n, err
}

// InsertUserAchievement unlocks an achievement at most once per user.
// Returns whether this call created the row.
func InsertUserAchievement(ctx context.Context, userID uuid.UUID, achievementID string) (bool, error) {
	tag, err := DB.Exec(ctx,
		`INSERT INTO user_achievements (user_id, achievement_id, unlocked_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (user_id, achievement_id) DO NOTHING`,
		userID, achievementID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert user achievement: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

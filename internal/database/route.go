package database

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/ilushkaDushni/walkmap-sub001/internal/lobby"
	"github.com/ilushkaDushni/walkmap-sub001/internal/models"
)

// GetRoute fetches a route definition by id. Unknown routes surface as
// lobby.ErrRouteNotFound so callers can distinguish them from storage
// faults.
func GetRoute(ctx context.Context, id uuid.UUID) (*models.Route, error) {
	var r models.Route
	q := `
	SELECT id, title, reward_coins
	FROM routes
	WHERE id=$1
	`
	err := DB.QueryRow(ctx, q, id).Scan(&r.ID, &r.Title, &r.RewardCoins)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, lobby.ErrRouteNotFound
		}
		return nil, err
	}
	return &r, nil
}

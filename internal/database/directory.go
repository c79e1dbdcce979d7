package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/ilushkaDushni/walkmap-sub001/internal/models"
)

// Directory adapts the package-level lookup functions to the collaborator
// interfaces the session engine consumes.
type Directory struct{}

func (Directory) Route(ctx context.Context, id uuid.UUID) (*models.Route, error) {
	return GetRoute(ctx, id)
}

func (Directory) User(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return GetUserByID(ctx, id)
}

// Ledger adapts the reward functions to the engine's RewardLedger interface.
// Route rewards are recorded with provenance pointing at the lobby and
// route that produced them.
type Ledger struct{}

func (Ledger) RecordCompletion(ctx context.Context, userID, routeID, lobbyID uuid.UUID) (bool, error) {
	return InsertRouteCompletion(ctx, userID, routeID, lobbyID)
}

func (Ledger) GrantCoins(ctx context.Context, userID uuid.UUID, amount int, lobbyID, routeID uuid.UUID) (int, error) {
	return GrantCoins(ctx, userID, amount, "route_reward", &lobbyID, &routeID)
}

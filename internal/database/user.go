package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/ilushkaDushni/walkmap-sub001/internal/models"
)

// GetUserByID loads the profile fields the session engine needs: display
// name and avatar for the participant list, coins for reward balances, and
// the admin flag for force-close authorization.
func GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	var avatar *string
	q := `
	SELECT id, username, avatar_url, coins, is_admin
	FROM users
	WHERE id=$1
	`
	err := DB.QueryRow(ctx, q, id).Scan(&u.ID, &u.Username, &avatar, &u.Coins, &u.IsAdmin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", id, pgx.ErrNoRows)
		}
		return nil, err
	}
	if avatar != nil {
		u.AvatarURL = *avatar
	}
	return &u, nil
}

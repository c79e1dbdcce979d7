// internal/models/route.go
package models

import "github.com/google/uuid"

// Route is the externally-owned route definition a lobby walks along.
// RewardCoins of 0 means the route defines no reward and the default applies.
type Route struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	RewardCoins int       `json:"rewardCoins"`
}

package user

import "time"

// Profile is the subset of a user record checkout reads.
type Profile struct {
	ID        uint      `json:"id"`
	Email     string    `json:"email"`
	Address   *string   `json:"address,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

package entity

import "time"

// RefreshSession is what the server remembers about an issued refresh token.
// Only the sha256 hash of the raw token is ever stored.
type RefreshSession struct {
	TokenHash string    `json:"-"`
	UserId    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

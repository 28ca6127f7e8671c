package domain

import "time"

// Tier enumerates account billing tiers.
type Tier string

const (
	TierStandard Tier = "standard"
	// TierUnlimited accounts are topped up with a session reload instead of
	// being rejected for low balance.
	TierUnlimited Tier = "unlimited"
)

// User is the account that owns jobs and the credit balance.
type User struct {
	ID             string
	Email          string
	Tier           Tier
	CreditsBalance int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsUnlimited reports whether the user is on the session-reload tier.
func (u User) IsUnlimited() bool {
	return u.Tier == TierUnlimited
}

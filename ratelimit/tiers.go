package ratelimit

import "time"

const (
	TierStrict   = "strict"
	TierStandard = "standard"
	TierRelaxed  = "relaxed"
	TierAdmin    = "admin"

	DefaultSweepInterval = time.Minute
)

// DefaultTiers returns the storefront's policy tiers:
// strict for login, password reset and contact forms, standard for general
// mutations, relaxed for public reads and admin for authenticated admin writes.
func DefaultTiers() map[string]Rule {
	return map[string]Rule{
		TierStrict:   {Window: time.Minute, Max: 5},
		TierStandard: {Window: time.Minute, Max: 30},
		TierRelaxed:  {Window: time.Minute, Max: 100},
		TierAdmin:    {Window: time.Minute, Max: 20},
	}
}

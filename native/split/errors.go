package split

import "errors"

var (
	ErrNilConfig       = errors.New("split: nil config")
	ErrNotActive       = errors.New("split: scope not active")
	ErrWrongToken      = errors.New("split: payout token mismatch")
	ErrNoLevels        = errors.New("split: no referral levels configured")
	ErrInvalidPool     = errors.New("split: pool must be positive")
	ErrBpsOverflow     = errors.New("split: percentages exceed denominator")
	ErrInvalidTreasury = errors.New("split: treasury not configured")
	ErrUnknownToken    = errors.New("split: token gateway not registered")
)

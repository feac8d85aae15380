package split

import "math/big"

// BpsDenominator is the percentage scale: hundredths of a percent,
// 10_000 = 100%.
const BpsDenominator = 10_000

// Scope is the stable key grouping split and referral-level configuration.
// It is derived by widening a collection identifier into the splitter's
// 32-byte key space, which is collision-free for distinct collections.
type Scope [32]byte

// DeriveScope widens a collection identifier into a Scope.
func DeriveScope(collection [20]byte) Scope {
	var scope Scope
	copy(scope[32-len(collection):], collection[:])
	return scope
}

// Config is the per-scope split configuration. PoolBps is the slice of each
// sale withheld into the pool; CashbackBps and the level table divide that
// pool. The remainder always falls to the treasury.
type Config struct {
	CashbackBps     uint32
	PoolBps         uint32
	Treasury        [20]byte
	RecycleToBuyer  bool
	RecycleToSeller bool
	RequireReferrer bool
	PayToken        [20]byte
	Active          bool
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// ValidateConfig enforces the arithmetic invariants at configuration time so
// settlement can never produce a negative treasury remainder: every percentage
// is within range and cashback plus all level shares sum to at most 100%.
func ValidateConfig(cfg *Config, levels []uint32) error {
	if cfg == nil {
		return ErrNilConfig
	}
	if cfg.PoolBps > BpsDenominator {
		return ErrBpsOverflow
	}
	total := uint64(cfg.CashbackBps)
	for _, bps := range levels {
		total += uint64(bps)
	}
	if total > BpsDenominator {
		return ErrBpsOverflow
	}
	if cfg.Active && cfg.Treasury == ([20]byte{}) {
		return ErrInvalidTreasury
	}
	return nil
}

// Settlement reports how a single pool amount was distributed.
type Settlement struct {
	Scope         Scope
	Buyer         [20]byte
	Seller        [20]byte
	PayToken      [20]byte
	Pool          *big.Int
	ToBuyer       *big.Int
	ReferrerTotal *big.Int
	ToSeller      *big.Int
	ToTreasury    *big.Int
	LevelsPaid    int
}

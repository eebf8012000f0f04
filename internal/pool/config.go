package pool

import (
	"math"

	errorsmod "cosmossdk.io/errors"
)

const (
	// MaxCommissionRate caps the administrator's cut, in percent.
	MaxCommissionRate = 30

	// MinPlayWindow is the minimum distance, in seconds, between pool
	// creation and the effective play end. A play end submitted any earlier
	// is lifted to now + MinPlayWindow so the enrollment window is never
	// degenerate.
	MinPlayWindow = 600

	// ClaimGracePeriod is the fixed 30-day window, in seconds, that prize
	// and refund claims stay open after the play end.
	ClaimGracePeriod = 2_592_000
)

// Params are the construction inputs for a pool, as submitted by the
// creator. Timestamps are unix seconds and are clamped, not rejected, when
// they lie in the past (see NewConfig).
type Params struct {
	Creator        string `json:"creator"`
	WithdrawTarget string `json:"withdrawTarget"`
	IntakeOpen     bool   `json:"intakeOpen"`
	EntryPrice     uint64 `json:"entryPrice"`
	CommissionRate uint64 `json:"commissionRate"`
	EnrollStart    int64  `json:"enrollStart"`
	PlayEnd        int64  `json:"playEnd"`

	// TokenDenom selects token settlement when non-empty; the empty string
	// selects native settlement.
	TokenDenom string `json:"tokenDenom,omitempty"`
}

// Config is the fixed configuration of a pool. All fields except
// WithdrawTarget are immutable after construction; WithdrawTarget may be
// repointed by the creator through Controller.SetWithdrawTarget.
type Config struct {
	Creator        string `json:"creator"`
	WithdrawTarget string `json:"withdrawTarget"`
	EntryPrice     uint64 `json:"entryPrice"`
	CommissionRate uint64 `json:"commissionRate"`
	EnrollStart    int64  `json:"enrollStart"`
	PlayEnd        int64  `json:"playEnd"`
	ClaimExpiry    int64  `json:"claimExpiry"`
	TokenDenom     string `json:"tokenDenom,omitempty"`
}

// NewConfig validates params and derives the effective window timestamps.
//
// Clamps: EnrollStart is lifted to now if submitted in the past; PlayEnd is
// lifted to now + MinPlayWindow if submitted any earlier. ClaimExpiry is the
// *submitted* PlayEnd + ClaimGracePeriod — the raw input, not the clamped
// value, anchors the claim window.
func NewConfig(p Params, now int64) (Config, error) {
	if p.Creator == "" {
		return Config{}, errorsmod.Wrap(ErrInvalidConfig, "empty creator")
	}
	if p.WithdrawTarget == "" {
		return Config{}, errorsmod.Wrap(ErrInvalidConfig, "empty withdraw target")
	}
	if p.EntryPrice == 0 {
		return Config{}, errorsmod.Wrap(ErrInvalidConfig, "entry price must be positive")
	}
	if p.CommissionRate > MaxCommissionRate {
		return Config{}, errorsmod.Wrapf(ErrInvalidConfig, "commission rate %d exceeds maximum %d", p.CommissionRate, MaxCommissionRate)
	}
	if p.PlayEnd > math.MaxInt64-ClaimGracePeriod {
		return Config{}, errorsmod.Wrap(ErrInvalidConfig, "play end overflows claim expiry")
	}

	enrollStart := p.EnrollStart
	if enrollStart < now {
		enrollStart = now
	}
	playEnd := p.PlayEnd
	if min := now + MinPlayWindow; playEnd < min {
		playEnd = min
	}
	if enrollStart > playEnd {
		return Config{}, errorsmod.Wrapf(ErrInvalidConfig, "enrollment start %d after play end %d", enrollStart, playEnd)
	}

	return Config{
		Creator:        p.Creator,
		WithdrawTarget: p.WithdrawTarget,
		EntryPrice:     p.EntryPrice,
		CommissionRate: p.CommissionRate,
		EnrollStart:    enrollStart,
		PlayEnd:        playEnd,
		ClaimExpiry:    p.PlayEnd + ClaimGracePeriod,
		TokenDenom:     p.TokenDenom,
	}, nil
}

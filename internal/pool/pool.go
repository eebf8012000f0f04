package pool

import (
	"sort"

	"merklepool/internal/merkle"
)

// Mode is the pool's post-play settlement mode. It is a single tagged value,
// not two booleans, so prize and refund modes cannot both be active: the
// exclusivity invariant is structural.
type Mode string

const (
	// ModeUndecided: no root published, refunds not enabled.
	ModeUndecided Mode = "undecided"
	// ModePrize: a prize root is published; refunds can never be enabled
	// against this pool again.
	ModePrize Mode = "prize"
	// ModeRefund: participants may reclaim their entry price. Reversible via
	// DisableRefund only while no refund has been paid.
	ModeRefund Mode = "refund"
)

// Record tracks one participant. Records are created lazily and never
// deleted; claim history is permanent.
type Record struct {
	Joined        bool `json:"joined"`
	PrizeClaimed  bool `json:"prizeClaimed,omitempty"`
	RefundClaimed bool `json:"refundClaimed,omitempty"`
}

// Pool is the mutable ledger of one deployed pool. All writes go through a
// Controller; everything else reads.
type Pool struct {
	ID     uint64 `json:"id"`
	Config Config `json:"config"`

	IntakeOpen bool `json:"intakeOpen"`
	Mode       Mode `json:"mode"`

	// PrizeRoot is 32 bytes exactly when Mode == ModePrize, empty otherwise.
	PrizeRoot []byte `json:"prizeRoot,omitempty"`

	CommissionClaimed bool   `json:"commissionClaimed,omitempty"`
	ParticipantCount  uint32 `json:"participantCount"`
	PrizeClaimCount   uint32 `json:"prizeClaimCount,omitempty"`
	RefundClaimCount  uint32 `json:"refundClaimCount,omitempty"`

	// BalanceSnapshot is written exactly once, at root publication, and is
	// the commission denominator from then on.
	BalanceSnapshot uint64 `json:"balanceSnapshot,omitempty"`

	Participants map[string]*Record `json:"participants"`

	// busy rejects re-entrant mutating calls. Never serialized; a pool loaded
	// from disk is never mid-action.
	busy bool
}

// New creates the ledger for a freshly configured pool.
func New(id uint64, cfg Config, intakeOpen bool) *Pool {
	return &Pool{
		ID:           id,
		Config:       cfg,
		IntakeOpen:   intakeOpen,
		Mode:         ModeUndecided,
		Participants: map[string]*Record{},
	}
}

// Record returns the participant record for identity, or a zero record when
// none exists. Absence and "never joined" are equivalent.
func (p *Pool) Record(identity string) Record {
	if r := p.Participants[identity]; r != nil {
		return *r
	}
	return Record{}
}

// Joined reports whether identity has paid the entry price.
func (p *Pool) Joined(identity string) bool { return p.Record(identity).Joined }

// PrizeClaimedBy reports whether identity has redeemed a prize leaf.
func (p *Pool) PrizeClaimedBy(identity string) bool { return p.Record(identity).PrizeClaimed }

// RefundClaimedBy reports whether identity has reclaimed its entry price.
func (p *Pool) RefundClaimedBy(identity string) bool { return p.Record(identity).RefundClaimed }

// RefundActive reports whether refund mode is on.
func (p *Pool) RefundActive() bool { return p.Mode == ModeRefund }

// Root returns the published prize root, if any.
func (p *Pool) Root() (merkle.Hash, bool) {
	if p.Mode != ModePrize {
		return merkle.Hash{}, false
	}
	h, err := merkle.HashFromBytes(p.PrizeRoot)
	if err != nil {
		return merkle.Hash{}, false
	}
	return h, true
}

// record returns the participant record for identity, creating it when
// absent.
func (p *Pool) record(identity string) *Record {
	r := p.Participants[identity]
	if r == nil {
		r = &Record{}
		p.Participants[identity] = r
	}
	return r
}

// ---- Normalized view ----

// ParticipantKV is one participant entry in a normalized pool view.
type ParticipantKV struct {
	Identity string `json:"identity"`
	Record   Record `json:"record"`
}

// NormalizedPool is a deterministic view of a Pool: the participant map is
// flattened into a slice sorted by identity. Used for app-hash computation,
// where map iteration order must not leak into the digest.
type NormalizedPool struct {
	ID                uint64          `json:"id"`
	Config            Config          `json:"config"`
	IntakeOpen        bool            `json:"intakeOpen"`
	Mode              Mode            `json:"mode"`
	PrizeRoot         []byte          `json:"prizeRoot,omitempty"`
	CommissionClaimed bool            `json:"commissionClaimed,omitempty"`
	ParticipantCount  uint32          `json:"participantCount"`
	PrizeClaimCount   uint32          `json:"prizeClaimCount,omitempty"`
	RefundClaimCount  uint32          `json:"refundClaimCount,omitempty"`
	BalanceSnapshot   uint64          `json:"balanceSnapshot,omitempty"`
	Participants      []ParticipantKV `json:"participants"`
}

// Normalized returns the deterministic view of the pool.
func (p *Pool) Normalized() NormalizedPool {
	parts := make([]ParticipantKV, 0, len(p.Participants))
	for id, r := range p.Participants {
		parts = append(parts, ParticipantKV{Identity: id, Record: *r})
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].Identity < parts[j].Identity })

	return NormalizedPool{
		ID:                p.ID,
		Config:            p.Config,
		IntakeOpen:        p.IntakeOpen,
		Mode:              p.Mode,
		PrizeRoot:         p.PrizeRoot,
		CommissionClaimed: p.CommissionClaimed,
		ParticipantCount:  p.ParticipantCount,
		PrizeClaimCount:   p.PrizeClaimCount,
		RefundClaimCount:  p.RefundClaimCount,
		BalanceSnapshot:   p.BalanceSnapshot,
		Participants:      parts,
	}
}

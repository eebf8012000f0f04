package pool

import (
	"fmt"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"merklepool/internal/merkle"
)

// Adapter moves value in and out of the pool's escrow. The controller decides
// how much, to whom and when; the adapter only succeeds or fails. An adapter
// must never partially apply a movement.
type Adapter interface {
	// ValidatePayment checks that payer could pay amount into escrow right
	// now (balance, allowance). It moves nothing.
	ValidatePayment(payer string, amount uint64) error
	// ReceiveEntryPayment moves amount from payer into escrow.
	ReceiveEntryPayment(payer string, amount uint64) error
	// Pay moves amount out of escrow to the given identity.
	Pay(to string, amount uint64) error
	// PoolBalance returns the escrow's current balance.
	PoolBalance() uint64
}

// Controller is the only write path into a Pool. Every mutating operation is
// one indivisible unit: guards, ledger mutation and the outbound transfer
// either all take effect or none do, and a re-entrant mutating call issued
// from inside an adapter callback is rejected.
type Controller struct {
	pool    *Pool
	adapter Adapter
}

// NewController binds a pool to its settlement adapter.
func NewController(p *Pool, a Adapter) *Controller {
	return &Controller{pool: p, adapter: a}
}

// Pool returns the controlled ledger for read access.
func (c *Controller) Pool() *Pool { return c.pool }

// Adapter returns the bound settlement adapter.
func (c *Controller) Adapter() Adapter { return c.adapter }

// CurrentCommission returns the administrator's cut at this instant. Before
// root publication the base is the live escrow balance; after publication it
// is the snapshot taken at publication, so ongoing prize claims cannot move
// it. The product is computed in big integers so rate*base cannot overflow.
func (c *Controller) CurrentCommission() uint64 {
	base := c.adapter.PoolBalance()
	if c.pool.Mode == ModePrize {
		base = c.pool.BalanceSnapshot
	}
	out := sdkmath.NewIntFromUint64(c.pool.Config.CommissionRate).
		Mul(sdkmath.NewIntFromUint64(base)).
		QuoRaw(100)
	return out.Uint64()
}

func (c *Controller) begin() error {
	if c.pool.busy {
		return errorsmod.Wrap(ErrReentrantCall, "pool action already in flight")
	}
	c.pool.busy = true
	return nil
}

func (c *Controller) end() { c.pool.busy = false }

// undo captures every mutable pool field plus the single participant record
// an action may touch, so a failed outbound transfer can roll the whole
// action back.
type undo struct {
	intakeOpen        bool
	mode              Mode
	prizeRoot         []byte
	commissionClaimed bool
	participantCount  uint32
	prizeClaimCount   uint32
	refundClaimCount  uint32
	balanceSnapshot   uint64
	withdrawTarget    string

	recordKey     string
	recordExisted bool
	record        Record
}

func (c *Controller) snapshot(recordKey string) undo {
	u := undo{
		intakeOpen:        c.pool.IntakeOpen,
		mode:              c.pool.Mode,
		prizeRoot:         append([]byte(nil), c.pool.PrizeRoot...),
		commissionClaimed: c.pool.CommissionClaimed,
		participantCount:  c.pool.ParticipantCount,
		prizeClaimCount:   c.pool.PrizeClaimCount,
		refundClaimCount:  c.pool.RefundClaimCount,
		balanceSnapshot:   c.pool.BalanceSnapshot,
		withdrawTarget:    c.pool.Config.WithdrawTarget,
		recordKey:         recordKey,
	}
	if recordKey != "" {
		if r := c.pool.Participants[recordKey]; r != nil {
			u.recordExisted = true
			u.record = *r
		}
	}
	return u
}

func (c *Controller) restore(u undo) {
	c.pool.IntakeOpen = u.intakeOpen
	c.pool.Mode = u.mode
	c.pool.PrizeRoot = u.prizeRoot
	c.pool.CommissionClaimed = u.commissionClaimed
	c.pool.ParticipantCount = u.participantCount
	c.pool.PrizeClaimCount = u.prizeClaimCount
	c.pool.RefundClaimCount = u.refundClaimCount
	c.pool.BalanceSnapshot = u.balanceSnapshot
	c.pool.Config.WithdrawTarget = u.withdrawTarget
	if u.recordKey != "" {
		if u.recordExisted {
			r := u.record
			c.pool.Participants[u.recordKey] = &r
		} else {
			delete(c.pool.Participants, u.recordKey)
		}
	}
}

// Join enrolls payer for exactly the entry price. The payment is forwarded to
// escrow through the adapter; a transfer failure rolls the join back.
func (c *Controller) Join(payer string, payment uint64, now int64) (Event, error) {
	if err := c.begin(); err != nil {
		return Event{}, err
	}
	defer c.end()

	p := c.pool
	if !p.Config.EnrollmentOpen(now) {
		return Event{}, errorsmod.Wrapf(ErrEnrollmentClosed, "now=%d window=[%d,%d]", now, p.Config.EnrollStart, p.Config.PlayEnd)
	}
	if !p.IntakeOpen {
		return Event{}, errorsmod.Wrap(ErrIntakeClosed, "intake flag is off")
	}
	if p.Joined(payer) {
		return Event{}, errorsmod.Wrapf(ErrAlreadyJoined, "participant %s", payer)
	}
	if payment != p.Config.EntryPrice {
		return Event{}, errorsmod.Wrapf(ErrWrongPayment, "got %d want %d", payment, p.Config.EntryPrice)
	}
	if err := c.adapter.ValidatePayment(payer, payment); err != nil {
		return Event{}, errorsmod.Wrapf(ErrTransferFailed, "validate entry payment: %v", err)
	}

	u := c.snapshot(payer)
	r := p.record(payer)
	r.Joined = true
	p.ParticipantCount++

	if err := c.adapter.ReceiveEntryPayment(payer, payment); err != nil {
		c.restore(u)
		return Event{}, errorsmod.Wrapf(ErrTransferFailed, "receive entry payment: %v", err)
	}

	return newEvent(EventTypeParticipantJoined,
		Attr{Key: "participant", Value: payer},
		Attr{Key: "payment", Value: fmt.Sprintf("%d", payment)},
	), nil
}

// SetIntake flips the intake flag. Opening intake is rejected while the pool
// is in either settlement mode.
func (c *Controller) SetIntake(open bool, now int64) (Event, error) {
	if err := c.begin(); err != nil {
		return Event{}, err
	}
	defer c.end()

	p := c.pool
	if !p.Config.EnrollmentOpen(now) {
		return Event{}, errorsmod.Wrapf(ErrEnrollmentClosed, "now=%d window=[%d,%d]", now, p.Config.EnrollStart, p.Config.PlayEnd)
	}
	if open && p.Mode != ModeUndecided {
		return Event{}, errorsmod.Wrapf(ErrModeConflict, "cannot reopen intake in %s mode", p.Mode)
	}
	if open == p.IntakeOpen {
		return Event{}, errorsmod.Wrapf(ErrIntakeUnchanged, "intake already %v", open)
	}

	p.IntakeOpen = open

	return newEvent(EventTypeIntakeChanged,
		Attr{Key: "open", Value: fmt.Sprintf("%v", open)},
	), nil
}

// PublishRoot commits the prize distribution. It closes intake, snapshots the
// escrow balance as the commission denominator and enters prize mode, which
// is irreversible: refunds can never be enabled against a published root.
func (c *Controller) PublishRoot(root merkle.Hash, now int64) (Event, error) {
	if err := c.begin(); err != nil {
		return Event{}, err
	}
	defer c.end()

	p := c.pool
	if !p.Config.PlaytimeEnded(now) {
		return Event{}, errorsmod.Wrapf(ErrPlaytimeNotEnded, "now=%d playEnd=%d", now, p.Config.PlayEnd)
	}
	if !p.Config.WithinClaimWindow(now) {
		return Event{}, errorsmod.Wrapf(ErrClaimWindowClosed, "now=%d claimExpiry=%d", now, p.Config.ClaimExpiry)
	}
	switch p.Mode {
	case ModeRefund:
		return Event{}, errorsmod.Wrap(ErrModeConflict, "refund mode active")
	case ModePrize:
		return Event{}, errorsmod.Wrap(ErrRootAlreadyPublished, "")
	}
	if root.IsZero() {
		return Event{}, errorsmod.Wrap(ErrZeroRoot, "")
	}

	p.IntakeOpen = false
	p.BalanceSnapshot = c.adapter.PoolBalance()
	p.Mode = ModePrize
	p.PrizeRoot = root.Bytes()

	return newEvent(EventTypeRootPublished,
		Attr{Key: "root", Value: root.String()},
		Attr{Key: "balanceSnapshot", Value: fmt.Sprintf("%d", p.BalanceSnapshot)},
	), nil
}

// ClaimPrize redeems claimant's leaf. The proof must fold to the published
// root for exactly (claimant, amount); the leaf set is authoritative, so a
// claimant need not have joined through this pool's intake.
func (c *Controller) ClaimPrize(claimant string, amount uint64, proof []merkle.Hash, now int64) (Event, error) {
	if err := c.begin(); err != nil {
		return Event{}, err
	}
	defer c.end()

	p := c.pool
	if !p.Config.PlaytimeEnded(now) {
		return Event{}, errorsmod.Wrapf(ErrPlaytimeNotEnded, "now=%d playEnd=%d", now, p.Config.PlayEnd)
	}
	if !p.Config.WithinClaimWindow(now) {
		return Event{}, errorsmod.Wrapf(ErrClaimWindowClosed, "now=%d claimExpiry=%d", now, p.Config.ClaimExpiry)
	}
	root, ok := p.Root()
	if !ok {
		return Event{}, errorsmod.Wrap(ErrNoRoot, "")
	}
	if p.PrizeClaimedBy(claimant) {
		return Event{}, errorsmod.Wrapf(ErrAlreadyClaimed, "prize for %s", claimant)
	}
	if !merkle.Verify(root, claimant, amount, proof) {
		return Event{}, errorsmod.Wrapf(ErrProofRejected, "claimant %s amount %d", claimant, amount)
	}

	u := c.snapshot(claimant)
	r := p.record(claimant)
	r.PrizeClaimed = true
	p.PrizeClaimCount++

	if err := c.adapter.Pay(claimant, amount); err != nil {
		c.restore(u)
		return Event{}, errorsmod.Wrapf(ErrTransferFailed, "pay prize: %v", err)
	}

	return newEvent(EventTypePrizeClaimed,
		Attr{Key: "claimant", Value: claimant},
		Attr{Key: "amount", Value: fmt.Sprintf("%d", amount)},
	), nil
}

// EnableRefund switches the pool into refund mode and closes intake. Rejected
// once a prize root exists: the two modes are permanently exclusive for the
// life of a root.
func (c *Controller) EnableRefund(now int64) (Event, error) {
	if err := c.begin(); err != nil {
		return Event{}, err
	}
	defer c.end()

	p := c.pool
	if !p.Config.WithinClaimWindow(now) {
		return Event{}, errorsmod.Wrapf(ErrClaimWindowClosed, "now=%d claimExpiry=%d", now, p.Config.ClaimExpiry)
	}
	switch p.Mode {
	case ModeRefund:
		return Event{}, errorsmod.Wrap(ErrModeConflict, "refund mode already active")
	case ModePrize:
		return Event{}, errorsmod.Wrap(ErrModeConflict, "prize root already published")
	}

	p.IntakeOpen = false
	p.Mode = ModeRefund

	return newEvent(EventTypeRefundEnabled), nil
}

// DisableRefund returns the pool to the undecided mode, optionally reopening
// intake. Only allowed while no refund has been paid, so a cohort can never
// be split between refunds and prizes.
func (c *Controller) DisableRefund(reopenIntake bool) (Event, error) {
	if err := c.begin(); err != nil {
		return Event{}, err
	}
	defer c.end()

	p := c.pool
	if p.Mode != ModeRefund {
		return Event{}, errorsmod.Wrap(ErrRefundInactive, "")
	}
	if p.RefundClaimCount > 0 {
		return Event{}, errorsmod.Wrapf(ErrRefundsAlreadyPaid, "%d refunds paid", p.RefundClaimCount)
	}

	p.Mode = ModeUndecided
	if reopenIntake {
		p.IntakeOpen = true
	}

	return newEvent(EventTypeRefundDisabled,
		Attr{Key: "intakeReopened", Value: fmt.Sprintf("%v", reopenIntake)},
	), nil
}

// ClaimRefund pays claimant back exactly the entry price. Only joined
// participants qualify, once each, while refund mode is active.
func (c *Controller) ClaimRefund(claimant string, now int64) (Event, error) {
	if err := c.begin(); err != nil {
		return Event{}, err
	}
	defer c.end()

	p := c.pool
	if !p.Config.WithinClaimWindow(now) {
		return Event{}, errorsmod.Wrapf(ErrClaimWindowClosed, "now=%d claimExpiry=%d", now, p.Config.ClaimExpiry)
	}
	if p.Mode != ModeRefund {
		return Event{}, errorsmod.Wrap(ErrRefundInactive, "")
	}
	if !p.Joined(claimant) {
		return Event{}, errorsmod.Wrapf(ErrNotJoined, "participant %s", claimant)
	}
	if p.RefundClaimedBy(claimant) {
		return Event{}, errorsmod.Wrapf(ErrAlreadyClaimed, "refund for %s", claimant)
	}

	u := c.snapshot(claimant)
	r := p.record(claimant)
	r.RefundClaimed = true
	p.RefundClaimCount++

	if err := c.adapter.Pay(claimant, p.Config.EntryPrice); err != nil {
		c.restore(u)
		return Event{}, errorsmod.Wrapf(ErrTransferFailed, "pay refund: %v", err)
	}

	return newEvent(EventTypeRefundClaimed,
		Attr{Key: "claimant", Value: claimant},
		Attr{Key: "amount", Value: fmt.Sprintf("%d", p.Config.EntryPrice)},
	), nil
}

// ClaimCommission pays the administrator's cut of the publication-time
// snapshot to the withdraw target, exactly once.
func (c *Controller) ClaimCommission(now int64) (Event, error) {
	if err := c.begin(); err != nil {
		return Event{}, err
	}
	defer c.end()

	p := c.pool
	if !p.Config.PlaytimeEnded(now) {
		return Event{}, errorsmod.Wrapf(ErrPlaytimeNotEnded, "now=%d playEnd=%d", now, p.Config.PlayEnd)
	}
	if p.Mode != ModePrize {
		return Event{}, errorsmod.Wrap(ErrNoRoot, "")
	}
	if p.CommissionClaimed {
		return Event{}, errorsmod.Wrap(ErrCommissionClaimed, "")
	}
	amount := sdkmath.NewIntFromUint64(p.Config.CommissionRate).
		Mul(sdkmath.NewIntFromUint64(p.BalanceSnapshot)).
		QuoRaw(100).
		Uint64()
	if amount == 0 {
		return Event{}, errorsmod.Wrapf(ErrZeroCommission, "rate=%d snapshot=%d", p.Config.CommissionRate, p.BalanceSnapshot)
	}

	u := c.snapshot("")
	p.CommissionClaimed = true

	if err := c.adapter.Pay(p.Config.WithdrawTarget, amount); err != nil {
		c.restore(u)
		return Event{}, errorsmod.Wrapf(ErrTransferFailed, "pay commission: %v", err)
	}

	return newEvent(EventTypeCommissionClaimed,
		Attr{Key: "target", Value: p.Config.WithdrawTarget},
		Attr{Key: "amount", Value: fmt.Sprintf("%d", amount)},
	), nil
}

// SweepUnclaimed pays the entire remaining escrow balance to the withdraw
// target once the claim window has expired.
func (c *Controller) SweepUnclaimed(now int64) (Event, error) {
	if err := c.begin(); err != nil {
		return Event{}, err
	}
	defer c.end()

	p := c.pool
	if !p.Config.ClaimWindowExpired(now) {
		return Event{}, errorsmod.Wrapf(ErrClaimWindowOpen, "now=%d claimExpiry=%d", now, p.Config.ClaimExpiry)
	}
	balance := c.adapter.PoolBalance()
	if balance == 0 {
		return Event{}, errorsmod.Wrap(ErrNothingToSweep, "")
	}

	if err := c.adapter.Pay(p.Config.WithdrawTarget, balance); err != nil {
		return Event{}, errorsmod.Wrapf(ErrTransferFailed, "sweep: %v", err)
	}

	return newEvent(EventTypeUnclaimedSwept,
		Attr{Key: "target", Value: p.Config.WithdrawTarget},
		Attr{Key: "amount", Value: fmt.Sprintf("%d", balance)},
	), nil
}

// SetWithdrawTarget repoints where commission and sweep payouts go. The only
// mutable configuration field.
func (c *Controller) SetWithdrawTarget(target string) (Event, error) {
	if err := c.begin(); err != nil {
		return Event{}, err
	}
	defer c.end()

	if target == "" {
		return Event{}, errorsmod.Wrap(ErrInvalidConfig, "empty withdraw target")
	}

	c.pool.Config.WithdrawTarget = target

	return newEvent(EventTypeWithdrawTargetUpdated,
		Attr{Key: "target", Value: target},
	), nil
}

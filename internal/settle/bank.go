package settle

import (
	errorsmod "cosmossdk.io/errors"

	"merklepool/internal/state"
)

// Bank settles a pool in native units against the chain's account ledger.
// The escrow is an ordinary account; both legs of every movement are checked
// before either is applied.
type Bank struct {
	st     *state.State
	escrow string
}

func NewBank(st *state.State, poolID uint64) *Bank {
	return &Bank{st: st, escrow: EscrowAddr(poolID)}
}

func (b *Bank) ValidatePayment(payer string, amount uint64) error {
	if b.st.Balance(payer) < amount {
		return errorsmod.Wrapf(ErrInsufficientFunds, "payer %s has %d, needs %d", payer, b.st.Balance(payer), amount)
	}
	if bal := b.st.Balance(b.escrow); bal > ^uint64(0)-amount {
		return errorsmod.Wrapf(ErrBalanceOverflow, "escrow %s", b.escrow)
	}
	return nil
}

func (b *Bank) ReceiveEntryPayment(payer string, amount uint64) error {
	if err := b.ValidatePayment(payer, amount); err != nil {
		return err
	}
	// Both legs pre-checked above; neither can fail now.
	_ = b.st.Debit(payer, amount)
	_ = b.st.Credit(b.escrow, amount)
	return nil
}

func (b *Bank) Pay(to string, amount uint64) error {
	if b.st.Balance(b.escrow) < amount {
		return errorsmod.Wrapf(ErrInsufficientFunds, "escrow %s has %d, needs %d", b.escrow, b.st.Balance(b.escrow), amount)
	}
	if bal := b.st.Balance(to); bal > ^uint64(0)-amount {
		return errorsmod.Wrapf(ErrBalanceOverflow, "recipient %s", to)
	}
	_ = b.st.Debit(b.escrow, amount)
	_ = b.st.Credit(to, amount)
	return nil
}

func (b *Bank) PoolBalance() uint64 {
	return b.st.Balance(b.escrow)
}

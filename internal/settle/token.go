package settle

import (
	errorsmod "cosmossdk.io/errors"

	"merklepool/internal/state"
)

// Token settles a pool in a fungible token. Entry payments are pulled from
// the payer via allowance (payer must have approved the escrow as spender);
// payouts come from the escrow's token balance.
type Token struct {
	st     *state.State
	denom  string
	escrow string
}

// NewToken opens the token strategy for a pool. The denom must be a
// registered token; the escrow balance probe is the characteristic call that
// confirms the ledger actually answers for it. Run once at pool
// configuration time and again, cheaply, on every later open.
func NewToken(st *state.State, denom string, poolID uint64) (*Token, error) {
	if st.Token(denom) == nil {
		return nil, errorsmod.Wrapf(ErrUnknownDenom, "%q", denom)
	}
	t := &Token{st: st, denom: denom, escrow: EscrowAddr(poolID)}
	_ = st.TokenBalance(denom, t.escrow)
	return t, nil
}

func (t *Token) ValidatePayment(payer string, amount uint64) error {
	if allowed := t.st.TokenAllowance(t.denom, payer, t.escrow); allowed < amount {
		return errorsmod.Wrapf(ErrInsufficientAllowance, "payer %s approved %d, needs %d", payer, allowed, amount)
	}
	if bal := t.st.TokenBalance(t.denom, payer); bal < amount {
		return errorsmod.Wrapf(ErrInsufficientFunds, "payer %s has %d, needs %d", payer, bal, amount)
	}
	return nil
}

func (t *Token) ReceiveEntryPayment(payer string, amount uint64) error {
	if err := t.ValidatePayment(payer, amount); err != nil {
		return err
	}
	if err := t.st.TokenTransferFrom(t.denom, payer, t.escrow, t.escrow, amount); err != nil {
		return errorsmod.Wrapf(ErrInsufficientFunds, "pull entry payment: %v", err)
	}
	return nil
}

func (t *Token) Pay(to string, amount uint64) error {
	if err := t.st.TokenTransfer(t.denom, t.escrow, to, amount); err != nil {
		return errorsmod.Wrapf(ErrInsufficientFunds, "pay from escrow: %v", err)
	}
	return nil
}

func (t *Token) PoolBalance() uint64 {
	return t.st.TokenBalance(t.denom, t.escrow)
}

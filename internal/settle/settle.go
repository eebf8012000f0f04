// Package settle provides the two settlement strategies a pool can be
// configured with: native-unit settlement against the chain's account ledger
// (Bank) and fungible-token settlement with allowance-based pull payments
// (Token). Both satisfy the pool.Adapter contract and never partially apply
// a movement.
package settle

import (
	"fmt"

	errorsmod "cosmossdk.io/errors"
)

// ModuleName is the error codespace for settlement failures.
const ModuleName = "settle"

var (
	ErrUnknownDenom          = errorsmod.Register(ModuleName, 1, "unknown token denom")
	ErrInsufficientFunds     = errorsmod.Register(ModuleName, 2, "insufficient funds")
	ErrInsufficientAllowance = errorsmod.Register(ModuleName, 3, "insufficient allowance")
	ErrBalanceOverflow       = errorsmod.Register(ModuleName, 4, "balance overflow")
)

// EscrowAddr is the ledger identity holding a pool's funds. It lives in the
// same namespace as ordinary accounts but contains a separator ordinary
// addresses never carry.
func EscrowAddr(poolID uint64) string {
	return fmt.Sprintf("pool/escrow/%d", poolID)
}

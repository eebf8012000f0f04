package codec

import (
	"encoding/json"
	"fmt"
)

// TxEnvelope is the v0 transaction container.
//
// CometBFT transactions are opaque bytes. For v0 localnet we use JSON-encoded
// txs to move fast; this is NOT the final protocol encoding.
type TxEnvelope struct {
	// Basic routing.
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`

	// v0 tx auth:
	// - Nonce: included in the signed message for replay protection (must increase per signer).
	// - Signer: logical signer id (the acting account).
	// - Sig: Ed25519 signature over (type, nonce, signer, sha256(value)).
	Nonce  string `json:"nonce,omitempty"`
	Signer string `json:"signer,omitempty"`
	Sig    []byte `json:"sig,omitempty"`
}

func DecodeTxEnvelope(txBytes []byte) (TxEnvelope, error) {
	var env TxEnvelope
	if err := json.Unmarshal(txBytes, &env); err != nil {
		return TxEnvelope{}, fmt.Errorf("invalid tx json: %w", err)
	}
	if env.Type == "" {
		return TxEnvelope{}, fmt.Errorf("missing tx.type")
	}
	return env, nil
}

// ---- Bank ----

type BankMintTx struct {
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

type BankSendTx struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

// ---- Auth (v0) ----

// v0: account pubkey registration for tx authentication.
type AuthRegisterAccountTx struct {
	Account string `json:"account"`
	PubKey  []byte `json:"pubKey"` // base64 (32 bytes)
}

// ---- Tokens ----

type TokenCreateTx struct {
	Denom string `json:"denom"`
	Admin string `json:"admin"`
}

type TokenMintTx struct {
	Denom  string `json:"denom"`
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

type TokenApproveTx struct {
	Denom   string `json:"denom"`
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Amount  uint64 `json:"amount"`
}

type TokenTransferTx struct {
	Denom  string `json:"denom"`
	From   string `json:"from"`
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

// ---- Pools ----

type PoolCreateTx struct {
	Creator        string `json:"creator"`
	WithdrawTarget string `json:"withdrawTarget"`
	IntakeOpen     bool   `json:"intakeOpen"`
	EntryPrice     uint64 `json:"entryPrice"`
	CommissionRate uint64 `json:"commissionRate"`
	EnrollStart    int64  `json:"enrollStart"`
	PlayEnd        int64  `json:"playEnd"`
	TokenDenom     string `json:"tokenDenom,omitempty"` // empty -> native settlement
}

type PoolJoinTx struct {
	Player  string `json:"player"`
	PoolID  uint64 `json:"poolId"`
	Payment uint64 `json:"payment"`
}

type PoolSetIntakeTx struct {
	Creator string `json:"creator"`
	PoolID  uint64 `json:"poolId"`
	Open    bool   `json:"open"`
}

type PoolPublishRootTx struct {
	Creator string `json:"creator"`
	PoolID  uint64 `json:"poolId"`
	Root    []byte `json:"root"` // base64 (32 bytes)
}

type PoolClaimPrizeTx struct {
	Claimant string   `json:"claimant"`
	PoolID   uint64   `json:"poolId"`
	Amount   uint64   `json:"amount"`
	Proof    [][]byte `json:"proof"` // base64 nodes (32 bytes each)
}

type PoolEnableRefundTx struct {
	Creator string `json:"creator"`
	PoolID  uint64 `json:"poolId"`
}

type PoolDisableRefundTx struct {
	Creator      string `json:"creator"`
	PoolID       uint64 `json:"poolId"`
	ReopenIntake bool   `json:"reopenIntake,omitempty"`
}

type PoolClaimRefundTx struct {
	Claimant string `json:"claimant"`
	PoolID   uint64 `json:"poolId"`
}

type PoolClaimCommissionTx struct {
	Creator string `json:"creator"`
	PoolID  uint64 `json:"poolId"`
}

type PoolSweepTx struct {
	Creator string `json:"creator"`
	PoolID  uint64 `json:"poolId"`
}

type PoolSetWithdrawTargetTx struct {
	Creator string `json:"creator"`
	PoolID  uint64 `json:"poolId"`
	Target  string `json:"target"`
}

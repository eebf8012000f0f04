package app

import (
	"encoding/json"
	"fmt"
	"sort"

	errorsmod "cosmossdk.io/errors"
	abci "github.com/cometbft/cometbft/abci/types"

	"merklepool/internal/codec"
	"merklepool/internal/merkle"
	"merklepool/internal/pool"
	"merklepool/internal/settle"
	"merklepool/internal/state"
)

// execTx dispatches one decoded tx against st. The caller passes a staged
// clone and discards it when the result code is non-zero.
func execTx(st *state.State, env codec.TxEnvelope, height, now int64) *abci.ExecTxResult {
	switch env.Type {
	case "bank/mint":
		// v0 localnet faucet: unsigned.
		var msg codec.BankMintTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: "bad bank/mint value"}
		}
		if msg.To == "" || msg.Amount == 0 {
			return &abci.ExecTxResult{Code: 1, Log: "missing to/amount"}
		}
		if err := st.Credit(msg.To, msg.Amount); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: err.Error()}
		}
		return okEvent("BankMinted", map[string]string{
			"to":     msg.To,
			"amount": fmt.Sprintf("%d", msg.Amount),
		})

	case "bank/send":
		var msg codec.BankSendTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: "bad bank/send value"}
		}
		if msg.From == "" || msg.To == "" || msg.Amount == 0 {
			return &abci.ExecTxResult{Code: 1, Log: "missing from/to/amount"}
		}
		if err := requireAccountAuth(st, env, msg.From); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: err.Error()}
		}
		if err := st.Debit(msg.From, msg.Amount); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: err.Error()}
		}
		if err := st.Credit(msg.To, msg.Amount); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: err.Error()}
		}
		return okEvent("BankSent", map[string]string{
			"from":   msg.From,
			"to":     msg.To,
			"amount": fmt.Sprintf("%d", msg.Amount),
		})

	case "auth/register_account":
		var msg codec.AuthRegisterAccountTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: "bad auth/register_account value"}
		}
		if err := requireRegisterAccountAuth(st, env, msg); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: err.Error()}
		}
		if existing := st.AccountKeys[msg.Account]; len(existing) > 0 {
			return &abci.ExecTxResult{Code: 1, Log: "account already registered"}
		}
		st.AccountKeys[msg.Account] = msg.PubKey
		return okEvent("AccountRegistered", map[string]string{
			"account": msg.Account,
		})

	case "token/create":
		// v0: open token registry, unsigned like the faucet.
		var msg codec.TokenCreateTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: "bad token/create value"}
		}
		if err := st.CreateToken(msg.Denom, msg.Admin); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: err.Error()}
		}
		return okEvent("TokenCreated", map[string]string{
			"denom": msg.Denom,
			"admin": msg.Admin,
		})

	case "token/mint":
		var msg codec.TokenMintTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: "bad token/mint value"}
		}
		tok := st.Token(msg.Denom)
		if tok == nil {
			return &abci.ExecTxResult{Code: 1, Log: "unknown token"}
		}
		if err := requireAccountAuth(st, env, tok.Admin); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: err.Error()}
		}
		if err := st.TokenMint(msg.Denom, msg.To, msg.Amount); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: err.Error()}
		}
		return okEvent("TokenMinted", map[string]string{
			"denom":  msg.Denom,
			"to":     msg.To,
			"amount": fmt.Sprintf("%d", msg.Amount),
		})

	case "token/approve":
		var msg codec.TokenApproveTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: "bad token/approve value"}
		}
		if err := requireAccountAuth(st, env, msg.Owner); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: err.Error()}
		}
		if err := st.TokenApprove(msg.Denom, msg.Owner, msg.Spender, msg.Amount); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: err.Error()}
		}
		return okEvent("TokenApproved", map[string]string{
			"denom":   msg.Denom,
			"owner":   msg.Owner,
			"spender": msg.Spender,
			"amount":  fmt.Sprintf("%d", msg.Amount),
		})

	case "token/transfer":
		var msg codec.TokenTransferTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: "bad token/transfer value"}
		}
		if err := requireAccountAuth(st, env, msg.From); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: err.Error()}
		}
		if err := st.TokenTransfer(msg.Denom, msg.From, msg.To, msg.Amount); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: err.Error()}
		}
		return okEvent("TokenTransferred", map[string]string{
			"denom":  msg.Denom,
			"from":   msg.From,
			"to":     msg.To,
			"amount": fmt.Sprintf("%d", msg.Amount),
		})

	case "pool/create":
		var msg codec.PoolCreateTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: "bad pool/create value"}
		}
		if err := requireAccountAuth(st, env, msg.Creator); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: err.Error()}
		}
		cfg, err := pool.NewConfig(pool.Params{
			Creator:        msg.Creator,
			WithdrawTarget: msg.WithdrawTarget,
			IntakeOpen:     msg.IntakeOpen,
			EntryPrice:     msg.EntryPrice,
			CommissionRate: msg.CommissionRate,
			EnrollStart:    msg.EnrollStart,
			PlayEnd:        msg.PlayEnd,
			TokenDenom:     msg.TokenDenom,
		}, now)
		if err != nil {
			return errResult(err)
		}
		id := st.NextPoolID
		if msg.TokenDenom != "" {
			// Token settlement: denom must be live before the pool exists.
			if _, err := settle.NewToken(st, msg.TokenDenom, id); err != nil {
				return errResult(err)
			}
		}
		st.NextPoolID++
		st.Pools[id] = pool.New(id, cfg, msg.IntakeOpen)
		return okEvent("PoolCreated", map[string]string{
			"poolId":      fmt.Sprintf("%d", id),
			"creator":     msg.Creator,
			"entryPrice":  fmt.Sprintf("%d", cfg.EntryPrice),
			"enrollStart": fmt.Sprintf("%d", cfg.EnrollStart),
			"playEnd":     fmt.Sprintf("%d", cfg.PlayEnd),
			"claimExpiry": fmt.Sprintf("%d", cfg.ClaimExpiry),
		})

	case "pool/join":
		var msg codec.PoolJoinTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: "bad pool/join value"}
		}
		if err := requireAccountAuth(st, env, msg.Player); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: err.Error()}
		}
		ctrl, err := poolController(st, msg.PoolID)
		if err != nil {
			return &abci.ExecTxResult{Code: 1, Log: err.Error()}
		}
		ev, err := ctrl.Join(msg.Player, msg.Payment, now)
		if err != nil {
			return errResult(err)
		}
		return poolEventResult(msg.PoolID, ev)

	case "pool/set_intake":
		var msg codec.PoolSetIntakeTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: "bad pool/set_intake value"}
		}
		ctrl, err := adminController(st, env, msg.PoolID, msg.Creator)
		if err != nil {
			return &abci.ExecTxResult{Code: 1, Log: err.Error()}
		}
		ev, err := ctrl.SetIntake(msg.Open, now)
		if err != nil {
			return errResult(err)
		}
		return poolEventResult(msg.PoolID, ev)

	case "pool/publish_root":
		var msg codec.PoolPublishRootTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: "bad pool/publish_root value"}
		}
		ctrl, err := adminController(st, env, msg.PoolID, msg.Creator)
		if err != nil {
			return &abci.ExecTxResult{Code: 1, Log: err.Error()}
		}
		root, err := merkle.HashFromBytes(msg.Root)
		if err != nil {
			return &abci.ExecTxResult{Code: 1, Log: err.Error()}
		}
		ev, err := ctrl.PublishRoot(root, now)
		if err != nil {
			return errResult(err)
		}
		return poolEventResult(msg.PoolID, ev)

	case "pool/claim_prize":
		var msg codec.PoolClaimPrizeTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: "bad pool/claim_prize value"}
		}
		if err := requireAccountAuth(st, env, msg.Claimant); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: err.Error()}
		}
		ctrl, err := poolController(st, msg.PoolID)
		if err != nil {
			return &abci.ExecTxResult{Code: 1, Log: err.Error()}
		}
		proof, err := merkle.ProofFromBytes(msg.Proof)
		if err != nil {
			return &abci.ExecTxResult{Code: 1, Log: err.Error()}
		}
		ev, err := ctrl.ClaimPrize(msg.Claimant, msg.Amount, proof, now)
		if err != nil {
			return errResult(err)
		}
		return poolEventResult(msg.PoolID, ev)

	case "pool/enable_refund":
		var msg codec.PoolEnableRefundTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: "bad pool/enable_refund value"}
		}
		ctrl, err := adminController(st, env, msg.PoolID, msg.Creator)
		if err != nil {
			return &abci.ExecTxResult{Code: 1, Log: err.Error()}
		}
		ev, err := ctrl.EnableRefund(now)
		if err != nil {
			return errResult(err)
		}
		return poolEventResult(msg.PoolID, ev)

	case "pool/disable_refund":
		var msg codec.PoolDisableRefundTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: "bad pool/disable_refund value"}
		}
		ctrl, err := adminController(st, env, msg.PoolID, msg.Creator)
		if err != nil {
			return &abci.ExecTxResult{Code: 1, Log: err.Error()}
		}
		ev, err := ctrl.DisableRefund(msg.ReopenIntake)
		if err != nil {
			return errResult(err)
		}
		return poolEventResult(msg.PoolID, ev)

	case "pool/claim_refund":
		var msg codec.PoolClaimRefundTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: "bad pool/claim_refund value"}
		}
		if err := requireAccountAuth(st, env, msg.Claimant); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: err.Error()}
		}
		ctrl, err := poolController(st, msg.PoolID)
		if err != nil {
			return &abci.ExecTxResult{Code: 1, Log: err.Error()}
		}
		ev, err := ctrl.ClaimRefund(msg.Claimant, now)
		if err != nil {
			return errResult(err)
		}
		return poolEventResult(msg.PoolID, ev)

	case "pool/claim_commission":
		var msg codec.PoolClaimCommissionTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: "bad pool/claim_commission value"}
		}
		ctrl, err := adminController(st, env, msg.PoolID, msg.Creator)
		if err != nil {
			return &abci.ExecTxResult{Code: 1, Log: err.Error()}
		}
		ev, err := ctrl.ClaimCommission(now)
		if err != nil {
			return errResult(err)
		}
		return poolEventResult(msg.PoolID, ev)

	case "pool/sweep":
		var msg codec.PoolSweepTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: "bad pool/sweep value"}
		}
		ctrl, err := adminController(st, env, msg.PoolID, msg.Creator)
		if err != nil {
			return &abci.ExecTxResult{Code: 1, Log: err.Error()}
		}
		ev, err := ctrl.SweepUnclaimed(now)
		if err != nil {
			return errResult(err)
		}
		return poolEventResult(msg.PoolID, ev)

	case "pool/set_withdraw_target":
		var msg codec.PoolSetWithdrawTargetTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: "bad pool/set_withdraw_target value"}
		}
		ctrl, err := adminController(st, env, msg.PoolID, msg.Creator)
		if err != nil {
			return &abci.ExecTxResult{Code: 1, Log: err.Error()}
		}
		ev, err := ctrl.SetWithdrawTarget(msg.Target)
		if err != nil {
			return errResult(err)
		}
		return poolEventResult(msg.PoolID, ev)

	default:
		return &abci.ExecTxResult{Code: 1, Log: "unknown tx type: " + env.Type}
	}
}

// poolController binds a pool to the settlement strategy its config selects.
func poolController(st *state.State, id uint64) (*pool.Controller, error) {
	p := st.Pools[id]
	if p == nil {
		return nil, fmt.Errorf("pool %d not found", id)
	}
	if p.Config.TokenDenom == "" {
		return pool.NewController(p, settle.NewBank(st, p.ID)), nil
	}
	tok, err := settle.NewToken(st, p.Config.TokenDenom, p.ID)
	if err != nil {
		return nil, err
	}
	return pool.NewController(p, tok), nil
}

// adminController resolves the pool and checks that the tx is signed by its
// creator; every administrator action goes through here.
func adminController(st *state.State, env codec.TxEnvelope, id uint64, creator string) (*pool.Controller, error) {
	ctrl, err := poolController(st, id)
	if err != nil {
		return nil, err
	}
	if creator != ctrl.Pool().Config.Creator {
		return nil, fmt.Errorf("creator mismatch: got %q want %q", creator, ctrl.Pool().Config.Creator)
	}
	if err := requireAccountAuth(st, env, creator); err != nil {
		return nil, err
	}
	return ctrl, nil
}

// errResult maps a registered module error onto the tx result, preserving
// the codespace/code pair so callers can distinguish the failing guard.
func errResult(err error) *abci.ExecTxResult {
	space, code, log := errorsmod.ABCIInfo(err, false)
	return &abci.ExecTxResult{Code: code, Codespace: space, Log: log}
}

// poolEventResult converts an engine event into the tx result, prefixing the
// pool id the engine itself does not know about.
func poolEventResult(poolID uint64, ev pool.Event) *abci.ExecTxResult {
	out := abci.Event{Type: ev.Type}
	out.Attributes = append(out.Attributes, abci.EventAttribute{Key: "poolId", Value: fmt.Sprintf("%d", poolID), Index: true})
	for _, at := range ev.Attrs {
		out.Attributes = append(out.Attributes, abci.EventAttribute{Key: at.Key, Value: at.Value, Index: true})
	}
	return &abci.ExecTxResult{Code: 0, Events: []abci.Event{out}}
}

func okEvent(typ string, attrs map[string]string) *abci.ExecTxResult {
	ev := abci.Event{Type: typ}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		ev.Attributes = append(ev.Attributes, abci.EventAttribute{Key: k, Value: attrs[k], Index: true})
	}
	return &abci.ExecTxResult{
		Code:   0,
		Events: []abci.Event{ev},
	}
}

package app

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"cosmossdk.io/log"
	abci "github.com/cometbft/cometbft/abci/types"

	"merklepool/internal/codec"
	"merklepool/internal/pool"
	"merklepool/internal/state"
)

const (
	AppVersion uint64 = 1
)

// MPApp is the ABCI application hosting pool deployments. One mutex guards
// block execution and queries; within a block each tx runs against a staged
// state clone that is swapped in only on success.
type MPApp struct {
	*abci.BaseApplication

	home   string
	logger log.Logger

	mu       sync.Mutex
	st       *state.State
	lastHash []byte

	// lastBlockTime is the unix time of the last finalized block; queries use
	// it for derived, time-dependent views (phase, commission preview).
	lastBlockTime int64
}

func New(home string, logger log.Logger) (*MPApp, error) {
	appHome := filepath.Join(home, "app")
	st, err := state.Load(appHome)
	if err != nil {
		return nil, err
	}
	a := &MPApp{
		BaseApplication: abci.NewBaseApplication(),
		home:            home,
		logger:          logger,
		st:              st,
		lastHash:        st.AppHash(),
	}
	return a, nil
}

func (a *MPApp) Info(_ context.Context, _ *abci.InfoRequest) (*abci.InfoResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return &abci.InfoResponse{
		Data:             "merklepool (v0)",
		Version:          "v0",
		AppVersion:       AppVersion,
		LastBlockHeight:  a.st.Height,
		LastBlockAppHash: a.lastHash,
	}, nil
}

func (a *MPApp) CheckTx(_ context.Context, req *abci.CheckTxRequest) (*abci.CheckTxResponse, error) {
	_, err := codec.DecodeTxEnvelope(req.Tx)
	if err != nil {
		return &abci.CheckTxResponse{Code: 1, Log: err.Error()}, nil
	}
	// v0: only structural validation; auth runs at delivery.
	return &abci.CheckTxResponse{Code: 0}, nil
}

func (a *MPApp) InitChain(_ context.Context, _ *abci.InitChainRequest) (*abci.InitChainResponse, error) {
	// v0: no special genesis handling.
	return &abci.InitChainResponse{}, nil
}

func (a *MPApp) FinalizeBlock(_ context.Context, req *abci.FinalizeBlockRequest) (*abci.FinalizeBlockResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.st.Height = req.Height
	a.lastBlockTime = req.Time.Unix()

	txResults := make([]*abci.ExecTxResult, 0, len(req.Txs))
	for _, txBytes := range req.Txs {
		res := a.deliverTx(txBytes, req.Height, a.lastBlockTime)
		txResults = append(txResults, res)
	}

	a.lastHash = a.st.AppHash()

	return &abci.FinalizeBlockResponse{
		TxResults: txResults,
		AppHash:   a.lastHash,
	}, nil
}

func (a *MPApp) Commit(_ context.Context, _ *abci.CommitRequest) (*abci.CommitResponse, error) {
	// Persist after each block for devnet durability.
	appHome := filepath.Join(a.home, "app")
	if err := a.st.Save(appHome); err != nil {
		// CometBFT expects Commit to not crash; return error so node halts loudly.
		return nil, err
	}
	return &abci.CommitResponse{}, nil
}

// deliverTx runs one tx against a staged state clone and swaps the clone in
// only when the tx succeeds, so a failed tx can never leave a partial write.
func (a *MPApp) deliverTx(txBytes []byte, height, now int64) *abci.ExecTxResult {
	env, err := codec.DecodeTxEnvelope(txBytes)
	if err != nil {
		return &abci.ExecTxResult{Code: 1, Log: err.Error()}
	}

	staged, err := a.st.Clone()
	if err != nil {
		return &abci.ExecTxResult{Code: 1, Log: "stage state: " + err.Error()}
	}

	res := execTx(staged, env, height, now)
	if res.Code == 0 {
		a.st = staged
	}
	return res
}

func (a *MPApp) Query(_ context.Context, req *abci.QueryRequest) (*abci.QueryResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Paths:
	// - /pools
	// - /pool/<id>
	// - /pool/<id>/participant/<addr>
	// - /pool/<id>/commission
	// - /account/<addr>
	// - /token/<denom>/balance/<addr>
	path := strings.TrimSpace(req.Path)
	switch {
	case path == "/pools":
		ids := make([]uint64, 0, len(a.st.Pools))
		for id := range a.st.Pools {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		b, _ := json.Marshal(ids)
		return &abci.QueryResponse{Code: 0, Value: b, Height: a.st.Height}, nil

	case strings.HasPrefix(path, "/account/"):
		addr := strings.TrimPrefix(path, "/account/")
		b, _ := json.Marshal(map[string]any{"addr": addr, "balance": a.st.Balance(addr)})
		return &abci.QueryResponse{Code: 0, Value: b, Height: a.st.Height}, nil

	case strings.HasPrefix(path, "/token/"):
		rest := strings.TrimPrefix(path, "/token/")
		parts := strings.Split(rest, "/")
		if len(parts) != 3 || parts[1] != "balance" {
			return &abci.QueryResponse{Code: 1, Log: "unknown token query path", Height: a.st.Height}, nil
		}
		denom, addr := parts[0], parts[2]
		if a.st.Token(denom) == nil {
			return &abci.QueryResponse{Code: 1, Log: "token not found", Height: a.st.Height}, nil
		}
		b, _ := json.Marshal(map[string]any{"denom": denom, "addr": addr, "balance": a.st.TokenBalance(denom, addr)})
		return &abci.QueryResponse{Code: 0, Value: b, Height: a.st.Height}, nil

	case strings.HasPrefix(path, "/pool/"):
		return a.queryPool(strings.TrimPrefix(path, "/pool/"))

	default:
		return &abci.QueryResponse{Code: 1, Log: "unknown query path", Height: a.st.Height}, nil
	}
}

func (a *MPApp) queryPool(rest string) (*abci.QueryResponse, error) {
	parts := strings.Split(rest, "/")
	id, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return &abci.QueryResponse{Code: 1, Log: "invalid pool id", Height: a.st.Height}, nil
	}
	p := a.st.Pools[id]
	if p == nil {
		return &abci.QueryResponse{Code: 1, Log: "pool not found", Height: a.st.Height}, nil
	}
	ctrl, err := poolController(a.st, id)
	if err != nil {
		return &abci.QueryResponse{Code: 1, Log: err.Error(), Height: a.st.Height}, nil
	}

	switch {
	case len(parts) == 1:
		view := struct {
			pool.NormalizedPool
			Phase       pool.Phase `json:"phase"`
			LiveBalance uint64     `json:"liveBalance"`
			Commission  uint64     `json:"commission"`
		}{
			NormalizedPool: p.Normalized(),
			Phase:          p.Config.PhaseAt(a.lastBlockTime),
			LiveBalance:    ctrl.Adapter().PoolBalance(),
			Commission:     ctrl.CurrentCommission(),
		}
		b, _ := json.Marshal(view)
		return &abci.QueryResponse{Code: 0, Value: b, Height: a.st.Height}, nil

	case len(parts) == 2 && parts[1] == "commission":
		b, _ := json.Marshal(map[string]any{
			"poolId":     id,
			"commission": ctrl.CurrentCommission(),
			"claimed":    p.CommissionClaimed,
		})
		return &abci.QueryResponse{Code: 0, Value: b, Height: a.st.Height}, nil

	case len(parts) == 3 && parts[1] == "participant":
		r := p.Record(parts[2])
		b, _ := json.Marshal(map[string]any{
			"poolId":        id,
			"participant":   parts[2],
			"joined":        r.Joined,
			"prizeClaimed":  r.PrizeClaimed,
			"refundClaimed": r.RefundClaimed,
		})
		return &abci.QueryResponse{Code: 0, Value: b, Height: a.st.Height}, nil

	default:
		return &abci.QueryResponse{Code: 1, Log: "unknown pool query path", Height: a.st.Height}, nil
	}
}

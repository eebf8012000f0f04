package app

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/json"
	"strconv"
	"testing"

	"cosmossdk.io/log"
	abci "github.com/cometbft/cometbft/abci/types"

	"merklepool/internal/codec"
	"merklepool/internal/merkle"
	"merklepool/internal/settle"
)

// Pool window used by the app tests: enrollment [1000, 2000], claim expiry
// 2000 + 30 days.
const (
	tStart   = int64(1_000)
	tPlayEnd = int64(2_000)
	tEnroll  = int64(1_500)
	tClaim   = int64(2_001)
	tExpired = tPlayEnd + 2_592_000
)

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func findEvent(events []abci.Event, typ string) *abci.Event {
	for i := range events {
		if events[i].Type == typ {
			return &events[i]
		}
	}
	return nil
}

func attr(ev *abci.Event, key string) string {
	if ev == nil {
		return ""
	}
	for _, a := range ev.Attributes {
		if a.Key == key {
			return a.Value
		}
	}
	return ""
}

func parseU64(t *testing.T, s string) uint64 {
	t.Helper()
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		t.Fatalf("parse uint64 %q: %v", s, err)
	}
	return n
}

func testEd25519Key(id string) (ed25519.PublicKey, ed25519.PrivateKey) {
	seed := sha256.Sum256([]byte("merklepool/test/" + id))
	priv := ed25519.NewKeyFromSeed(seed[:])
	return priv.Public().(ed25519.PublicKey), priv
}

// testEnv wraps the app plus per-signer nonce counters so signed txs stay
// fresh without each test tracking nonces by hand.
type testEnv struct {
	t      *testing.T
	a      *MPApp
	nonces map[string]uint64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	a, err := New(t.TempDir(), log.NewNopLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &testEnv{t: t, a: a, nonces: map[string]uint64{}}
}

func (e *testEnv) signedTx(typ string, value any, signer string) []byte {
	e.t.Helper()
	valueBytes := mustMarshal(e.t, value)
	e.nonces[signer]++
	nonce := strconv.FormatUint(e.nonces[signer], 10)
	_, priv := testEd25519Key(signer)
	sig := ed25519.Sign(priv, txAuthSignBytesV0(typ, valueBytes, nonce, signer))
	return mustMarshal(e.t, codec.TxEnvelope{
		Type:   typ,
		Value:  valueBytes,
		Nonce:  nonce,
		Signer: signer,
		Sig:    sig,
	})
}

func (e *testEnv) unsignedTx(typ string, value any) []byte {
	e.t.Helper()
	return mustMarshal(e.t, codec.TxEnvelope{Type: typ, Value: mustMarshal(e.t, value)})
}

func (e *testEnv) deliver(tx []byte, now int64) *abci.ExecTxResult {
	return e.a.deliverTx(tx, 1, now)
}

func (e *testEnv) mustDeliver(tx []byte, now int64) *abci.ExecTxResult {
	e.t.Helper()
	res := e.deliver(tx, now)
	if res.Code != 0 {
		e.t.Fatalf("expected ok, got code=%d codespace=%q log=%q", res.Code, res.Codespace, res.Log)
	}
	return res
}

func (e *testEnv) register(addrs ...string) {
	e.t.Helper()
	for _, addr := range addrs {
		pub, _ := testEd25519Key(addr)
		e.mustDeliver(e.signedTx("auth/register_account", map[string]any{
			"account": addr,
			"pubKey":  []byte(pub),
		}, addr), tStart)
	}
}

func (e *testEnv) mint(addr string, amount uint64) {
	e.t.Helper()
	e.mustDeliver(e.unsignedTx("bank/mint", map[string]any{"to": addr, "amount": amount}), tStart)
}

func (e *testEnv) createPool(rate uint64, denom string) uint64 {
	e.t.Helper()
	res := e.mustDeliver(e.signedTx("pool/create", map[string]any{
		"creator":        "admin",
		"withdrawTarget": "treasury",
		"intakeOpen":     true,
		"entryPrice":     uint64(10),
		"commissionRate": rate,
		"enrollStart":    tStart,
		"playEnd":        tPlayEnd,
		"tokenDenom":     denom,
	}, "admin"), tStart)
	return parseU64(e.t, attr(findEvent(res.Events, "PoolCreated"), "poolId"))
}

func TestPoolLifecycle_NativePrizeFlow(t *testing.T) {
	e := newTestEnv(t)
	e.register("admin", "p1", "p2", "p3")
	for _, p := range []string{"p1", "p2", "p3"} {
		e.mint(p, 100)
	}

	poolID := e.createPool(15, "")

	for _, p := range []string{"p1", "p2", "p3"} {
		res := e.mustDeliver(e.signedTx("pool/join", map[string]any{
			"player": p, "poolId": poolID, "payment": uint64(10),
		}, p), tEnroll)
		ev := findEvent(res.Events, "ParticipantJoined")
		if ev == nil || attr(ev, "participant") != p {
			t.Fatalf("missing ParticipantJoined for %s", p)
		}
	}
	if got := e.a.st.Balance(settle.EscrowAddr(poolID)); got != 30 {
		t.Fatalf("escrow=%d want=30", got)
	}

	tree, err := merkle.NewTree([]merkle.Entry{
		{Identity: "p1", Amount: 10},
		{Identity: "p2", Amount: 10},
		{Identity: "p3", Amount: 10},
	})
	if err != nil {
		t.Fatalf("build tree: %v", err)
	}
	res := e.mustDeliver(e.signedTx("pool/publish_root", map[string]any{
		"creator": "admin", "poolId": poolID, "root": tree.Root().Bytes(),
	}, "admin"), tClaim)
	if parseU64(t, attr(findEvent(res.Events, "RootPublished"), "balanceSnapshot")) != 30 {
		t.Fatalf("snapshot mismatch")
	}

	claim := func(p string, amount uint64) *abci.ExecTxResult {
		proof, err := tree.Proof(p, amount)
		if err != nil {
			t.Fatalf("proof: %v", err)
		}
		raw := make([][]byte, len(proof))
		for i, h := range proof {
			raw[i] = h.Bytes()
		}
		return e.deliver(e.signedTx("pool/claim_prize", map[string]any{
			"claimant": p, "poolId": poolID, "amount": amount, "proof": raw,
		}, p), tClaim)
	}

	for _, p := range []string{"p1", "p2"} {
		res := claim(p, 10)
		if res.Code != 0 {
			t.Fatalf("claim %s: code=%d log=%q", p, res.Code, res.Log)
		}
		if e.a.st.Balance(p) != 100 {
			t.Fatalf("%s balance=%d want=100", p, e.a.st.Balance(p))
		}
	}

	// Double claim rejected with the pool codespace.
	res = claim("p1", 10)
	if res.Code == 0 || res.Codespace != "pool" {
		t.Fatalf("expected pool codespace rejection, got code=%d codespace=%q", res.Code, res.Codespace)
	}

	// Commission: 15% of the 30-unit snapshot, regardless of paid prizes.
	res = e.mustDeliver(e.signedTx("pool/claim_commission", map[string]any{
		"creator": "admin", "poolId": poolID,
	}, "admin"), tClaim)
	if parseU64(t, attr(findEvent(res.Events, "CommissionClaimed"), "amount")) != 4 {
		t.Fatalf("commission amount mismatch: %+v", res.Events)
	}
	if e.a.st.Balance("treasury") != 4 {
		t.Fatalf("treasury=%d want=4", e.a.st.Balance("treasury"))
	}

	// p3 never claims; after expiry the remainder sweeps to the treasury.
	res = e.mustDeliver(e.signedTx("pool/sweep", map[string]any{
		"creator": "admin", "poolId": poolID,
	}, "admin"), tExpired)
	if findEvent(res.Events, "UnclaimedSwept") == nil {
		t.Fatalf("expected UnclaimedSwept event")
	}
	if e.a.st.Balance(settle.EscrowAddr(poolID)) != 0 {
		t.Fatalf("escrow not emptied")
	}
	if e.a.st.Balance("treasury") != 10 {
		t.Fatalf("treasury=%d want=10", e.a.st.Balance("treasury"))
	}
}

func TestPoolCreate_InvalidConfigRejected(t *testing.T) {
	e := newTestEnv(t)
	e.register("admin")

	res := e.deliver(e.signedTx("pool/create", map[string]any{
		"creator":        "admin",
		"withdrawTarget": "treasury",
		"entryPrice":     uint64(0),
		"commissionRate": uint64(5),
		"enrollStart":    tStart,
		"playEnd":        tPlayEnd,
	}, "admin"), tStart)
	if res.Code == 0 || res.Codespace != "pool" {
		t.Fatalf("expected pool config rejection, got %+v", res)
	}
}

func TestSetIntakeAndWithdrawTarget(t *testing.T) {
	e := newTestEnv(t)
	e.register("admin", "p1")
	e.mint("p1", 100)
	poolID := e.createPool(0, "")

	e.mustDeliver(e.signedTx("pool/set_intake", map[string]any{
		"creator": "admin", "poolId": poolID, "open": false,
	}, "admin"), tEnroll)

	res := e.deliver(e.signedTx("pool/join", map[string]any{
		"player": "p1", "poolId": poolID, "payment": uint64(10),
	}, "p1"), tEnroll)
	if res.Code == 0 {
		t.Fatalf("expected join rejected while intake closed")
	}

	// Redundant flip.
	res = e.deliver(e.signedTx("pool/set_intake", map[string]any{
		"creator": "admin", "poolId": poolID, "open": false,
	}, "admin"), tEnroll)
	if res.Code == 0 {
		t.Fatalf("expected redundant set_intake rejected")
	}

	res = e.mustDeliver(e.signedTx("pool/set_withdraw_target", map[string]any{
		"creator": "admin", "poolId": poolID, "target": "treasury2",
	}, "admin"), tEnroll)
	if attr(findEvent(res.Events, "WithdrawTargetUpdated"), "target") != "treasury2" {
		t.Fatalf("missing WithdrawTargetUpdated event")
	}
}

func TestQueries(t *testing.T) {
	e := newTestEnv(t)
	e.register("admin", "p1")
	e.mint("p1", 100)
	poolID := e.createPool(15, "")
	e.mustDeliver(e.signedTx("pool/join", map[string]any{
		"player": "p1", "poolId": poolID, "payment": uint64(10),
	}, "p1"), tEnroll)

	query := func(path string) map[string]any {
		t.Helper()
		res, err := e.a.Query(t.Context(), &abci.QueryRequest{Path: path})
		if err != nil {
			t.Fatalf("query %s: %v", path, err)
		}
		if res.Code != 0 {
			t.Fatalf("query %s: code=%d log=%q", path, res.Code, res.Log)
		}
		var out map[string]any
		if err := json.Unmarshal(res.Value, &out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
		return out
	}

	pv := query("/pool/1")
	if pv["participantCount"].(float64) != 1 {
		t.Fatalf("pool view: %v", pv)
	}
	if pv["liveBalance"].(float64) != 10 {
		t.Fatalf("pool view liveBalance: %v", pv["liveBalance"])
	}

	part := query("/pool/1/participant/p1")
	if part["joined"] != true || part["prizeClaimed"] != false {
		t.Fatalf("participant view: %v", part)
	}

	comm := query("/pool/1/commission")
	if comm["commission"].(float64) != 1 { // 15% of 10, floored
		t.Fatalf("commission view: %v", comm)
	}

	acct := query("/account/p1")
	if acct["balance"].(float64) != 90 {
		t.Fatalf("account view: %v", acct)
	}

	res, err := e.a.Query(t.Context(), &abci.QueryRequest{Path: "/pools"})
	if err != nil || res.Code != 0 {
		t.Fatalf("pools query failed: %v %+v", err, res)
	}
	var ids []uint64
	if err := json.Unmarshal(res.Value, &ids); err != nil || len(ids) != 1 || ids[0] != poolID {
		t.Fatalf("pools list: %v %v", ids, err)
	}

	res, err = e.a.Query(t.Context(), &abci.QueryRequest{Path: "/pool/99"})
	if err != nil || res.Code == 0 {
		t.Fatalf("expected pool not found")
	}
}

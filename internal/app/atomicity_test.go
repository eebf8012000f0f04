package app

import (
	"bytes"
	"testing"
)

// A failed tx must leave no trace: the staged clone is discarded wholesale,
// so the committed app hash is byte-identical before and after the failure.
func TestFailedTxLeavesStateUntouched(t *testing.T) {
	e := newTestEnv(t)
	e.register("admin", "p1", "p2")
	e.mint("p1", 100)
	e.mint("p2", 5) // below the entry price
	poolID := e.createPool(10, "")

	e.mustDeliver(e.signedTx("pool/join", map[string]any{
		"player": "p1", "poolId": poolID, "payment": uint64(10),
	}, "p1"), tEnroll)

	before := e.a.st.AppHash()

	failures := [][]byte{
		// Underfunded join.
		e.signedTx("pool/join", map[string]any{
			"player": "p2", "poolId": poolID, "payment": uint64(10),
		}, "p2"),
		// Wrong payment amount.
		e.signedTx("pool/join", map[string]any{
			"player": "p2", "poolId": poolID, "payment": uint64(3),
		}, "p2"),
		// Double join.
		e.signedTx("pool/join", map[string]any{
			"player": "p1", "poolId": poolID, "payment": uint64(10),
		}, "p1"),
		// Premature admin ops.
		e.signedTx("pool/publish_root", map[string]any{
			"creator": "admin", "poolId": poolID, "root": bytes.Repeat([]byte{1}, 32),
		}, "admin"),
		e.signedTx("pool/claim_commission", map[string]any{
			"creator": "admin", "poolId": poolID,
		}, "admin"),
		// Unknown pool.
		e.signedTx("pool/join", map[string]any{
			"player": "p2", "poolId": uint64(99), "payment": uint64(10),
		}, "p2"),
	}
	for i, tx := range failures {
		res := e.deliver(tx, tEnroll)
		if res.Code == 0 {
			t.Fatalf("failure case %d unexpectedly succeeded", i)
		}
		if got := e.a.st.AppHash(); !bytes.Equal(before, got) {
			t.Fatalf("failure case %d mutated state: hash %x != %x", i, got, before)
		}
	}

	// The state still accepts valid work afterwards.
	e.mint("p2", 5)
	e.mustDeliver(e.signedTx("pool/join", map[string]any{
		"player": "p2", "poolId": poolID, "payment": uint64(10),
	}, "p2"), tEnroll)
}

func TestMalformedTxRejected(t *testing.T) {
	e := newTestEnv(t)
	before := e.a.st.AppHash()

	for _, tx := range [][]byte{
		[]byte("not json"),
		[]byte(`{"value":{}}`),
		[]byte(`{"type":"pool/unknown","value":{}}`),
		[]byte(`{"type":"pool/join","value":"not an object"}`),
	} {
		if res := e.deliver(tx, tStart); res.Code == 0 {
			t.Fatalf("malformed tx accepted: %s", tx)
		}
	}
	if !bytes.Equal(before, e.a.st.AppHash()) {
		t.Fatalf("malformed txs mutated state")
	}
}

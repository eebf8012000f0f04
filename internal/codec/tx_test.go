package codec

import (
	"encoding/json"
	"testing"
)

func TestDecodeTxEnvelope(t *testing.T) {
	env, err := DecodeTxEnvelope([]byte(`{"type":"pool/join","value":{"player":"alice","poolId":1,"payment":10}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Type != "pool/join" {
		t.Fatalf("type=%q", env.Type)
	}
	var msg PoolJoinTx
	if err := json.Unmarshal(env.Value, &msg); err != nil {
		t.Fatalf("unmarshal value: %v", err)
	}
	if msg.Player != "alice" || msg.PoolID != 1 || msg.Payment != 10 {
		t.Fatalf("unexpected msg: %+v", msg)
	}
}

func TestDecodeTxEnvelope_Rejections(t *testing.T) {
	if _, err := DecodeTxEnvelope([]byte(`not json`)); err == nil {
		t.Fatalf("expected invalid json error")
	}
	if _, err := DecodeTxEnvelope([]byte(`{"value":{}}`)); err == nil {
		t.Fatalf("expected missing type error")
	}
}

func TestDecodeTxEnvelope_CarriesAuthFields(t *testing.T) {
	env, err := DecodeTxEnvelope([]byte(`{"type":"bank/send","value":{},"nonce":"1","signer":"alice","sig":"AAEC"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Nonce != "1" || env.Signer != "alice" {
		t.Fatalf("auth fields lost: %+v", env)
	}
	if len(env.Sig) != 3 {
		t.Fatalf("sig not base64-decoded: %v", env.Sig)
	}
}

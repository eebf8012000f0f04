package state

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"merklepool/internal/pool"
)

type State struct {
	Height int64 `json:"height"`

	Accounts    map[string]uint64 `json:"accounts"`
	AccountKeys map[string][]byte `json:"accountKeys,omitempty"` // addr -> ed25519 pubkey (32 bytes)
	NonceMax    map[string]uint64 `json:"nonceMax,omitempty"`    // signer -> last accepted tx.nonce (u64), for replay protection

	Tokens map[string]*Token `json:"tokens,omitempty"` // denom -> token ledger

	NextPoolID uint64                `json:"nextPoolId"`
	Pools      map[uint64]*pool.Pool `json:"pools"`
}

// Token is one fungible-token ledger: admin-minted balances plus
// owner->spender allowances, the pull-payment path token pools use.
type Token struct {
	Admin      string                       `json:"admin"`
	Balances   map[string]uint64            `json:"balances"`
	Allowances map[string]map[string]uint64 `json:"allowances,omitempty"`
}

func NewState() *State {
	return &State{
		Height:      0,
		Accounts:    map[string]uint64{},
		AccountKeys: map[string][]byte{},
		NonceMax:    map[string]uint64{},
		Tokens:      map[string]*Token{},
		NextPoolID:  1,
		Pools:       map[uint64]*pool.Pool{},
	}
}

func fixup(st *State) {
	if st.Accounts == nil {
		st.Accounts = map[string]uint64{}
	}
	if st.AccountKeys == nil {
		st.AccountKeys = map[string][]byte{}
	}
	if st.NonceMax == nil {
		st.NonceMax = map[string]uint64{}
	}
	if st.Tokens == nil {
		st.Tokens = map[string]*Token{}
	}
	for _, tok := range st.Tokens {
		if tok.Balances == nil {
			tok.Balances = map[string]uint64{}
		}
		if tok.Allowances == nil {
			tok.Allowances = map[string]map[string]uint64{}
		}
	}
	if st.NextPoolID == 0 {
		st.NextPoolID = 1
	}
	if st.Pools == nil {
		st.Pools = map[uint64]*pool.Pool{}
	}
	for _, p := range st.Pools {
		if p.Participants == nil {
			p.Participants = map[string]*pool.Record{}
		}
	}
}

func Load(home string) (*State, error) {
	path := filepath.Join(home, "state.json")
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewState(), nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}
	var st State
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	fixup(&st)
	return &st, nil
}

func (s *State) Save(home string) error {
	if err := os.MkdirAll(home, 0o755); err != nil {
		return fmt.Errorf("mkdir home: %w", err)
	}
	path := filepath.Join(home, "state.json")
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

// Clone returns a deep copy of state suitable for staged tx execution.
func (s *State) Clone() (*State, error) {
	if s == nil {
		return nil, fmt.Errorf("state is nil")
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode state clone: %w", err)
	}
	var out State
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode state clone: %w", err)
	}
	fixup(&out)
	return &out, nil
}

func (s *State) AppHash() []byte {
	// Deterministic JSON hash: marshal with stable key ordering by serializing
	// a normalized view.
	//
	// Note: encoding/json does NOT guarantee map key order, so we manually
	// normalize maps into slices.
	type accountKV struct {
		Addr    string `json:"addr"`
		Balance uint64 `json:"balance"`
	}
	type accountKeyKV struct {
		Addr   string `json:"addr"`
		PubKey []byte `json:"pubKey"`
	}
	type nonceKV struct {
		Signer string `json:"signer"`
		Nonce  uint64 `json:"nonce"`
	}
	type allowanceKV struct {
		Owner   string `json:"owner"`
		Spender string `json:"spender"`
		Amount  uint64 `json:"amount"`
	}
	type tokenKV struct {
		Denom      string        `json:"denom"`
		Admin      string        `json:"admin"`
		Balances   []accountKV   `json:"balances"`
		Allowances []allowanceKV `json:"allowances,omitempty"`
	}
	type poolKV struct {
		ID   uint64              `json:"id"`
		Pool pool.NormalizedPool `json:"pool"`
	}

	accounts := make([]accountKV, 0, len(s.Accounts))
	for k, v := range s.Accounts {
		accounts = append(accounts, accountKV{Addr: k, Balance: v})
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Addr < accounts[j].Addr })

	accountKeys := make([]accountKeyKV, 0, len(s.AccountKeys))
	for k, v := range s.AccountKeys {
		accountKeys = append(accountKeys, accountKeyKV{Addr: k, PubKey: v})
	}
	sort.Slice(accountKeys, func(i, j int) bool { return accountKeys[i].Addr < accountKeys[j].Addr })

	nonces := make([]nonceKV, 0, len(s.NonceMax))
	for k, v := range s.NonceMax {
		nonces = append(nonces, nonceKV{Signer: k, Nonce: v})
	}
	sort.Slice(nonces, func(i, j int) bool { return nonces[i].Signer < nonces[j].Signer })

	tokens := make([]tokenKV, 0, len(s.Tokens))
	for denom, tok := range s.Tokens {
		balances := make([]accountKV, 0, len(tok.Balances))
		for addr, bal := range tok.Balances {
			balances = append(balances, accountKV{Addr: addr, Balance: bal})
		}
		sort.Slice(balances, func(i, j int) bool { return balances[i].Addr < balances[j].Addr })

		allowances := make([]allowanceKV, 0)
		for owner, spenders := range tok.Allowances {
			for spender, amount := range spenders {
				allowances = append(allowances, allowanceKV{Owner: owner, Spender: spender, Amount: amount})
			}
		}
		sort.Slice(allowances, func(i, j int) bool {
			if allowances[i].Owner != allowances[j].Owner {
				return allowances[i].Owner < allowances[j].Owner
			}
			return allowances[i].Spender < allowances[j].Spender
		})

		tokens = append(tokens, tokenKV{Denom: denom, Admin: tok.Admin, Balances: balances, Allowances: allowances})
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].Denom < tokens[j].Denom })

	pools := make([]poolKV, 0, len(s.Pools))
	for id, p := range s.Pools {
		pools = append(pools, poolKV{ID: id, Pool: p.Normalized()})
	}
	sort.Slice(pools, func(i, j int) bool { return pools[i].ID < pools[j].ID })

	normalized := struct {
		Height      int64          `json:"height"`
		Accounts    []accountKV    `json:"accounts"`
		AccountKeys []accountKeyKV `json:"accountKeys,omitempty"`
		NonceMax    []nonceKV      `json:"nonceMax,omitempty"`
		Tokens      []tokenKV      `json:"tokens,omitempty"`
		NextPoolID  uint64         `json:"nextPoolId"`
		Pools       []poolKV       `json:"pools"`
	}{
		Height:      s.Height,
		Accounts:    accounts,
		AccountKeys: accountKeys,
		NonceMax:    nonces,
		Tokens:      tokens,
		NextPoolID:  s.NextPoolID,
		Pools:       pools,
	}

	b, _ := json.Marshal(normalized)
	sum := sha256.Sum256(b)
	return sum[:]
}

// ---- Bank ----

func (s *State) Balance(addr string) uint64 {
	return s.Accounts[addr]
}

func (s *State) Credit(addr string, amount uint64) error {
	bal := s.Accounts[addr]
	if bal > ^uint64(0)-amount {
		return fmt.Errorf("balance overflow: have=%d add=%d", bal, amount)
	}
	s.Accounts[addr] = bal + amount
	return nil
}

func (s *State) Debit(addr string, amount uint64) error {
	bal := s.Accounts[addr]
	if bal < amount {
		return fmt.Errorf("insufficient funds: have=%d need=%d", bal, amount)
	}
	s.Accounts[addr] = bal - amount
	return nil
}

// ---- Tokens ----

func (s *State) Token(denom string) *Token {
	return s.Tokens[denom]
}

func (s *State) CreateToken(denom, admin string) error {
	if denom == "" || admin == "" {
		return fmt.Errorf("missing denom/admin")
	}
	if s.Tokens[denom] != nil {
		return fmt.Errorf("token %q already exists", denom)
	}
	s.Tokens[denom] = &Token{
		Admin:      admin,
		Balances:   map[string]uint64{},
		Allowances: map[string]map[string]uint64{},
	}
	return nil
}

func (s *State) TokenBalance(denom, addr string) uint64 {
	tok := s.Tokens[denom]
	if tok == nil {
		return 0
	}
	return tok.Balances[addr]
}

func (s *State) TokenMint(denom, to string, amount uint64) error {
	tok := s.Tokens[denom]
	if tok == nil {
		return fmt.Errorf("unknown token %q", denom)
	}
	bal := tok.Balances[to]
	if bal > ^uint64(0)-amount {
		return fmt.Errorf("token balance overflow: have=%d add=%d", bal, amount)
	}
	tok.Balances[to] = bal + amount
	return nil
}

func (s *State) TokenAllowance(denom, owner, spender string) uint64 {
	tok := s.Tokens[denom]
	if tok == nil {
		return 0
	}
	return tok.Allowances[owner][spender]
}

// TokenApprove sets (not adds) the allowance owner grants spender.
func (s *State) TokenApprove(denom, owner, spender string, amount uint64) error {
	tok := s.Tokens[denom]
	if tok == nil {
		return fmt.Errorf("unknown token %q", denom)
	}
	if tok.Allowances[owner] == nil {
		tok.Allowances[owner] = map[string]uint64{}
	}
	tok.Allowances[owner][spender] = amount
	return nil
}

func (s *State) TokenTransfer(denom, from, to string, amount uint64) error {
	tok := s.Tokens[denom]
	if tok == nil {
		return fmt.Errorf("unknown token %q", denom)
	}
	fromBal := tok.Balances[from]
	if fromBal < amount {
		return fmt.Errorf("insufficient token funds: have=%d need=%d", fromBal, amount)
	}
	toBal := tok.Balances[to]
	if toBal > ^uint64(0)-amount {
		return fmt.Errorf("token balance overflow: have=%d add=%d", toBal, amount)
	}
	tok.Balances[from] = fromBal - amount
	tok.Balances[to] = toBal + amount
	return nil
}

// TokenTransferFrom moves owner's tokens on spender's authority, consuming
// allowance. Both the allowance and balance legs are checked before either
// is applied.
func (s *State) TokenTransferFrom(denom, owner, spender, to string, amount uint64) error {
	tok := s.Tokens[denom]
	if tok == nil {
		return fmt.Errorf("unknown token %q", denom)
	}
	allowed := tok.Allowances[owner][spender]
	if allowed < amount {
		return fmt.Errorf("insufficient allowance: have=%d need=%d", allowed, amount)
	}
	if err := s.TokenTransfer(denom, owner, to, amount); err != nil {
		return err
	}
	tok.Allowances[owner][spender] = allowed - amount
	return nil
}

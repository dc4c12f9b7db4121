// Package bank defines the fungible asset transfer capability consumed by the
// staking and lending engines. The engines never hold balances themselves;
// custody lives behind AssetLedger and every move is atomic from the engine's
// point of view.
package bank

import (
	"fmt"
	"math/big"
	"sort"
	"sync"

	"defiledger/core/types"
	"defiledger/native/common"
	"defiledger/native/fixedmath"
)

// ErrTransferFailed is the single error kind surfaced for any failed asset
// movement. Callers may retry a transfer failure as-is; validation failures
// they may not.
var ErrTransferFailed = common.Transfer("bank: transfer failed")

// AssetLedger is the external collaborator moving fungible balances between
// holders. Amounts are non-negative integers in the asset's native unit scale.
type AssetLedger interface {
	Transfer(token string, from, to types.Address, amount *big.Int) error
	BalanceOf(token string, holder types.Address) *big.Int
}

// Ledger is a mutex-guarded in-memory AssetLedger used by the daemon and the
// engine test fixtures.
type Ledger struct {
	mu       sync.RWMutex
	balances map[string]map[types.Address]*big.Int
}

// NewLedger constructs an empty in-memory ledger.
func NewLedger() *Ledger {
	return &Ledger{balances: make(map[string]map[types.Address]*big.Int)}
}

// Mint credits amount of token to addr, creating the token bucket on demand.
func (l *Ledger) Mint(token string, addr types.Address, amount *big.Int) error {
	if err := fixedmath.CheckRange(amount); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	holders, ok := l.balances[token]
	if !ok {
		holders = make(map[types.Address]*big.Int)
		l.balances[token] = holders
	}
	current := holders[addr]
	if current == nil {
		current = big.NewInt(0)
	}
	next := new(big.Int).Add(current, amount)
	if err := fixedmath.CheckRange(next); err != nil {
		return err
	}
	holders[addr] = next
	return nil
}

// Transfer moves amount of token from one holder to another. Insufficient
// balance surfaces as ErrTransferFailed so the engines report a uniform
// transfer failure regardless of cause.
func (l *Ledger) Transfer(token string, from, to types.Address, amount *big.Int) error {
	if err := fixedmath.CheckRange(amount); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	holders, ok := l.balances[token]
	if !ok {
		return fmt.Errorf("%w: unknown token %q", ErrTransferFailed, token)
	}
	fromBal := holders[from]
	if fromBal == nil || fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: insufficient %s balance for %s", ErrTransferFailed, token, from)
	}
	toBal := holders[to]
	if toBal == nil {
		toBal = big.NewInt(0)
	}
	holders[from] = new(big.Int).Sub(fromBal, amount)
	holders[to] = new(big.Int).Add(toBal, amount)
	return nil
}

// BalanceOf returns the holder's balance, zero when unknown. The returned
// value is a copy; callers may mutate it freely.
func (l *Ledger) BalanceOf(token string, holder types.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	holders, ok := l.balances[token]
	if !ok {
		return big.NewInt(0)
	}
	return fixedmath.Clone(holders[holder])
}

// Entry is one holder balance in an exported snapshot.
type Entry struct {
	Token  string
	Holder types.Address
	Amount *big.Int
}

// Export snapshots every non-zero balance, sorted by token then holder so the
// output encodes deterministically.
func (l *Ledger) Export() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Entry
	for token, holders := range l.balances {
		for holder, amount := range holders {
			if amount == nil || amount.Sign() == 0 {
				continue
			}
			out = append(out, Entry{Token: token, Holder: holder, Amount: fixedmath.Clone(amount)})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Token != out[j].Token {
			return out[i].Token < out[j].Token
		}
		return string(out[i].Holder.Bytes()) < string(out[j].Holder.Bytes())
	})
	return out
}

// Restore replaces all balances with the given snapshot.
func (l *Ledger) Restore(entries []Entry) error {
	balances := make(map[string]map[types.Address]*big.Int)
	for _, entry := range entries {
		if err := fixedmath.CheckRange(entry.Amount); err != nil {
			return err
		}
		holders, ok := balances[entry.Token]
		if !ok {
			holders = make(map[types.Address]*big.Int)
			balances[entry.Token] = holders
		}
		holders[entry.Holder] = fixedmath.Clone(entry.Amount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances = balances
	return nil
}

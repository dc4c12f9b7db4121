// Package state persists engine snapshots through a storage.Database. Every
// record is RLP encoded under a versioned key so future schema migrations can
// coexist with old data.
package state

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"defiledger/native/bank"
	"defiledger/native/lending"
	"defiledger/native/staking"
	"defiledger/storage"
)

// schemaVersion is bumped on any breaking change to the stored encodings.
const schemaVersion = 1

var (
	stakingStateKey = key("staking/state")
	lendingStateKey = key("lending/state")
	bankStateKey    = key("bank/state")
)

func key(suffix string) []byte {
	return []byte(fmt.Sprintf("ledger/v%d/%s", schemaVersion, suffix))
}

// Manager reads and writes engine snapshots. It is a thin codec layer: the
// engines own all invariant checking through their Restore methods.
type Manager struct {
	db storage.Database
}

func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// SaveStaking persists a staking snapshot, replacing any previous one.
func (m *Manager) SaveStaking(state *staking.State) error {
	if state == nil {
		return fmt.Errorf("state: nil staking snapshot")
	}
	encoded, err := rlp.EncodeToBytes(state)
	if err != nil {
		return fmt.Errorf("state: encode staking: %w", err)
	}
	return m.db.Put(stakingStateKey, encoded)
}

// LoadStaking returns the stored staking snapshot, or nil when none exists.
func (m *Manager) LoadStaking() (*staking.State, error) {
	encoded, err := m.db.Get(stakingStateKey)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	state := new(staking.State)
	if err := rlp.DecodeBytes(encoded, state); err != nil {
		return nil, fmt.Errorf("state: decode staking: %w", err)
	}
	return state, nil
}

// SaveBank persists the asset ledger balances.
func (m *Manager) SaveBank(entries []bank.Entry) error {
	encoded, err := rlp.EncodeToBytes(entries)
	if err != nil {
		return fmt.Errorf("state: encode bank: %w", err)
	}
	return m.db.Put(bankStateKey, encoded)
}

// LoadBank returns the stored balances, or ok=false when none were saved yet.
func (m *Manager) LoadBank() ([]bank.Entry, bool, error) {
	encoded, err := m.db.Get(bankStateKey)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var entries []bank.Entry
	if err := rlp.DecodeBytes(encoded, &entries); err != nil {
		return nil, false, fmt.Errorf("state: decode bank: %w", err)
	}
	return entries, true, nil
}

// SaveLending persists a lending snapshot, replacing any previous one.
func (m *Manager) SaveLending(state *lending.State) error {
	if state == nil {
		return fmt.Errorf("state: nil lending snapshot")
	}
	encoded, err := rlp.EncodeToBytes(state)
	if err != nil {
		return fmt.Errorf("state: encode lending: %w", err)
	}
	return m.db.Put(lendingStateKey, encoded)
}

// LoadLending returns the stored lending snapshot, or nil when none exists.
func (m *Manager) LoadLending() (*lending.State, error) {
	encoded, err := m.db.Get(lendingStateKey)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	state := new(lending.State)
	if err := rlp.DecodeBytes(encoded, state); err != nil {
		return nil, fmt.Errorf("state: decode lending: %w", err)
	}
	return state, nil
}

package common

import (
	"fmt"
	"sync"

	"defiledger/core/types"
)

// Role names understood by the ledger engines. Role membership is injected;
// the engines only ask whether a caller holds a role.
const (
	// RoleAdmin gates pool/market administration and pause toggles.
	RoleAdmin = "admin"
	// RoleOracleAdmin gates price feed updates.
	RoleOracleAdmin = "oracle-admin"
)

// RoleStore answers role membership questions for caller addresses.
type RoleStore interface {
	HasRole(addr types.Address, role string) bool
}

// RequireRole rejects callers that do not hold the required role. A nil store
// denies everything so that a mis-wired engine fails closed.
func RequireRole(store RoleStore, caller types.Address, role string) error {
	if store == nil || !store.HasRole(caller, role) {
		return Authorization(fmt.Sprintf("caller %s lacks role %q", caller, role))
	}
	return nil
}

// Roles is a mutex-guarded in-memory RoleStore.
type Roles struct {
	mu      sync.RWMutex
	members map[string]map[types.Address]struct{}
}

// NewRoles constructs an empty role membership store.
func NewRoles() *Roles {
	return &Roles{members: make(map[string]map[types.Address]struct{})}
}

// Grant adds addr to the role's membership set.
func (r *Roles) Grant(addr types.Address, role string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.members[role]
	if !ok {
		set = make(map[types.Address]struct{})
		r.members[role] = set
	}
	set[addr] = struct{}{}
}

// Revoke removes addr from the role's membership set.
func (r *Roles) Revoke(addr types.Address, role string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if set, ok := r.members[role]; ok {
		delete(set, addr)
	}
}

// HasRole satisfies RoleStore.
func (r *Roles) HasRole(addr types.Address, role string) bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	set, ok := r.members[role]
	if !ok {
		return false
	}
	_, ok = set[addr]
	return ok
}

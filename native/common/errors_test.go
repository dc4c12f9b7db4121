package common

import (
	"errors"
	"fmt"
	"testing"

	"defiledger/core/types"
)

func addr(last byte) types.Address {
	var a types.Address
	a[types.AddressLength-1] = last
	return a
}

func TestErrorKindMatching(t *testing.T) {
	stillLocked := State("staking: stake still locked")
	if !errors.Is(stillLocked, ErrState) {
		t.Fatalf("expected state kind match")
	}
	if errors.Is(stillLocked, ErrValidation) {
		t.Fatalf("unexpected validation kind match")
	}
	if !errors.Is(stillLocked, stillLocked) {
		t.Fatalf("expected sentinel identity match")
	}

	wrapped := fmt.Errorf("unstake: %w", stillLocked)
	if !errors.Is(wrapped, ErrState) {
		t.Fatalf("expected wrapped kind match")
	}
	if !errors.Is(wrapped, stillLocked) {
		t.Fatalf("expected wrapped sentinel match")
	}
	if KindOf(wrapped) != KindState {
		t.Fatalf("unexpected kind: %d", KindOf(wrapped))
	}
}

func TestKindOfForeignError(t *testing.T) {
	if KindOf(errors.New("plain")) != 0 {
		t.Fatalf("expected zero kind for foreign error")
	}
	if KindOf(nil) != 0 {
		t.Fatalf("expected zero kind for nil")
	}
}

func TestRequireRole(t *testing.T) {
	roles := NewRoles()
	admin := addr(0x01)
	outsider := addr(0x02)
	roles.Grant(admin, RoleAdmin)

	if err := RequireRole(roles, admin, RoleAdmin); err != nil {
		t.Fatalf("admin rejected: %v", err)
	}
	if err := RequireRole(roles, outsider, RoleAdmin); !errors.Is(err, ErrAuthorization) {
		t.Fatalf("expected authorization error, got %v", err)
	}
	roles.Revoke(admin, RoleAdmin)
	if err := RequireRole(roles, admin, RoleAdmin); !errors.Is(err, ErrAuthorization) {
		t.Fatalf("expected revoked admin rejection, got %v", err)
	}
	if err := RequireRole(nil, admin, RoleAdmin); !errors.Is(err, ErrAuthorization) {
		t.Fatalf("expected nil store to fail closed, got %v", err)
	}
}

func TestPausesAndGuard(t *testing.T) {
	pauses := NewPauses("staking", "lending")
	if err := Guard(pauses, "staking"); err != nil {
		t.Fatalf("unexpected guard error: %v", err)
	}
	if !pauses.SetPaused("staking", true) {
		t.Fatalf("expected known module toggle")
	}
	if err := Guard(pauses, "staking"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected pause rejection, got %v", err)
	}
	if err := Guard(pauses, "lending"); err != nil {
		t.Fatalf("lending should stay unpaused: %v", err)
	}
	if pauses.SetPaused("swap", true) {
		t.Fatalf("unknown module should not toggle")
	}
	if err := Guard(nil, "staking"); err != nil {
		t.Fatalf("nil view must disable the check: %v", err)
	}
}

func TestCallGuard(t *testing.T) {
	var guard CallGuard
	if err := guard.Enter(); err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
	guard.Arm()
	if err := guard.Enter(); !errors.Is(err, ErrReentrantCall) {
		t.Fatalf("expected reentrant rejection, got %v", err)
	}
	guard.Disarm()
	if err := guard.Enter(); err != nil {
		t.Fatalf("expected disarmed guard to admit: %v", err)
	}
}

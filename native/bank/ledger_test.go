package bank

import (
	"errors"
	"math/big"
	"testing"

	"defiledger/core/types"
	"defiledger/native/common"
)

func addr(last byte) types.Address {
	var a types.Address
	a[types.AddressLength-1] = last
	return a
}

func TestTransferMovesBalance(t *testing.T) {
	ledger := NewLedger()
	alice := addr(0x01)
	bob := addr(0x02)
	if err := ledger.Mint("NHB", alice, big.NewInt(1000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Transfer("NHB", alice, bob, big.NewInt(400)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := ledger.BalanceOf("NHB", alice); got.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("unexpected sender balance: %s", got)
	}
	if got := ledger.BalanceOf("NHB", bob); got.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("unexpected recipient balance: %s", got)
	}
}

func TestTransferInsufficientBalance(t *testing.T) {
	ledger := NewLedger()
	alice := addr(0x01)
	bob := addr(0x02)
	if err := ledger.Mint("NHB", alice, big.NewInt(10)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	err := ledger.Transfer("NHB", alice, bob, big.NewInt(11))
	if !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("expected transfer failure, got %v", err)
	}
	if !errors.Is(err, common.ErrTransfer) {
		t.Fatalf("expected transfer kind, got %v", err)
	}
	if got := ledger.BalanceOf("NHB", alice); got.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("failed transfer must not move funds: %s", got)
	}
}

func TestTransferUnknownToken(t *testing.T) {
	ledger := NewLedger()
	err := ledger.Transfer("GHOST", addr(0x01), addr(0x02), big.NewInt(1))
	if !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("expected transfer failure, got %v", err)
	}
}

func TestBalanceOfReturnsCopy(t *testing.T) {
	ledger := NewLedger()
	alice := addr(0x01)
	if err := ledger.Mint("NHB", alice, big.NewInt(5)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	ledger.BalanceOf("NHB", alice).SetInt64(999)
	if got := ledger.BalanceOf("NHB", alice); got.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("balance aliased internal state: %s", got)
	}
}

func TestMintRejectsNegative(t *testing.T) {
	ledger := NewLedger()
	if err := ledger.Mint("NHB", addr(0x01), big.NewInt(-1)); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestExportRestoreRoundTrip(t *testing.T) {
	ledger := NewLedger()
	alice := addr(0x01)
	bob := addr(0x02)
	if err := ledger.Mint("NHB", alice, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Mint("ZNHB", bob, big.NewInt(200)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Transfer("NHB", alice, bob, big.NewInt(100)); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	entries := ledger.Export()
	// Zeroed balances are dropped and entries sort by token then holder.
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Token != "NHB" || entries[0].Holder != bob {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}

	restored := NewLedger()
	if err := restored.Restore(entries); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got := restored.BalanceOf("NHB", bob); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("restored NHB balance = %s", got)
	}
	if got := restored.BalanceOf("ZNHB", bob); got.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("restored ZNHB balance = %s", got)
	}
	if got := restored.BalanceOf("NHB", alice); got.Sign() != 0 {
		t.Fatalf("zero balance resurrected: %s", got)
	}
}

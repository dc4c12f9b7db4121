package types

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// AddressLength is the byte length of every account identifier handled by the
// ledger engines.
const AddressLength = 20

// Address identifies an external actor. The engines index state by address but
// never interpret it; ownership and key management live outside the ledger.
type Address [AddressLength]byte

// ParseAddress normalises and validates an address expressed as a hex string
// with an optional 0x prefix.
func ParseAddress(raw string) (Address, error) {
	var addr Address
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		trimmed = trimmed[2:]
	}
	if len(trimmed) != AddressLength*2 {
		return addr, fmt.Errorf("types: address must be %d bytes (got %d hex chars)", AddressLength, len(trimmed))
	}
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("types: decode address: %w", err)
	}
	copy(addr[:], decoded)
	return addr, nil
}

// BytesToAddress copies the trailing AddressLength bytes of b into an Address.
func BytesToAddress(b []byte) Address {
	var addr Address
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(addr[AddressLength-len(b):], b)
	return addr
}

// Bytes returns the raw address bytes.
func (a Address) Bytes() []byte { return a[:] }

// String renders the address as a 0x-prefixed hex string.
func (a Address) String() string { return "0x" + hex.EncodeToString(a[:]) }

// IsZero reports whether every byte of the address is zero.
func (a Address) IsZero() bool {
	for _, b := range a {
		if b != 0 {
			return false
		}
	}
	return true
}

package lending

import (
	"math/big"
	"sync"

	"defiledger/native/fixedmath"
)

// PriceOracle supplies asset USD valuations, 1e18 scaled per whole token
// unit. A false second return marks an unpriced asset, in which case the
// engine falls back to valuing one token unit at one USD unit. The fallback
// keeps test fixtures deterministic; it is not suitable for production feeds.
type PriceOracle interface {
	Price(token string) (*big.Int, bool)
}

// StaticOracle is a mutex-guarded map-backed PriceOracle for the daemon and
// tests.
type StaticOracle struct {
	mu     sync.RWMutex
	prices map[string]*big.Int
}

// NewStaticOracle constructs an oracle with no prices set.
func NewStaticOracle() *StaticOracle {
	return &StaticOracle{prices: make(map[string]*big.Int)}
}

// SetPrice installs or replaces the USD price for a token.
func (o *StaticOracle) SetPrice(token string, price *big.Int) error {
	if err := fixedmath.CheckRange(price); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prices[token] = fixedmath.Clone(price)
	return nil
}

// Price satisfies PriceOracle.
func (o *StaticOracle) Price(token string) (*big.Int, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	price, ok := o.prices[token]
	if !ok {
		return nil, false
	}
	return fixedmath.Clone(price), true
}

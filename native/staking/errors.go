package staking

import "defiledger/native/common"

var (
	// ErrPoolNotFound rejects references to never-created pool ids.
	ErrPoolNotFound = common.Validation("staking: pool not found")
	// ErrPoolInactive rejects new stakes against a deactivated pool.
	ErrPoolInactive = common.State("staking: pool inactive")
	// ErrInvalidAmount rejects zero or negative stake amounts.
	ErrInvalidAmount = common.Validation("staking: amount must be positive")
	// ErrInvalidRate rejects pool rates above 10000 basis points.
	ErrInvalidRate = common.Validation("staking: rate exceeds 10000 basis points")
	// ErrStakeNotFound rejects references to never-created stake indices.
	ErrStakeNotFound = common.Validation("staking: stake not found")
	// ErrEmptyStake rejects operations against a fully withdrawn position.
	ErrEmptyStake = common.State("staking: stake already withdrawn")
	// ErrStillLocked rejects unstakes before the pool lock period elapses.
	ErrStillLocked = common.State("staking: stake still locked")
	// ErrNoReward rejects claims when nothing has accrued.
	ErrNoReward = common.State("staking: no reward accrued")
)

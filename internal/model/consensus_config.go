package model

import "github.com/alsacoin/avalanche-node/internal/errors"

// ConsensusConfig parameterises the Avalanche sampling and acceptance
// thresholds. Pointer fields are optional, defaulting at the call site
// the way internal/config.Load populates them.
type ConsensusConfig struct {
	K             uint64  `cbor:"1,keyasint"`
	Alpha         uint64  `cbor:"2,keyasint"`
	Beta1         *uint64 `cbor:"3,keyasint,omitempty"`
	Beta2         *uint64 `cbor:"4,keyasint,omitempty"`
	MaxRetries    *uint32 `cbor:"5,keyasint,omitempty"`
	Timeout       *uint64 `cbor:"6,keyasint,omitempty"`
	StoreMessages *bool   `cbor:"7,keyasint,omitempty"`
}

// Validate enforces alpha <= k (spec.md §3).
func (c ConsensusConfig) Validate() error {
	if c.Alpha > c.K {
		return errors.New(errors.ERR_INVALID_MESSAGE, "alpha %d must be <= k %d", c.Alpha, c.K)
	}
	return nil
}

func (c ConsensusConfig) Beta1Or(def uint64) uint64 {
	if c.Beta1 == nil {
		return def
	}
	return *c.Beta1
}

func (c ConsensusConfig) Beta2Or(def uint64) uint64 {
	if c.Beta2 == nil {
		return def
	}
	return *c.Beta2
}

func (c ConsensusConfig) MaxRetriesOr(def uint32) uint32 {
	if c.MaxRetries == nil {
		return def
	}
	return *c.MaxRetries
}

func (c ConsensusConfig) TimeoutOr(def uint64) uint64 {
	if c.Timeout == nil {
		return def
	}
	return *c.Timeout
}

func (c ConsensusConfig) ShouldStoreMessages() bool {
	return c.StoreMessages != nil && *c.StoreMessages
}

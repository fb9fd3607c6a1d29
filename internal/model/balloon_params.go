package model

import "github.com/alsacoin/avalanche-node/internal/hashing"

// BalloonParams is the model-facing mirror of hashing.BalloonParams; kept
// as a distinct type so internal/model has no import-cycle dependency
// surface beyond internal/hashing and internal/mining.
type BalloonParams struct {
	SCost uint32 `cbor:"1,keyasint"`
	TCost uint32 `cbor:"2,keyasint"`
	Delta uint32 `cbor:"3,keyasint"`
}

func (p BalloonParams) Validate() error {
	return p.ToHashing().Validate()
}

func (p BalloonParams) ToHashing() hashing.BalloonParams {
	return hashing.BalloonParams{SCost: p.SCost, TCost: p.TCost, Delta: p.Delta}
}

func BalloonParamsFromHashing(h hashing.BalloonParams) BalloonParams {
	return BalloonParams{SCost: h.SCost, TCost: h.TCost, Delta: h.Delta}
}

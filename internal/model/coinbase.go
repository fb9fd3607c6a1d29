package model

import (
	"github.com/alsacoin/avalanche-node/internal/errors"
	"github.com/alsacoin/avalanche-node/internal/hashing"
	"github.com/alsacoin/avalanche-node/internal/mining"
)

// Coinbase is the mined reward attached to a Transaction. Eve's coinbase is
// distance=0, difficulty=0, amount=BASE; every other coinbase is mined
// against the distance-derived difficulty and carries the matching reward.
type Coinbase struct {
	Address      Address        `cbor:"1,keyasint"`
	Distance     uint64         `cbor:"2,keyasint"`
	Difficulty   uint16         `cbor:"3,keyasint"`
	CustomDigest *Digest        `cbor:"4,keyasint,omitempty"`
	Amount       uint64         `cbor:"5,keyasint"`
	Params       BalloonParams  `cbor:"6,keyasint"`
	Nonce        uint64         `cbor:"7,keyasint"`
	Digest       Digest         `cbor:"8,keyasint"`
}

// NewEveCoinbase builds the genesis coinbase: distance 0, difficulty 0,
// amount = BASE.
func NewEveCoinbase(address Address, params BalloonParams) Coinbase {
	return Coinbase{
		Address:    address,
		Distance:   0,
		Difficulty: 0,
		Amount:     hashing.CoinbaseBase,
		Params:     params,
	}
}

// NewCoinbase builds an unmined non-eve coinbase for distance>=1, computing
// its difficulty and deterministic reward amount.
func NewCoinbase(address Address, distance uint64, params BalloonParams) (Coinbase, error) {
	if distance == 0 {
		return Coinbase{}, errors.New(errors.ERR_INVALID_TRANSACTION, "non-eve coinbase requires distance >= 1")
	}

	difficulty := hashing.Difficulty(distance)

	amount, err := hashing.CoinbaseAmount(distance, difficulty)
	if err != nil {
		return Coinbase{}, err
	}

	return Coinbase{
		Address:    address,
		Distance:   distance,
		Difficulty: difficulty,
		Amount:     amount,
		Params:     params,
	}, nil
}

// IsEve reports whether this coinbase is the genesis coinbase.
func (c Coinbase) IsEve() bool {
	return c.Distance == 0
}

// IsMined reports whether Mine has produced a nonce/digest pair for
// non-eve coinbases (eve coinbases are never mined).
func (c Coinbase) IsMined() bool {
	if c.IsEve() {
		return true
	}
	return c.Digest != ZeroDigest
}

// miningMessage is the canonical payload mined/verified against, built from
// Address, Distance, Difficulty and (when set) CustomDigest; Amount, Params,
// Nonce and Digest are not part of it.
func (c Coinbase) miningMessage() []byte {
	msg := make([]byte, 0, AddressSize+8+2+DigestSize)
	msg = append(msg, c.Address.Bytes()...)
	msg = append(msg, hashing.LEBytes8(c.Distance)...)
	msg = append(msg, byte(c.Difficulty>>8), byte(c.Difficulty))
	if c.CustomDigest != nil {
		msg = append(msg, c.CustomDigest.Bytes()...)
	}
	return msg
}

// Mine runs the proof-of-work search and stamps Nonce/Digest on success.
func (c *Coinbase) Mine() error {
	if c.IsEve() {
		return nil
	}

	if err := c.Params.Validate(); err != nil {
		return err
	}

	nonce, digest, err := mining.Mine(c.Params.ToHashing(), uint64(c.Difficulty), c.miningMessage())
	if err != nil {
		return err
	}

	c.Nonce = nonce
	c.Digest = Digest(digest)

	return nil
}

// VerifyMined re-runs Balloon verification against the stored nonce/digest.
func (c Coinbase) VerifyMined() (bool, error) {
	if c.IsEve() {
		return true, nil
	}

	if !c.IsMined() {
		return false, errors.ErrNotMined
	}

	return mining.Verify(c.Params.ToHashing(), uint64(c.Difficulty), c.miningMessage(), c.Nonce, [hashing.DigestSize]byte(c.Digest))
}

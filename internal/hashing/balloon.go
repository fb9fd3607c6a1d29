package hashing

import (
	"encoding/binary"

	"github.com/alsacoin/avalanche-node/internal/errors"
)

// BalloonParams bounds the memory-hard Balloon hash. s_cost is the number
// of 512-bit buffer cells, t_cost the number of mixing rounds, and delta
// the number of pseudo-random dependencies consulted per cell per round.
type BalloonParams struct {
	SCost uint32
	TCost uint32
	Delta uint32
}

// Validate enforces s_cost>=1, t_cost>=1, delta>=3 (spec.md §4.1); anything
// outside this range fails with BalloonParams.
func (p BalloonParams) Validate() error {
	if p.SCost < 1 {
		return errors.New(errors.ERR_BALLOON_PARAMS, "s_cost must be >= 1, got %d", p.SCost)
	}
	if p.TCost < 1 {
		return errors.New(errors.ERR_BALLOON_PARAMS, "t_cost must be >= 1, got %d", p.TCost)
	}
	if p.Delta < 3 {
		return errors.New(errors.ERR_BALLOON_PARAMS, "delta must be >= 3, got %d", p.Delta)
	}
	return nil
}

// counter is a monotonically incrementing 8-byte prefix mixed into every
// compression call, following the published Balloon construction.
type counter uint64

func (c *counter) next() []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, uint64(*c))
	*c++
	return b
}

func compress(parts ...[]byte) [DigestSize]byte {
	total := 0
	for _, p := range parts {
		total += len(p)
	}
	buf := make([]byte, 0, total)
	for _, p := range parts {
		buf = append(buf, p...)
	}
	return CRH(buf)
}

func toBlockIndex(h [DigestSize]byte, sCost uint32) uint32 {
	v := binary.LittleEndian.Uint64(h[:8])
	return uint32(v % uint64(sCost))
}

// Balloon computes the memory-hard Balloon hash of msg, salted with salt,
// under params, returning the final one of s_cost 512-bit buffer cells.
//
// This follows the standard Balloon construction (expand, then mix for
// t_cost rounds with delta random accesses per cell), using CRH as the
// inner compression function — the loop bounds (0..t_cost for rounds,
// 1..s_cost for cells) are the published-paper bounds rather than the
// off-by-one variant found in some reference implementations.
func Balloon(salt [DigestSize]byte, params BalloonParams, msg []byte) ([DigestSize]byte, error) {
	var zero [DigestSize]byte

	if err := params.Validate(); err != nil {
		return zero, err
	}

	sCost := params.SCost
	tCost := params.TCost
	delta := params.Delta

	buf := make([][DigestSize]byte, sCost)

	var cnt counter

	// Expand.
	buf[0] = compress(cnt.next(), msg, salt[:])
	for m := uint32(1); m < sCost; m++ {
		buf[m] = compress(cnt.next(), buf[m-1][:])
	}

	// Mix.
	for t := uint32(0); t < tCost; t++ {
		for m := uint32(0); m < sCost; m++ {
			prevIdx := (m - 1 + sCost) % sCost
			buf[m] = compress(cnt.next(), buf[m][:], buf[prevIdx][:])

			for i := uint32(0); i < delta; i++ {
				idxSeed := compress(cnt.next(), salt[:], le32(t), le32(m), le32(i))
				other := buf[toBlockIndex(idxSeed, sCost)]
				buf[m] = compress(cnt.next(), buf[m][:], other[:])
			}
		}
	}

	return buf[sCost-1], nil
}

func le32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

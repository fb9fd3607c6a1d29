// Package mining implements the proof-of-work search: given a message and a
// target difficulty, find a nonce whose Balloon digest clears the
// leading-zero-bits bar.
package mining

import (
	"github.com/alsacoin/avalanche-node/internal/errors"
	"github.com/alsacoin/avalanche-node/internal/hashing"
)

// MaxNonce bounds the search space; exhausting it without a match fails
// with NotFound rather than looping forever.
const MaxNonce = ^uint64(0)

// Mine returns the first nonce, in increasing order, such that
// leading_zeros(Balloon(CRH(nonced_msg) as salt, params, nonced_msg)) >=
// difficulty, where nonced_msg = le_bytes(nonce) || msg.
func Mine(params hashing.BalloonParams, difficulty uint64, msg []byte) (nonce uint64, digest [hashing.DigestSize]byte, err error) {
	var zero [hashing.DigestSize]byte

	if difficulty > hashing.MaxDifficultyBits {
		return 0, zero, errors.New(errors.ERR_OUT_OF_BOUND, "difficulty %d exceeds %d", difficulty, hashing.MaxDifficultyBits)
	}

	if err := params.Validate(); err != nil {
		return 0, zero, err
	}

	for n := uint64(0); n < MaxNonce; n++ {
		nonced := NoncedMessage(n, msg)
		salt := hashing.CRH(nonced)

		h, err := hashing.Balloon(salt, params, nonced)
		if err != nil {
			return 0, zero, err
		}

		if hashing.LeadingZeros(h) >= difficulty {
			return n, h, nil
		}
	}

	return 0, zero, errors.New(errors.ERR_NOT_FOUND, "exhausted nonce space without meeting difficulty %d", difficulty)
}

// Verify recomputes the Balloon output for (nonce, msg) under params and
// checks it equals digest and meets difficulty.
func Verify(params hashing.BalloonParams, difficulty uint64, msg []byte, nonce uint64, digest [hashing.DigestSize]byte) (bool, error) {
	if difficulty > hashing.MaxDifficultyBits {
		return false, errors.New(errors.ERR_OUT_OF_BOUND, "difficulty %d exceeds %d", difficulty, hashing.MaxDifficultyBits)
	}

	nonced := NoncedMessage(nonce, msg)
	salt := hashing.CRH(nonced)

	h, err := hashing.Balloon(salt, params, nonced)
	if err != nil {
		return false, err
	}

	if h != digest {
		return false, nil
	}

	return hashing.LeadingZeros(h) >= difficulty, nil
}

// NoncedMessage prepends the little-endian nonce to msg, the exact payload
// the Balloon salt and inner hash are computed over.
func NoncedMessage(nonce uint64, msg []byte) []byte {
	out := make([]byte, 0, 8+len(msg))
	out = append(out, hashing.LEBytes8(nonce)...)
	out = append(out, msg...)
	return out
}

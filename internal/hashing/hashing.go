// Package hashing implements the node's hard-core cryptographic primitives:
// the collision-resistant hash, the leading-zero-bits target predicate, the
// Riemann-zeta difficulty/coinbase math, and the Balloon memory-hard hash.
//
// This package intentionally knows nothing about internal/model — it works
// in plain byte arrays and uint64s so internal/model can import it (for
// Transaction.Mine/Validate) without creating an import cycle.
package hashing

import (
	"encoding/binary"
	"math"
	"math/bits"

	"golang.org/x/crypto/blake2b"

	"github.com/alsacoin/avalanche-node/internal/errors"
)

// DigestSize is the width of the CRH output, in bytes (512 bits).
const DigestSize = 64

// MaxDifficultyBits is the widest leading-zero-bits target the protocol
// will ever demand (512 bits == the whole digest).
const MaxDifficultyBits = DigestSize * 8

// CRH is the node's 512-bit collision-resistant hash, Blake2b-512.
func CRH(msg []byte) [DigestSize]byte {
	return blake2b.Sum512(msg)
}

// Target returns the 64-byte value with exactly bits leading zero bits set,
// i.e. the numeric upper bound a digest must fall under (lexicographically,
// smaller-or-equal in the sense of more leading zero bits) to satisfy a
// leading-zero-bits difficulty of bits.
func Target(bitsWanted uint64) ([DigestSize]byte, error) {
	var t [DigestSize]byte

	if bitsWanted > MaxDifficultyBits {
		return t, errors.New(errors.ERR_OUT_OF_BOUND, "target bits %d exceeds %d", bitsWanted, MaxDifficultyBits)
	}

	fullBytes := bitsWanted / 8
	remBits := bitsWanted % 8

	for i := uint64(0); i < fullBytes; i++ {
		t[i] = 0x00
	}

	for i := fullBytes; i < DigestSize; i++ {
		t[i] = 0xFF
	}

	if remBits > 0 && fullBytes < DigestSize {
		t[fullBytes] = 0xFF >> remBits
	}

	return t, nil
}

// LeadingZeros counts the number of leading zero bits in digest, in [0,512].
func LeadingZeros(digest [DigestSize]byte) uint64 {
	var total uint64
	for _, b := range digest {
		if b == 0 {
			total += 8
			continue
		}
		total += uint64(bits.LeadingZeros8(b))
		break
	}
	return total
}

// RiemannZeta2 computes zeta(n) = sum_{i=1..n} 1/i^2. Fails with OutOfBound
// for n=0, matching the mining difficulty/coinbase tables which are
// undefined at distance/difficulty zero.
func RiemannZeta2(n uint64) (float64, error) {
	if n == 0 {
		return 0, errors.ErrOutOfBound
	}

	var sum float64
	for i := uint64(1); i <= n; i++ {
		fi := float64(i)
		sum += 1.0 / (fi * fi)
	}

	return sum, nil
}

// Difficulty returns floor(512 * (6/pi^2) * zeta(distance)) for distance>=1,
// and 0 for distance=0. Monotonically increasing, bounded by 512.
func Difficulty(distance uint64) uint16 {
	if distance == 0 {
		return 0
	}

	z, err := RiemannZeta2(distance)
	if err != nil {
		return 0
	}

	d := math.Floor(float64(MaxDifficultyBits) * (6.0 / (math.Pi * math.Pi)) * z)
	if d > MaxDifficultyBits {
		d = MaxDifficultyBits
	}

	return uint16(d)
}

// CoinbaseBase is BASE in spec.md §6 — the eve coinbase amount and the
// numerator of the non-eve amount formula.
const CoinbaseBase = uint64(1_000_000_000)

// CoinbaseAmount returns floor(BASE * zeta(1+distance/1000) / zeta(difficulty))
// for distance>=1; eve (distance=0) always returns BASE directly and should
// not call this function.
func CoinbaseAmount(distance uint64, difficulty uint16) (uint64, error) {
	if distance == 0 {
		return CoinbaseBase, nil
	}

	if difficulty < 1 || difficulty > MaxDifficultyBits {
		return 0, errors.New(errors.ERR_OUT_OF_BOUND, "difficulty %d out of [1,%d]", difficulty, MaxDifficultyBits)
	}

	numZ, err := RiemannZeta2(1 + distance/1000)
	if err != nil {
		return 0, err
	}

	denZ, err := RiemannZeta2(uint64(difficulty))
	if err != nil {
		return 0, err
	}

	amount := math.Floor(float64(CoinbaseBase) * numZ / denZ)

	return uint64(amount), nil
}

// LEBytes8 encodes a uint64 as 8 little-endian bytes, the nonce encoding
// used throughout the mining message construction.
func LEBytes8(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

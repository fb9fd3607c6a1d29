package model

import (
	"crypto/ed25519"
	"encoding/hex"

	"github.com/alsacoin/avalanche-node/internal/errors"
)

// AddressSize is the width of an ed25519 public key, used directly as the
// Address representation.
const AddressSize = ed25519.PublicKeySize

// Address identifies an Account and keys a ConflictSet. It holds an
// ed25519 public key verbatim; hashing it into a Digest (for Node identity)
// is the caller's concern so this package stays free of the hashing
// dependency.
type Address [AddressSize]byte

var ZeroAddress Address

func AddressFromPublicKey(pub ed25519.PublicKey) (Address, error) {
	var a Address
	if len(pub) != AddressSize {
		return a, errors.New(errors.ERR_INVALID_ADDRESS, "public key has length %d, want %d", len(pub), AddressSize)
	}
	copy(a[:], pub)
	return a, nil
}

func AddressFromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != AddressSize {
		return a, errors.New(errors.ERR_INVALID_ADDRESS, "address has length %d, want %d", len(b), AddressSize)
	}
	copy(a[:], b)
	return a, nil
}

func (a Address) Bytes() []byte {
	return a[:]
}

func (a Address) MarshalBinary() ([]byte, error) {
	return a[:], nil
}

func (a *Address) UnmarshalBinary(data []byte) error {
	if len(data) != AddressSize {
		return errors.New(errors.ERR_INVALID_ADDRESS, "address must be %d bytes, got %d", AddressSize, len(data))
	}
	copy(a[:], data)
	return nil
}

func (a Address) PublicKey() ed25519.PublicKey {
	return ed25519.PublicKey(a[:])
}

func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

func (a Address) IsZero() bool {
	return a == ZeroAddress
}

func (a Address) Less(o Address) bool {
	for i := range a {
		if a[i] != o[i] {
			return a[i] < o[i]
		}
	}
	return false
}

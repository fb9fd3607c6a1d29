package model

import (
	"crypto/ed25519"
	"sort"

	"github.com/fxamacker/cbor/v2"

	"github.com/alsacoin/avalanche-node/internal/errors"
	"github.com/alsacoin/avalanche-node/internal/hashing"
	"github.com/alsacoin/avalanche-node/internal/mining"
)

var canonicalEncMode = func() cbor.EncMode {
	m, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return m
}()

// Input is one spent reference: the amount taken from Address, signed by
// its holder over the transaction's signing payload.
type Input struct {
	Address   Address `cbor:"1,keyasint"`
	Amount    uint64  `cbor:"2,keyasint"`
	Signature []byte  `cbor:"3,keyasint,omitempty"`
}

// Output credits Amount to Address; CustomDigest optionally binds the
// output to caller-chosen opaque data (e.g. a memo hash).
type Output struct {
	Address      Address `cbor:"1,keyasint"`
	Amount       uint64  `cbor:"2,keyasint"`
	CustomDigest *Digest `cbor:"3,keyasint,omitempty"`
}

// Transaction is the node's HybridTx: a DAG vertex referencing ancestors,
// carrying inputs/outputs/fee, an optional coinbase reward, and its own
// mining proof.
type Transaction struct {
	ID        Digest     `cbor:"1,keyasint"`
	Version   Version    `cbor:"2,keyasint"`
	Stage     Stage      `cbor:"3,keyasint"`
	Time      Timestamp  `cbor:"4,keyasint"`
	Locktime  uint64      `cbor:"5,keyasint"`
	Inputs    []Input    `cbor:"6,keyasint"`
	Outputs   []Output   `cbor:"7,keyasint"`
	Coinbase  *Coinbase  `cbor:"8,keyasint,omitempty"`
	Fee       uint64     `cbor:"9,keyasint"`
	Ancestors DigestSet  `cbor:"10,keyasint"`
	Nonce     uint64     `cbor:"11,keyasint"`
	Digest    Digest     `cbor:"12,keyasint"`
}

// NewEve builds the genesis transaction: no ancestors, a single eve
// coinbase output, distance 0.
func NewEve(stage Stage, eveAddress Address, params BalloonParams) (*Transaction, error) {
	tx := &Transaction{
		Version:   CurrentVersion,
		Stage:     stage,
		Time:      Now(),
		Ancestors: NewDigestSet(),
	}

	cb := NewEveCoinbase(eveAddress, params)
	tx.Coinbase = &cb
	tx.Outputs = []Output{{Address: eveAddress, Amount: cb.Amount}}

	// Eve is mined at difficulty 0, so the search terminates immediately
	// at nonce 0 — this still stamps a valid (nonce, digest) pair so
	// IsMined()/ValidateMined() hold for the genesis transaction too.
	if err := tx.Mine(0, params); err != nil {
		return nil, err
	}

	return tx, nil
}

// New builds an unsigned, unmined transaction referencing ancestors.
func New(stage Stage, ancestors DigestSet) *Transaction {
	return &Transaction{
		Version:   CurrentVersion,
		Stage:     stage,
		Time:      Now(),
		Ancestors: ancestors,
	}
}

func (tx *Transaction) AddInput(address Address, amount uint64) {
	tx.Inputs = append(tx.Inputs, Input{Address: address, Amount: amount})
}

func (tx *Transaction) AddOutput(address Address, amount uint64, customDigest *Digest) {
	tx.Outputs = append(tx.Outputs, Output{Address: address, Amount: amount, CustomDigest: customDigest})
}

func (tx *Transaction) SetLocktime(lt uint64) {
	tx.Locktime = lt
}

// SetCoinbase attaches a non-eve coinbase computed for this transaction's
// DAG distance.
func (tx *Transaction) SetCoinbase(address Address, distance uint64, params BalloonParams) error {
	cb, err := NewCoinbase(address, distance, params)
	if err != nil {
		return err
	}
	tx.Coinbase = &cb
	return nil
}

// signingPayload is the canonical bytes signed by every input: the
// transaction with signatures stripped and id/nonce/digest zeroed.
func (tx *Transaction) signingPayload() ([]byte, error) {
	clone := *tx
	clone.ID = ZeroDigest
	clone.Nonce = 0
	clone.Digest = ZeroDigest

	strippedInputs := make([]Input, len(tx.Inputs))
	for i, in := range tx.Inputs {
		strippedInputs[i] = Input{Address: in.Address, Amount: in.Amount}
	}
	clone.Inputs = strippedInputs

	return canonicalEncMode.Marshal(&clone)
}

// Sign signs the transaction's signing payload with key and stores the
// resulting signature against the input matching key's address. Every
// input must be signed by its own holder, so callers invoke Sign once per
// distinct signing key.
func (tx *Transaction) Sign(key ed25519.PrivateKey) error {
	addr, err := AddressFromPublicKey(key.Public().(ed25519.PublicKey))
	if err != nil {
		return err
	}

	payload, err := tx.signingPayload()
	if err != nil {
		return err
	}

	sig := ed25519.Sign(key, payload)

	found := false
	for i := range tx.Inputs {
		if tx.Inputs[i].Address == addr {
			tx.Inputs[i].Signature = sig
			found = true
		}
	}

	if !found {
		return errors.New(errors.ERR_INVALID_SIGNATURE, "no input for signing address %s", addr)
	}

	return nil
}

// computeID hashes the canonical encoding of tx with id/nonce/digest
// zeroed, matching invariant 1 in spec.md §4.3.
func (tx *Transaction) computeID() (Digest, error) {
	clone := *tx
	clone.ID = ZeroDigest
	clone.Nonce = 0
	clone.Digest = ZeroDigest

	b, err := canonicalEncMode.Marshal(&clone)
	if err != nil {
		return ZeroDigest, errors.New(errors.ERR_PARSE, "canonical encode: %v", err)
	}

	return Digest(hashing.CRH(b)), nil
}

// miningMessage is the payload Balloon-mined against for the transaction's
// own proof: le_bytes(nonce) is prepended by internal/mining.Mine/Verify.
// ID is zeroed too, since Mine sets it only after the search.
func (tx *Transaction) miningMessage() ([]byte, error) {
	clone := *tx
	clone.ID = ZeroDigest
	clone.Nonce = 0
	clone.Digest = ZeroDigest
	return canonicalEncMode.Marshal(&clone)
}

// Mine runs the proof-of-work search for this transaction at the given
// distance (see Distance) and stamps Nonce/Digest, along with the embedded
// Coinbase's own mining proof when present.
func (tx *Transaction) Mine(distance uint64, params BalloonParams) error {
	if tx.Coinbase != nil && !tx.Coinbase.IsEve() {
		if err := tx.Coinbase.Mine(); err != nil {
			return err
		}
	}

	difficulty := uint64(hashing.Difficulty(distance))

	msg, err := tx.miningMessage()
	if err != nil {
		return err
	}

	nonce, digest, err := mining.Mine(params.ToHashing(), difficulty, msg)
	if err != nil {
		return err
	}

	tx.Nonce = nonce
	tx.Digest = Digest(digest)

	id, err := tx.computeID()
	if err != nil {
		return err
	}
	tx.ID = id

	return nil
}

func (tx *Transaction) IsMined() bool {
	return tx.Digest != ZeroDigest
}

func (tx *Transaction) GetAncestors() DigestSet {
	return tx.Ancestors
}

// DistanceResolver looks up the already-known distance of an ancestor
// transaction id, letting Distance stay free of a direct storage
// dependency.
type DistanceResolver func(id Digest) (uint64, error)

// AncestorResolver looks up an already-known ancestor transaction by id,
// letting ValidateAncestors stay free of a direct storage dependency.
type AncestorResolver func(id Digest) (*Transaction, error)

// Distance returns 1 + max(ancestor distances), or 0 if tx is the eve
// transaction (no ancestors).
func (tx *Transaction) Distance(resolve DistanceResolver) (uint64, error) {
	if len(tx.Ancestors) == 0 {
		return 0, nil
	}

	var max uint64
	for id := range tx.Ancestors {
		d, err := resolve(id)
		if err != nil {
			return 0, err
		}
		if d > max {
			max = d
		}
	}

	return max + 1, nil
}

// ValidateMined re-runs the Balloon verification against distance's
// derived difficulty (invariant 5). params must be the same Balloon
// parameters the network is configured with, since Transaction does not
// carry its own (unlike Coinbase, which records Params for reward
// bookkeeping independent of the network-wide setting).
func (tx *Transaction) ValidateMined(distance uint64, params BalloonParams) error {
	if !tx.IsMined() {
		return errors.ErrNotMined
	}

	difficulty := uint64(hashing.Difficulty(distance))

	msg, err := tx.miningMessage()
	if err != nil {
		return err
	}

	ok, err := mining.Verify(params.ToHashing(), difficulty, msg, tx.Nonce, [hashing.DigestSize]byte(tx.Digest))
	if err != nil {
		return err
	}

	if !ok {
		return errors.New(errors.ERR_INVALID_TRANSACTION, "mined digest fails verification at difficulty %d", difficulty)
	}

	return nil
}

// Validate enforces invariants 1-3 of spec.md §4.3; invariant 4 (ancestor
// time/stage consistency) is checked separately via ValidateAncestors once
// the caller can resolve this tx's ancestors, and invariant 5 via
// ValidateMined once the caller knows this tx's Distance.
func (tx *Transaction) Validate() error {
	if err := tx.Stage.Validate(); err != nil {
		return err
	}

	if err := tx.Time.Validate(); err != nil {
		return err
	}

	wantID, err := tx.computeID()
	if err != nil {
		return err
	}
	if wantID != tx.ID {
		return errors.New(errors.ERR_INVALID_ID, "transaction id mismatch: have %s want %s", tx.ID, wantID)
	}

	if len(tx.Outputs) == 0 {
		return errors.New(errors.ERR_INVALID_TRANSACTION, "transaction has no outputs")
	}

	if err := tx.validateSignatures(); err != nil {
		return err
	}

	return tx.validateBalance()
}

func (tx *Transaction) validateSignatures() error {
	if len(tx.Inputs) == 0 {
		return nil
	}

	payload, err := tx.signingPayload()
	if err != nil {
		return err
	}

	for _, in := range tx.Inputs {
		if len(in.Signature) == 0 {
			return errors.New(errors.ERR_INVALID_SIGNATURE, "input for %s is unsigned", in.Address)
		}
		if !ed25519.Verify(in.Address.PublicKey(), payload, in.Signature) {
			return errors.New(errors.ERR_INVALID_SIGNATURE, "input signature for %s does not verify", in.Address)
		}
	}

	return nil
}

func (tx *Transaction) validateBalance() error {
	var inSum, outSum uint64
	for _, in := range tx.Inputs {
		inSum += in.Amount
	}
	for _, out := range tx.Outputs {
		outSum += out.Amount
	}

	var coinbaseAmount uint64
	if tx.Coinbase != nil {
		coinbaseAmount = tx.Coinbase.Amount
	}

	want := outSum + tx.Fee
	if want < coinbaseAmount {
		return errors.New(errors.ERR_INVALID_TRANSACTION, "coinbase amount %d exceeds outputs+fee %d", coinbaseAmount, want)
	}
	want -= coinbaseAmount

	if inSum != want {
		return errors.New(errors.ERR_INVALID_TRANSACTION, "input sum %d != outputs+fee-coinbase %d", inSum, want)
	}

	return nil
}

// ValidateAncestors enforces invariant 4 of spec.md §4.3: every ancestor
// must resolve, belong to the same stage, and be strictly smaller in time
// than tx itself.
func (tx *Transaction) ValidateAncestors(resolve AncestorResolver) error {
	for id := range tx.Ancestors {
		anc, err := resolve(id)
		if err != nil {
			return err
		}

		if anc.Stage != tx.Stage {
			return errors.New(errors.ERR_INVALID_TRANSACTION, "ancestor %s has stage %s, want %s", id, anc.Stage, tx.Stage)
		}

		if !anc.Time.Before(tx.Time) {
			return errors.New(errors.ERR_INVALID_TRANSACTION, "ancestor %s is not strictly earlier than %s", id, tx.ID)
		}
	}

	return nil
}

// SortedAncestors returns a deterministic ordering of Ancestors, useful for
// reproducible logging/tests.
func (tx *Transaction) SortedAncestors() []Digest {
	out := tx.Ancestors.Sorted()
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

package model

import "github.com/alsacoin/avalanche-node/internal/errors"

// ConflictSet groups every transaction that has ever referenced a given
// output Address. Exactly one exists per address that has ever been
// referenced (spec.md §4.4).
type ConflictSet struct {
	Address      Address   `cbor:"1,keyasint"`
	Stage        Stage     `cbor:"2,keyasint"`
	Transactions DigestSet `cbor:"3,keyasint"`
	Last         *Digest   `cbor:"4,keyasint,omitempty"`
	Preferred    *Digest   `cbor:"5,keyasint,omitempty"`
	Count        uint64    `cbor:"6,keyasint"`
}

func NewConflictSet(address Address, stage Stage) *ConflictSet {
	return &ConflictSet{
		Address:      address,
		Stage:        stage,
		Transactions: NewDigestSet(),
		Count:        0,
	}
}

// Add inserts txID into the conflict set. It does not touch Last or
// Preferred — those transition only through the Avalanche step
// (SetLast/SetPreferred/BumpCount/ResetCount), matching the original
// source's add_transaction(), which is distinct from its last/preferred
// bookkeeping.
func (cs *ConflictSet) Add(txID Digest) {
	cs.Transactions.Add(txID)
}

// Remove deletes txID and clears Last/Preferred if either pointed at it.
func (cs *ConflictSet) Remove(txID Digest) {
	cs.Transactions.Remove(txID)

	if cs.Last != nil && *cs.Last == txID {
		cs.Last = nil
	}
	if cs.Preferred != nil && *cs.Preferred == txID {
		cs.Preferred = nil
	}
}

func (cs *ConflictSet) SetLast(txID Digest) {
	cs.Last = &txID
}

func (cs *ConflictSet) SetPreferred(txID Digest) {
	cs.Preferred = &txID
}

// BumpCount advances Count when a query keeps Last == Preferred.
func (cs *ConflictSet) BumpCount() {
	cs.Count++
}

// ResetCount zeroes Count (on a dissenting query round) or sets it to 1 on
// a Last flip, per spec.md §4.9 step 1d.
func (cs *ConflictSet) ResetCount(to uint64) {
	cs.Count = to
}

// Validate enforces P5: Last/Preferred both set or both unset, and either
// in Transactions when set.
func (cs *ConflictSet) Validate() error {
	if (cs.Last == nil) != (cs.Preferred == nil) {
		return errors.New(errors.ERR_STORE, "conflict set %s: last and preferred must be both set or both unset", cs.Address)
	}

	if cs.Last != nil && !cs.Transactions.Contains(*cs.Last) {
		return errors.New(errors.ERR_STORE, "conflict set %s: last %s not in transactions", cs.Address, *cs.Last)
	}

	if cs.Preferred != nil && !cs.Transactions.Contains(*cs.Preferred) {
		return errors.New(errors.ERR_STORE, "conflict set %s: preferred %s not in transactions", cs.Address, *cs.Preferred)
	}

	return nil
}

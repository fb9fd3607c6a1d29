package model

import "github.com/alsacoin/avalanche-node/internal/errors"

// ConsensusState is the live Avalanche bookkeeping aggregate: every map is
// keyed by transaction id and must only ever reference ids already present
// in KnownTransactions (spec.md §3 invariant).
type ConsensusState struct {
	ID                     uint64              `cbor:"1,keyasint"`
	Stage                  Stage               `cbor:"2,keyasint"`
	EveAccountAddress      Address             `cbor:"3,keyasint"`
	EveTransactionID       Digest              `cbor:"4,keyasint"`
	SeedNodeAddresses      []Address           `cbor:"5,keyasint"`
	KnownTransactions      DigestSet           `cbor:"6,keyasint"`
	QueriedTransactions    DigestSet           `cbor:"7,keyasint"`
	TransactionConflictSet map[Digest]Address  `cbor:"8,keyasint"`
	TransactionChit        map[Digest]bool     `cbor:"9,keyasint"`
	TransactionConfidence  map[Digest]uint64   `cbor:"10,keyasint"`
	TransactionSuccessors  map[Digest]DigestSet `cbor:"11,keyasint"`
	KnownNodes             DigestSet           `cbor:"12,keyasint"`
}

func NewConsensusState(id uint64, stage Stage, eveAccount Address, eveTxID Digest, seeds []Address) *ConsensusState {
	return &ConsensusState{
		ID:                     id,
		Stage:                  stage,
		EveAccountAddress:      eveAccount,
		EveTransactionID:       eveTxID,
		SeedNodeAddresses:      seeds,
		KnownTransactions:      NewDigestSet(),
		QueriedTransactions:    NewDigestSet(),
		TransactionConflictSet: make(map[Digest]Address),
		TransactionChit:        make(map[Digest]bool),
		TransactionConfidence:  make(map[Digest]uint64),
		TransactionSuccessors:  make(map[Digest]DigestSet),
		KnownNodes:             NewDigestSet(),
	}
}

func (s *ConsensusState) AddKnownTransaction(id Digest) {
	s.KnownTransactions.Add(id)
}

func (s *ConsensusState) AddQueriedTransaction(id Digest) error {
	if !s.KnownTransactions.Contains(id) {
		return errors.New(errors.ERR_STORE, "cannot mark %s queried: not known", id)
	}
	s.QueriedTransactions.Add(id)
	return nil
}

func (s *ConsensusState) SetTransactionChit(id Digest, chit bool) error {
	if !s.KnownTransactions.Contains(id) {
		return errors.New(errors.ERR_STORE, "cannot set chit for %s: not known", id)
	}
	s.TransactionChit[id] = chit
	return nil
}

func (s *ConsensusState) GetTransactionChit(id Digest) bool {
	return s.TransactionChit[id]
}

func (s *ConsensusState) SetTransactionConfidence(id Digest, confidence uint64) error {
	if !s.KnownTransactions.Contains(id) {
		return errors.New(errors.ERR_STORE, "cannot set confidence for %s: not known", id)
	}
	s.TransactionConfidence[id] = confidence
	return nil
}

func (s *ConsensusState) GetTransactionConfidence(id Digest) uint64 {
	return s.TransactionConfidence[id]
}

func (s *ConsensusState) SetTransactionConflictSet(id Digest, csAddress Address) error {
	if !s.KnownTransactions.Contains(id) {
		return errors.New(errors.ERR_STORE, "cannot set conflict set for %s: not known", id)
	}
	s.TransactionConflictSet[id] = csAddress
	return nil
}

func (s *ConsensusState) AddSuccessor(ancestorID, successorID Digest) error {
	if !s.KnownTransactions.Contains(ancestorID) {
		return errors.New(errors.ERR_STORE, "cannot add successor to %s: not known", ancestorID)
	}

	succ, ok := s.TransactionSuccessors[ancestorID]
	if !ok {
		succ = NewDigestSet()
		s.TransactionSuccessors[ancestorID] = succ
	}
	succ.Add(successorID)

	return nil
}

func (s *ConsensusState) GetSuccessors(id Digest) DigestSet {
	succ, ok := s.TransactionSuccessors[id]
	if !ok {
		return NewDigestSet()
	}
	return succ
}

func (s *ConsensusState) AddKnownNode(id Digest) {
	s.KnownNodes.Add(id)
}

// RemoveKnownTransaction drops id from KnownTransactions and every
// secondary map/set that may reference it, preserving the "removing a
// known id also removes its secondary entries" invariant.
func (s *ConsensusState) RemoveKnownTransaction(id Digest) {
	s.KnownTransactions.Remove(id)
	s.QueriedTransactions.Remove(id)
	delete(s.TransactionConflictSet, id)
	delete(s.TransactionChit, id)
	delete(s.TransactionConfidence, id)
	delete(s.TransactionSuccessors, id)

	for _, succ := range s.TransactionSuccessors {
		succ.Remove(id)
	}
}

// Clear empties every collection, used by genesis re-creation and tests.
func (s *ConsensusState) Clear() {
	s.KnownTransactions = NewDigestSet()
	s.QueriedTransactions = NewDigestSet()
	s.TransactionConflictSet = make(map[Digest]Address)
	s.TransactionChit = make(map[Digest]bool)
	s.TransactionConfidence = make(map[Digest]uint64)
	s.TransactionSuccessors = make(map[Digest]DigestSet)
	s.KnownNodes = NewDigestSet()
}

// Validate checks every secondary-map key is a known transaction.
func (s *ConsensusState) Validate() error {
	check := func(id Digest, where string) error {
		if !s.KnownTransactions.Contains(id) {
			return errors.New(errors.ERR_STORE, "%s references unknown transaction %s", where, id)
		}
		return nil
	}

	for id := range s.QueriedTransactions {
		if err := check(id, "queried_transactions"); err != nil {
			return err
		}
	}
	for id := range s.TransactionConflictSet {
		if err := check(id, "transaction_conflict_set"); err != nil {
			return err
		}
	}
	for id := range s.TransactionChit {
		if err := check(id, "transaction_chit"); err != nil {
			return err
		}
	}
	for id := range s.TransactionConfidence {
		if err := check(id, "transaction_confidence"); err != nil {
			return err
		}
	}

	return nil
}

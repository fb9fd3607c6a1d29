package protocol

import (
	"context"

	"github.com/alsacoin/avalanche-node/internal/errors"
	"github.com/alsacoin/avalanche-node/internal/model"
)

// GetTransaction looks up a transaction, pool first then store, matching
// the original source's "pool-then-store fallback" resolution order.
func (s *State) GetTransaction(ctx context.Context, id model.Digest) (*model.Transaction, error) {
	if v, err := s.pool.Get(ctx, txKey(s.stage, id)); err == nil {
		var tx model.Transaction
		if err := unmarshalCBOR(v, &tx); err != nil {
			return nil, err
		}
		return &tx, nil
	}

	v, err := s.store.Get(ctx, txKey(s.stage, id))
	if err != nil {
		return nil, err
	}

	var tx model.Transaction
	if err := unmarshalCBOR(v, &tx); err != nil {
		return nil, err
	}

	return &tx, nil
}

func (s *State) isAcceptedStore(ctx context.Context, id model.Digest) (bool, error) {
	ok, err := s.store.Lookup(ctx, txKey(s.stage, id))
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (s *State) getConflictSet(ctx context.Context, addr model.Address) (*model.ConflictSet, error) {
	v, err := s.pool.Get(ctx, conflictSetKey(s.stage, addr))
	if err != nil {
		return nil, err
	}

	var cs model.ConflictSet
	if err := unmarshalCBOR(v, &cs); err != nil {
		return nil, err
	}

	return &cs, nil
}

func (s *State) putConflictSet(ctx context.Context, cs *model.ConflictSet) error {
	if err := cs.Validate(); err != nil {
		return err
	}

	b, err := marshalCBOR(cs)
	if err != nil {
		return err
	}

	key := conflictSetKey(s.stage, cs.Address)

	if ok, _ := s.pool.Lookup(ctx, key); ok {
		return s.pool.Update(ctx, key, b)
	}

	return s.pool.Insert(ctx, key, b)
}

// UpsertConflictSets creates-or-updates, for every output address of tx,
// the ConflictSet that must include tx.ID (spec.md §4.6).
func (s *State) UpsertConflictSets(ctx context.Context, tx *model.Transaction) error {
	for _, out := range tx.Outputs {
		cs, err := s.getConflictSet(ctx, out.Address)
		if err != nil {
			if !errors.Is(err, errors.ErrNotFound) {
				return err
			}
			cs = model.NewConflictSet(out.Address, s.stage)
		}

		cs.Add(tx.ID)

		if err := s.putConflictSet(ctx, cs); err != nil {
			return err
		}

		s.mu.Lock()
		err = s.state.SetTransactionConflictSet(tx.ID, out.Address)
		s.mu.Unlock()
		if err != nil {
			return err
		}
	}

	return nil
}

// UpdateSuccessors adds tx.ID as a successor of every ancestor it
// references.
func (s *State) UpdateSuccessors(tx *model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for anc := range tx.Ancestors {
		if err := s.state.AddSuccessor(anc, tx.ID); err != nil {
			return err
		}
	}

	return nil
}

// CalcConfidence sums id's own chit and the chits of every known
// successor, treating missing chits as 0.
func (s *State) CalcConfidence(id model.Digest) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var confidence uint64
	if s.state.GetTransactionChit(id) {
		confidence++
	}

	for succ := range s.state.GetSuccessors(id) {
		if s.state.GetTransactionChit(succ) {
			confidence++
		}
	}

	return confidence
}

// UpdateConfidence recomputes and stores id's confidence.
func (s *State) UpdateConfidence(id model.Digest) error {
	confidence := s.CalcConfidence(id)

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state.SetTransactionConfidence(id, confidence)
}

// IsPreferred reports whether id is its conflict set's current preferred
// transaction.
func (s *State) IsPreferred(ctx context.Context, id model.Digest) bool {
	s.mu.Lock()
	csAddr, ok := s.state.TransactionConflictSet[id]
	s.mu.Unlock()

	if !ok {
		return false
	}

	cs, err := s.getConflictSet(ctx, csAddr)
	if err != nil {
		return false
	}

	return cs.Preferred != nil && *cs.Preferred == id
}

// IsStronglyPreferred reports: the transaction is in the pool and every
// known ancestor is preferred, OR it's already in the accepted store
// (implicit chit 1).
func (s *State) IsStronglyPreferred(ctx context.Context, id model.Digest) (bool, error) {
	if accepted, err := s.isAcceptedStore(ctx, id); err != nil {
		return false, err
	} else if accepted {
		return true, nil
	}

	tx, err := s.GetTransaction(ctx, id)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	s.mu.Lock()
	known := s.state.KnownTransactions
	s.mu.Unlock()

	for anc := range tx.Ancestors {
		if !known.Contains(anc) {
			continue
		}
		if !s.IsPreferred(ctx, anc) {
			return false, nil
		}
	}

	return true, nil
}

// IsAccepted implements the four-way acceptance predicate of spec.md §4.6.
func (s *State) IsAccepted(ctx context.Context, id model.Digest) (bool, error) {
	s.mu.Lock()
	chit := s.state.GetTransactionChit(id)
	csAddr, hasCS := s.state.TransactionConflictSet[id]
	s.mu.Unlock()

	if chit {
		tx, err := s.GetTransaction(ctx, id)
		if err == nil {
			allAncestorsAccepted := true
			for anc := range tx.Ancestors {
				ok, err := s.IsAccepted(ctx, anc)
				if err != nil {
					return false, err
				}
				if !ok {
					allAncestorsAccepted = false
					break
				}
			}
			if allAncestorsAccepted {
				return true, nil
			}
		}
	}

	if accepted, err := s.isAcceptedStore(ctx, id); err != nil {
		return false, err
	} else if accepted {
		return true, nil
	}

	if !hasCS {
		return false, nil
	}

	cs, err := s.getConflictSet(ctx, csAddr)
	if err != nil {
		return false, err
	}

	beta1 := s.config.Beta1Or(1)
	beta2 := s.config.Beta2Or(2)

	if len(cs.Transactions) == 1 && cs.Count > beta1 {
		return true, nil
	}

	if cs.Count > beta2 {
		return true, nil
	}

	return false, nil
}

// Accept copies tx into the accepted store. onAccepted calls it after
// persisting the conflict set; if this write fails, onAccepted restores the
// chit and confidence it set for tx, while the persisted conflict set is
// left as written.
func (s *State) Accept(ctx context.Context, tx *model.Transaction) error {
	b, err := marshalCBOR(tx)
	if err != nil {
		return err
	}

	key := txKey(s.stage, tx.ID)

	if ok, _ := s.store.Lookup(ctx, key); ok {
		return nil
	}

	return s.store.Create(ctx, key, b)
}

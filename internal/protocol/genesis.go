package protocol

import (
	"context"

	"github.com/alsacoin/avalanche-node/internal/errors"
	"github.com/alsacoin/avalanche-node/internal/model"
	"github.com/alsacoin/avalanche-node/internal/storage"
)

// Create builds the genesis state from a freshly generated eve account and
// a seed address list: it validates the config and eve account, mines the
// eve transaction, clears both stores, creates the Account/Transaction/
// Nodes, and persists the initial ConsensusState at id=0 (spec.md §4.6).
func (s *State) Create(ctx context.Context, eveAccount model.Account, seedAddresses []model.Address) error {
	if err := s.stage.Validate(); err != nil {
		return err
	}

	if err := s.config.Validate(); err != nil {
		return err
	}

	if !eveAccount.IsEve() {
		return errors.New(errors.ERR_INVALID_ACCOUNT, "account %s is not the eve account", eveAccount.Address)
	}

	eveTx, err := model.NewEve(s.stage, eveAccount.Address, s.params)
	if err != nil {
		return err
	}

	if err := s.pool.Clear(ctx); err != nil {
		return err
	}
	if err := s.store.Clear(ctx); err != nil {
		return err
	}

	accB, err := marshalCBOR(&eveAccount)
	if err != nil {
		return err
	}
	if err := s.store.Create(ctx, accountKey(s.stage, eveAccount.Address), accB); err != nil {
		return err
	}

	txB, err := marshalCBOR(eveTx)
	if err != nil {
		return err
	}
	if err := s.store.Create(ctx, txKey(s.stage, eveTx.ID), txB); err != nil {
		return err
	}

	cs := model.NewConsensusState(0, s.stage, eveAccount.Address, eveTx.ID, seedAddresses)
	cs.AddKnownTransaction(eveTx.ID)

	for _, addr := range seedAddresses {
		n := model.NewNode(NodeID(addr), addr, s.stage, model.Now())
		if err := s.putNode(ctx, &n); err != nil {
			return err
		}
		cs.AddKnownNode(n.ID)
	}

	s.mu.Lock()
	s.state = cs
	s.mu.Unlock()

	return s.Save(ctx)
}

// Open loads the most recently persisted ConsensusState snapshot (highest
// id wins) and deletes older ones.
func (s *State) Open(ctx context.Context) error {
	from, to := storage.PrefixRange(s.stage.Byte(), storage.PrefixConsensus)

	kvs, err := s.store.Query(ctx, from, to, 0, 0)
	if err != nil {
		return err
	}

	if len(kvs) == 0 {
		return errors.ErrNotFound
	}

	var latest *model.ConsensusState
	var latestKey []byte
	var staleKeys [][]byte

	for _, kv := range kvs {
		var cs model.ConsensusState
		if err := unmarshalCBOR(kv.Value, &cs); err != nil {
			return err
		}

		if latest == nil || cs.ID > latest.ID {
			if latest != nil {
				staleKeys = append(staleKeys, latestKey)
			}
			latest = &cs
			latestKey = kv.Key
		} else {
			staleKeys = append(staleKeys, kv.Key)
		}
	}

	if len(staleKeys) > 0 {
		if err := s.store.RemoveBatch(ctx, staleKeys); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.state = latest
	s.mu.Unlock()

	return nil
}

// Save persists the current ConsensusState as a new snapshot keyed by its
// id, then prunes every older snapshot.
func (s *State) Save(ctx context.Context) error {
	s.mu.Lock()
	cs := *s.state
	s.mu.Unlock()

	b, err := marshalCBOR(&cs)
	if err != nil {
		return err
	}

	if err := s.store.Insert(ctx, consensusStateKey(s.stage, cs.ID), b); err != nil {
		if errors.Is(err, errors.ErrAlreadyFound) {
			if err := s.store.Update(ctx, consensusStateKey(s.stage, cs.ID), b); err != nil {
				return err
			}
		} else {
			return err
		}
	}

	return s.cleanup(ctx, cs.ID)
}

// cleanup removes every persisted ConsensusState snapshot other than keep.
func (s *State) cleanup(ctx context.Context, keep uint64) error {
	from, to := storage.PrefixRange(s.stage.Byte(), storage.PrefixConsensus)

	kvs, err := s.store.Query(ctx, from, to, 0, 0)
	if err != nil {
		return err
	}

	var stale [][]byte
	for _, kv := range kvs {
		var cs model.ConsensusState
		if err := unmarshalCBOR(kv.Value, &cs); err != nil {
			continue
		}
		if cs.ID != keep {
			stale = append(stale, kv.Key)
		}
	}

	if len(stale) == 0 {
		return nil
	}

	return s.store.RemoveBatch(ctx, stale)
}

// SetConfig replaces the consensus configuration after validating it.
func (s *State) SetConfig(cfg model.ConsensusConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = cfg

	return nil
}

// SetState replaces the live ConsensusState (used by tests constructing a
// scenario mid-flight).
func (s *State) SetState(cs *model.ConsensusState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = cs
}

// ClearState empties every collection of the live ConsensusState.
func (s *State) ClearState() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Clear()
}

package protocol

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alsacoin/avalanche-node/internal/errors"
	"github.com/alsacoin/avalanche-node/internal/model"
)

// Step runs one Avalanche round over every known-but-not-yet-queried
// transaction: ancestor closure, a k-peer query, and the chit/confidence/
// conflict-set state transition (spec.md §4.9).
func (s *State) Step(ctx context.Context) error {
	s.mu.Lock()
	toQuery := s.state.KnownTransactions.Minus(s.state.QueriedTransactions).Sorted()
	s.mu.Unlock()

	for _, txID := range toQuery {
		if err := s.stepOne(ctx, txID); err != nil {
			return err
		}
	}

	return nil
}

func (s *State) stepOne(ctx context.Context, txID model.Digest) error {
	tx, err := s.GetTransaction(ctx, txID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			s.mu.Lock()
			_ = s.state.AddQueriedTransaction(txID)
			s.mu.Unlock()
			return nil
		}
		return err
	}

	ancestors, err := s.FetchMissingAncestors(ctx, tx)
	if err != nil {
		return err
	}
	for _, anc := range ancestors {
		if err := s.HandleTransaction(ctx, anc); err != nil {
			return err
		}
	}

	chitSum, err := s.queryPeers(ctx, tx)
	if err != nil {
		return err
	}

	if chitSum >= s.config.Alpha {
		if err := s.onAccepted(ctx, tx); err != nil {
			return err
		}
	} else {
		if err := s.onRejected(ctx, tx); err != nil {
			return err
		}
	}

	s.mu.Lock()
	err = s.state.AddQueriedTransaction(txID)
	s.mu.Unlock()

	return err
}

// queryPeers samples k peers and fans out a Query to each concurrently,
// summing boolean chits via errgroup.
func (s *State) queryPeers(ctx context.Context, tx *model.Transaction) (uint64, error) {
	peers, err := s.SampleNodes(ctx, s.config.K)
	if err != nil {
		return 0, err
	}

	timeout := time.Duration(s.config.TimeoutOr(5)) * time.Second

	chits := make([]bool, len(peers))

	g, gctx := errgroup.WithContext(ctx)
	for i, peer := range peers {
		i, peer := i, peer
		g.Go(func() error {
			chit, err := s.Query(gctx, &peer, tx, timeout)
			if err != nil {
				// a single unresponsive peer does not fail the round;
				// it simply contributes no chit (spec.md §7).
				return nil
			}
			chits[i] = chit
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}

	var sum uint64
	for _, c := range chits {
		if c {
			sum++
		}
	}

	return sum, nil
}

// onAccepted implements step 1d: set chit=true, update confidence,
// possibly flip preferred, advance last/count, persist, and copy into the
// accepted store.
func (s *State) onAccepted(ctx context.Context, tx *model.Transaction) error {
	s.mu.Lock()
	prevChit := s.state.GetTransactionChit(tx.ID)
	prevConfidence := s.state.GetTransactionConfidence(tx.ID)
	err := s.state.SetTransactionChit(tx.ID, true)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if err := s.UpdateConfidence(tx.ID); err != nil {
		return err
	}

	s.mu.Lock()
	csAddr, hasCS := s.state.TransactionConflictSet[tx.ID]
	s.mu.Unlock()

	if !hasCS {
		return errors.New(errors.ERR_STORE, "transaction %s has no conflict set", tx.ID)
	}

	cs, err := s.getConflictSet(ctx, csAddr)
	if err != nil {
		return err
	}

	confidence := s.CalcConfidence(tx.ID)

	preferredConfidence := uint64(0)
	if cs.Preferred != nil {
		preferredConfidence = s.CalcConfidence(*cs.Preferred)
	}

	if cs.Preferred == nil || confidence > preferredConfidence {
		cs.SetPreferred(tx.ID)
	}

	if cs.Last == nil || *cs.Last != tx.ID {
		cs.SetLast(tx.ID)
		cs.ResetCount(1)
	} else {
		cs.BumpCount()
	}

	if err := s.putConflictSet(ctx, cs); err != nil {
		return err
	}

	if err := s.Accept(ctx, tx); err != nil {
		s.mu.Lock()
		s.state.TransactionChit[tx.ID] = prevChit
		s.state.TransactionConfidence[tx.ID] = prevConfidence
		s.mu.Unlock()
		return err
	}

	return nil
}

// onRejected implements step 1e: for every known ancestor of tx, reset its
// conflict set's count to 0.
func (s *State) onRejected(ctx context.Context, tx *model.Transaction) error {
	for anc := range tx.Ancestors {
		s.mu.Lock()
		csAddr, hasCS := s.state.TransactionConflictSet[anc]
		s.mu.Unlock()

		if !hasCS {
			continue
		}

		cs, err := s.getConflictSet(ctx, csAddr)
		if err != nil {
			continue
		}

		cs.ResetCount(0)

		if err := s.putConflictSet(ctx, cs); err != nil {
			return err
		}
	}

	return nil
}

// Run loops Step until ctx is cancelled, checking the cancellation signal
// between steps rather than mid-step (spec.md §5 cancellation policy).
func (s *State) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := s.Step(ctx); err != nil {
			return err
		}
	}
}

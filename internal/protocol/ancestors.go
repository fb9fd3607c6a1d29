package protocol

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/alsacoin/avalanche-node/internal/errors"
	"github.com/alsacoin/avalanche-node/internal/model"
	"github.com/alsacoin/avalanche-node/internal/wire"
)

// FetchMissingAncestors computes tx.Ancestors \ known, and — if non-empty
// — sends FetchTransactions to one randomly chosen peer and returns the
// transactions of that peer's Push reply; replies from several peers are
// not merged. When the round trip fails it waits one backoff interval and
// tries another peer not already tried, for at most MaxRetries retries,
// then fails with ErrTimeout; it fails with ErrNotFound when no untried
// peer is left.
func (s *State) FetchMissingAncestors(ctx context.Context, tx *model.Transaction) ([]*model.Transaction, error) {
	s.mu.Lock()
	known := s.state.KnownTransactions
	s.mu.Unlock()

	toFetch := tx.Ancestors.Minus(known)
	if len(toFetch) == 0 {
		return nil, nil
	}

	ids := toFetch.Sorted()

	tried := make(map[string]struct{})
	maxRetries := s.config.MaxRetriesOr(3)
	timeout := time.Duration(s.config.TimeoutOr(5)) * time.Second

	var result []*model.Transaction

	for attempt := uint32(0); attempt <= maxRetries; attempt++ {
		peer, err := s.RandomNode(ctx, tried)
		if err != nil {
			return nil, err
		}
		tried[peer.Address.String()] = struct{}{}

		resp, err := s.fetchTransactionsFromPeer(ctx, peer, ids, timeout)
		if err != nil {
			bo := backoff.NewExponentialBackOff()
			bo.MaxElapsedTime = timeout
			time.Sleep(bo.NextBackOff())
			continue
		}

		for i := range resp.Transactions {
			result = append(result, &resp.Transactions[i])
		}

		return result, nil
	}

	return nil, errors.ErrTimeout
}

func (s *State) fetchTransactionsFromPeer(ctx context.Context, peer *model.Node, ids []model.Digest, timeout time.Duration) (*wire.Message, error) {
	req := &wire.Message{
		Verb:    wire.VerbFetchTransactions,
		Address: s.address,
		IDs:     ids,
	}

	if _, err := wire.WithComputedID(req); err != nil {
		return nil, err
	}

	return s.SendMessage(ctx, peer.Address.Bytes(), req, timeout)
}

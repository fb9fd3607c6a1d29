package protocol

import (
	"bytes"
	"context"
	"math/rand"

	"github.com/alsacoin/avalanche-node/internal/errors"
	"github.com/alsacoin/avalanche-node/internal/hashing"
	"github.com/alsacoin/avalanche-node/internal/model"
)

func (s *State) putNode(ctx context.Context, n *model.Node) error {
	b, err := marshalCBOR(n)
	if err != nil {
		return err
	}

	key := nodeKey(s.stage, n.ID)

	if ok, _ := s.store.Lookup(ctx, key); ok {
		return s.store.Update(ctx, key, b)
	}

	return s.store.Create(ctx, key, b)
}

func (s *State) getNode(ctx context.Context, id model.Digest) (*model.Node, error) {
	v, err := s.store.Get(ctx, nodeKey(s.stage, id))
	if err != nil {
		return nil, err
	}

	var n model.Node
	if err := unmarshalCBOR(v, &n); err != nil {
		return nil, err
	}

	return &n, nil
}

// HandleNode rejects gossip about the local address; otherwise creates an
// unknown node or refreshes an existing one's last-seen timestamp.
func (s *State) HandleNode(ctx context.Context, n model.Node) error {
	if bytes.Equal(n.Address.Bytes(), s.address) {
		return errors.New(errors.ERR_INVALID_NODE, "node address is the local address")
	}

	existing, err := s.getNode(ctx, n.ID)
	if err != nil {
		if !errors.Is(err, errors.ErrNotFound) {
			return err
		}

		if err := s.putNode(ctx, &n); err != nil {
			return err
		}

		s.mu.Lock()
		s.state.AddKnownNode(n.ID)
		s.mu.Unlock()

		return nil
	}

	if existing.Refresh(n) {
		return s.putNode(ctx, existing)
	}

	return nil
}

// SampleNodes returns a uniform random sample of up to k known nodes,
// excluding the local address.
func (s *State) SampleNodes(ctx context.Context, k uint64) ([]model.Node, error) {
	s.mu.Lock()
	ids := s.state.KnownNodes.Sorted()
	s.mu.Unlock()

	var candidates []model.Node
	for _, id := range ids {
		n, err := s.getNode(ctx, id)
		if err != nil {
			continue
		}
		if bytes.Equal(n.Address.Bytes(), s.address) {
			continue
		}
		candidates = append(candidates, *n)
	}

	rand.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })

	if uint64(len(candidates)) > k {
		candidates = candidates[:k]
	}

	return candidates, nil
}

// RandomNode samples one node not present in exclude, failing NotFound if
// none is available.
func (s *State) RandomNode(ctx context.Context, exclude map[string]struct{}) (*model.Node, error) {
	nodes, err := s.SampleNodes(ctx, ^uint64(0))
	if err != nil {
		return nil, err
	}

	for _, n := range nodes {
		if _, skip := exclude[n.Address.String()]; !skip {
			return &n, nil
		}
	}

	return nil, errors.ErrNotFound
}

// NodeID computes the CRH-based identity of a node's address.
func NodeID(addr model.Address) model.Digest {
	return model.Digest(hashing.CRH(addr.Bytes()))
}

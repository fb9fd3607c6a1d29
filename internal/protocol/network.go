package protocol

import (
	"context"
	"time"

	"github.com/alsacoin/avalanche-node/internal/errors"
	"github.com/alsacoin/avalanche-node/internal/model"
	"github.com/alsacoin/avalanche-node/internal/storage"
	"github.com/alsacoin/avalanche-node/internal/wire"
)

func messageKey(stage model.Stage, id uint64) []byte {
	payload := make([]byte, 8)
	for i := 0; i < 8; i++ {
		payload[7-i] = byte(id >> (8 * i))
	}
	return storage.Key(stage.Byte(), storage.PrefixMessage, payload)
}

// persistMessage records msg keyed by its id when store_messages is
// configured, for auditability (spec.md §4.7).
func (s *State) persistMessage(ctx context.Context, msg *wire.Message) {
	if !s.config.ShouldStoreMessages() {
		return
	}

	b, err := marshalCBOR(msg)
	if err != nil {
		return
	}

	_ = s.store.Create(ctx, messageKey(s.stage, msg.ID), b)
}

// SendMessage stamps an id if absent, optionally persists, serialises, and
// round-trips msg to address, returning the peer's decoded reply.
func (s *State) SendMessage(ctx context.Context, address []byte, msg *wire.Message, timeout time.Duration) (*wire.Message, error) {
	if msg.ID == 0 {
		if _, err := wire.WithComputedID(msg); err != nil {
			return nil, err
		}
	}

	s.persistMessage(ctx, msg)

	b, err := wire.Encode(msg)
	if err != nil {
		return nil, err
	}

	respBytes, err := s.transport.SendRecv(address, b, timeout)
	if err != nil {
		return nil, err
	}

	if len(respBytes) == 0 {
		return nil, nil
	}

	resp, err := wire.Decode(respBytes)
	if err != nil {
		return nil, err
	}

	s.persistMessage(ctx, resp)

	return resp, nil
}

// RecvMessage blocks on the transport for one inbound message, decodes it,
// and optionally persists it; the decoded message is not validated here.
func (s *State) RecvMessage(ctx context.Context, timeout time.Duration) (*wire.Message, error) {
	raw, err := s.transport.Recv(timeout)
	if err != nil {
		return nil, err
	}

	msg, err := wire.Decode(raw.Data)
	if err != nil {
		return nil, err
	}

	s.persistMessage(ctx, msg)

	return msg, nil
}

// Query sends a Query for tx to peer and returns its chit reply, or an
// error if the round trip fails or the reply fails to correlate.
func (s *State) Query(ctx context.Context, peer *model.Node, tx *model.Transaction, timeout time.Duration) (bool, error) {
	req := &wire.Message{
		Verb:        wire.VerbQuery,
		Address:     s.address,
		Transaction: tx,
	}

	if _, err := wire.WithComputedID(req); err != nil {
		return false, err
	}

	resp, err := s.SendMessage(ctx, peer.Address.Bytes(), req, timeout)
	if err != nil {
		return false, err
	}

	if resp == nil || resp.Verb != wire.VerbReply {
		return false, errors.New(errors.ERR_INVALID_MESSAGE, "expected Reply, got %v", resp)
	}

	if resp.ID != wire.ReplyID(req.ID) {
		return false, errors.New(errors.ERR_INVALID_MESSAGE, "reply id %d does not correlate with request id %d", resp.ID, req.ID)
	}

	if resp.TxID != tx.ID {
		return false, errors.New(errors.ERR_INVALID_MESSAGE, "reply tx_id %s does not match queried %s", resp.TxID, tx.ID)
	}

	return resp.Chit, nil
}

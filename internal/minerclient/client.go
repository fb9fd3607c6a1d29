// Package minerclient drives, on behalf of a user, transaction creation,
// mining, and broadcast to a mining server (spec.md §2 "Reward schedule &
// miner client").
package minerclient

import (
	"context"
	"crypto/ed25519"
	"time"

	utils "github.com/ordishs/go-utils"

	"github.com/alsacoin/avalanche-node/internal/errors"
	"github.com/alsacoin/avalanche-node/internal/model"
	"github.com/alsacoin/avalanche-node/internal/transport"
	"github.com/alsacoin/avalanche-node/internal/wire"
)

// Client wraps a transport and a local identity; it does not hold
// protocol state directly — all consensus bookkeeping happens on the
// remote mining/client servers it talks to.
type Client struct {
	transport transport.Transport
	address   []byte
	key       ed25519.PrivateKey
	logger    utils.Logger
}

func New(tr transport.Transport, address []byte, key ed25519.PrivateKey, logger utils.Logger) *Client {
	return &Client{transport: tr, address: address, key: key, logger: logger}
}

// NewTransaction builds, signs, but does not mine a transaction spending
// from the client's own address to the given outputs.
func (c *Client) NewTransaction(stage model.Stage, ancestors model.DigestSet, outputs []model.Output, fee uint64) (*model.Transaction, error) {
	addr, err := model.AddressFromPublicKey(c.key.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, err
	}

	var inSum uint64
	for _, o := range outputs {
		inSum += o.Amount
	}
	inSum += fee

	tx := model.New(stage, ancestors)
	tx.AddInput(addr, inSum)
	for _, o := range outputs {
		tx.AddOutput(o.Address, o.Amount, o.CustomDigest)
	}
	tx.Fee = fee

	if err := tx.Sign(c.key); err != nil {
		return nil, err
	}

	return tx, nil
}

// Broadcast sends tx to a mining server as a Mine request and returns the
// mined form from its PushTransactions reply.
func (c *Client) Broadcast(ctx context.Context, minerAddress []byte, tx *model.Transaction, timeout time.Duration) (*model.Transaction, error) {
	req := &wire.Message{
		Verb:             wire.VerbMine,
		Address:          c.address,
		MineTransactions: []model.Transaction{*tx},
	}

	if _, err := wire.WithComputedID(req); err != nil {
		return nil, err
	}

	b, err := wire.Encode(req)
	if err != nil {
		return nil, err
	}

	respBytes, err := c.transport.SendRecv(minerAddress, b, timeout)
	if err != nil {
		return nil, err
	}

	resp, err := wire.Decode(respBytes)
	if err != nil {
		return nil, err
	}

	if resp.Verb != wire.VerbPushTransactions || len(resp.Transactions) == 0 {
		return nil, errors.New(errors.ERR_INVALID_MESSAGE, "mining server returned no mined transaction")
	}

	mined := resp.Transactions[0]

	return &mined, nil
}

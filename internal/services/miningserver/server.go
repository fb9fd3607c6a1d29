// Package miningserver implements serve_mining: handling only inbound
// Mine verbs (spec.md §4.11).
package miningserver

import (
	"context"
	"time"

	utils "github.com/ordishs/go-utils"

	"github.com/alsacoin/avalanche-node/internal/errors"
	"github.com/alsacoin/avalanche-node/internal/protocol"
	"github.com/alsacoin/avalanche-node/internal/services"
	"github.com/alsacoin/avalanche-node/internal/transport"
	"github.com/alsacoin/avalanche-node/internal/wire"
)

type Server struct {
	state     *protocol.State
	transport transport.Transport
	lifecycle *services.Lifecycle
	logger    utils.Logger
}

func New(state *protocol.State, tr transport.Transport, logger utils.Logger) *Server {
	return &Server{
		state:     state,
		transport: tr,
		lifecycle: services.NewLifecycle("mining_server", logger),
		logger:    logger,
	}
}

func (s *Server) Serve(ctx context.Context, timeout time.Duration) error {
	if err := s.lifecycle.Start(ctx); err != nil {
		return err
	}
	defer s.lifecycle.Stop(ctx)

	return s.transport.Serve(timeout, func(msg transport.Message) (*transport.Message, error) {
		req, err := wire.Decode(msg.Data)
		if err != nil {
			s.logger.Errorf("mining server: decode: %v", err)
			return nil, nil
		}

		if req.Verb != wire.VerbMine {
			s.logger.Warnf("mining server: ignoring non-Mine verb %v", req.Verb)
			return nil, errors.New(errors.ERR_NOT_ALLOWED, "mining server only accepts Mine")
		}

		resp, err := s.state.HandleMine(ctx, req)
		if err != nil {
			s.logger.Errorf("mining server: handle mine: %v", err)
			return nil, nil
		}

		b, err := wire.Encode(resp)
		if err != nil {
			s.logger.Errorf("mining server: encode reply: %v", err)
			return nil, nil
		}

		return &transport.Message{Address: s.transport.LocalAddress(), Data: b}, nil
	})
}

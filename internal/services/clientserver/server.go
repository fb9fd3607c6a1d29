// Package clientserver implements serve_client: accepting inbound
// messages and dispatching them by verb into the protocol state's
// handle_* family (spec.md §4.11).
package clientserver

import (
	"context"
	"time"

	utils "github.com/ordishs/go-utils"

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
		lifecycle: services.NewLifecycle("client_server", logger),
		logger:    logger,
	}
}

// Serve loops, accepting inbound connections and dispatching each decoded
// message through the protocol state, until the transport's listener is
// closed.
func (s *Server) Serve(ctx context.Context, timeout time.Duration) error {
	if err := s.lifecycle.Start(ctx); err != nil {
		return err
	}
	defer s.lifecycle.Stop(ctx)

	return s.transport.Serve(timeout, func(msg transport.Message) (*transport.Message, error) {
		req, err := wire.Decode(msg.Data)
		if err != nil {
			s.logger.Errorf("client server: decode: %v", err)
			return nil, nil
		}

		resp, err := s.state.Dispatch(ctx, req)
		if err != nil {
			s.logger.Errorf("client server: dispatch %v: %v", req.Verb, err)
			return nil, nil
		}

		if resp == nil {
			return nil, nil
		}

		b, err := wire.Encode(resp)
		if err != nil {
			s.logger.Errorf("client server: encode reply: %v", err)
			return nil, nil
		}

		return &transport.Message{Address: s.transport.LocalAddress(), Data: b}, nil
	})
}

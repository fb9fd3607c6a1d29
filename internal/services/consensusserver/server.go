// Package consensusserver implements serve_consensus: running the
// Avalanche loop continuously against the shared protocol state
// (spec.md §4.11).
package consensusserver

import (
	"context"

	utils "github.com/ordishs/go-utils"

	"github.com/alsacoin/avalanche-node/internal/protocol"
	"github.com/alsacoin/avalanche-node/internal/services"
)

type Server struct {
	state     *protocol.State
	lifecycle *services.Lifecycle
	logger    utils.Logger
}

func New(state *protocol.State, logger utils.Logger) *Server {
	return &Server{
		state:     state,
		lifecycle: services.NewLifecycle("consensus_server", logger),
		logger:    logger,
	}
}

// Serve runs the Avalanche loop until ctx is cancelled or a step fails
// with an unrecoverable error.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.lifecycle.Start(ctx); err != nil {
		return err
	}
	defer s.lifecycle.Stop(ctx)

	if err := s.state.Run(ctx); err != nil && ctx.Err() == nil {
		s.logger.Errorf("consensus server: avalanche loop stopped: %v", err)
		return err
	}

	return nil
}

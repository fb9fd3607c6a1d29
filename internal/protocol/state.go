// Package protocol owns the live consensus state machine: the protocol
// state aggregate, inbound-message handling, the Avalanche loop, and
// missing-ancestor recovery (spec.md §4.6-§4.10).
package protocol

import (
	"sync"

	"github.com/fxamacker/cbor/v2"
	utils "github.com/ordishs/go-utils"

	"github.com/alsacoin/avalanche-node/internal/errors"
	"github.com/alsacoin/avalanche-node/internal/model"
	"github.com/alsacoin/avalanche-node/internal/storage"
	"github.com/alsacoin/avalanche-node/internal/transport"
)

// State owns a stage, local address, consensus config, the live
// ConsensusState, and the pool/store pair. Every mutation of the
// consensus-state aggregate goes through mu; pool/store mutations rely on
// those stores' own internal locking (spec.md §5).
type State struct {
	mu sync.Mutex

	stage   model.Stage
	address []byte
	config  model.ConsensusConfig
	params  model.BalloonParams

	state *model.ConsensusState

	store storage.Store // accepted, persistent
	pool  storage.Store // hot, unconfirmed

	transport transport.Transport
	logger    utils.Logger
}

// New wires together an already-opened pool/store pair and transport into
// a protocol State. Callers must follow with Create (genesis) or Open
// (resume).
func New(stage model.Stage, address []byte, config model.ConsensusConfig, params model.BalloonParams, store, pool storage.Store, tr transport.Transport, logger utils.Logger) *State {
	return &State{
		stage:     stage,
		address:   address,
		config:    config,
		params:    params,
		store:     store,
		pool:      pool,
		transport: tr,
		logger:    logger,
	}
}

func (s *State) Stage() model.Stage          { return s.stage }
func (s *State) Address() []byte             { return s.address }
func (s *State) Config() model.ConsensusConfig { return s.config }

// withLock runs fn while holding the protocol state's single exclusive
// lock, matching spec.md §5's "single exclusive lock guarding the protocol
// state" policy.
func (s *State) withLock(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

func marshalCBOR(v interface{}) ([]byte, error) {
	b, err := cbor.Marshal(v)
	if err != nil {
		return nil, errors.New(errors.ERR_PARSE, "marshal: %v", err)
	}
	return b, nil
}

func unmarshalCBOR(b []byte, v interface{}) error {
	if err := cbor.Unmarshal(b, v); err != nil {
		return errors.New(errors.ERR_PARSE, "unmarshal: %v", err)
	}
	return nil
}

func txKey(stage model.Stage, id model.Digest) []byte {
	return storage.Key(stage.Byte(), storage.PrefixTransaction, id.Bytes())
}

func nodeKey(stage model.Stage, id model.Digest) []byte {
	return storage.Key(stage.Byte(), storage.PrefixNode, id.Bytes())
}

func accountKey(stage model.Stage, addr model.Address) []byte {
	return storage.Key(stage.Byte(), storage.PrefixAccount, addr.Bytes())
}

func conflictSetKey(stage model.Stage, addr model.Address) []byte {
	return storage.Key(stage.Byte(), storage.PrefixConflictSet, addr.Bytes())
}

func consensusStateKey(stage model.Stage, id uint64) []byte {
	payload := make([]byte, 8)
	for i := 0; i < 8; i++ {
		payload[7-i] = byte(id >> (8 * i))
	}
	return storage.Key(stage.Byte(), storage.PrefixConsensus, payload)
}

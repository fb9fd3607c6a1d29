// Package wire implements the canonical, deterministic CBOR codec for the
// nine-verb ConsensusMessage protocol (spec.md §4.7).
package wire

import (
	"github.com/fxamacker/cbor/v2"

	"github.com/alsacoin/avalanche-node/internal/errors"
	"github.com/alsacoin/avalanche-node/internal/hashing"
	"github.com/alsacoin/avalanche-node/internal/model"
)

// Verb enumerates the nine request/reply message kinds.
type Verb uint8

const (
	VerbFetchTransactions Verb = iota
	VerbFetchRandomTransactions
	VerbPushTransactions
	VerbFetchNodes
	VerbFetchRandomNodes
	VerbPushNodes
	VerbQuery
	VerbReply
	VerbMine
)

var verbName = map[Verb]string{
	VerbFetchTransactions:       "FetchTransactions",
	VerbFetchRandomTransactions: "FetchRandomTransactions",
	VerbPushTransactions:        "PushTransactions",
	VerbFetchNodes:              "FetchNodes",
	VerbFetchRandomNodes:        "FetchRandomNodes",
	VerbPushNodes:               "PushNodes",
	VerbQuery:                   "Query",
	VerbReply:                   "Reply",
	VerbMine:                    "Mine",
}

func (v Verb) String() string {
	if s, ok := verbName[v]; ok {
		return s
	}
	return "Unknown"
}

// Message is the closed sum type carrying every verb's payload fields;
// unused fields for a given Verb are left zero. Dispatch (internal/protocol)
// switches exhaustively on Verb so adding a verb forces every handler site
// to be revisited.
type Message struct {
	Verb    Verb        `cbor:"1,keyasint"`
	Address []byte      `cbor:"2,keyasint"`
	ID      uint64      `cbor:"3,keyasint"`
	Node    model.Node  `cbor:"4,keyasint"`

	// Fetch{Transactions,Nodes}
	IDs []model.Digest `cbor:"5,keyasint,omitempty"`

	// FetchRandom{Transactions,Nodes}
	Count uint32 `cbor:"6,keyasint,omitempty"`

	// Push{Transactions,Nodes}
	Transactions []model.Transaction `cbor:"7,keyasint,omitempty"`
	Nodes        []model.Node        `cbor:"8,keyasint,omitempty"`

	// Query
	Transaction *model.Transaction `cbor:"9,keyasint,omitempty"`

	// Reply
	TxID model.Digest `cbor:"10,keyasint,omitempty"`
	Chit bool         `cbor:"11,keyasint,omitempty"`

	// Mine
	MineTransactions []model.Transaction `cbor:"12,keyasint,omitempty"`
}

var encMode = func() cbor.EncMode {
	m, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return m
}()

// Encode serializes msg using the canonical, deterministic CBOR profile
// (CoreDetEncOptions): map keys sorted, no indefinite-length items, no
// duplicate keys — required for byte-exact round trips (spec.md P1) and
// for ComputeID to be reproducible across implementations.
func Encode(msg *Message) ([]byte, error) {
	b, err := encMode.Marshal(msg)
	if err != nil {
		return nil, errors.New(errors.ERR_PARSE, "encode message: %v", err)
	}
	return b, nil
}

// Decode deserializes b into a Message.
func Decode(b []byte) (*Message, error) {
	var msg Message
	if err := cbor.Unmarshal(b, &msg); err != nil {
		return nil, errors.New(errors.ERR_PARSE, "decode message: %v", err)
	}
	return &msg, nil
}

// ComputeID hashes the canonical encoding of msg with ID zeroed, matching
// "each message has an id computed as CRH over its canonical serialization
// minus the id field" (spec.md §4.7).
func ComputeID(msg *Message) (uint64, error) {
	clone := *msg
	clone.ID = 0

	b, err := encMode.Marshal(&clone)
	if err != nil {
		return 0, errors.New(errors.ERR_PARSE, "compute message id: %v", err)
	}

	digest := hashing.CRH(b)

	// Fold the 512-bit digest down to the u64 id space the wire format
	// uses for request/reply correlation (reply.id == request.id + 1).
	var id uint64
	for i := 0; i < 8; i++ {
		id = (id << 8) | uint64(digest[i])
	}

	return id, nil
}

// WithComputedID stamps msg.ID via ComputeID and returns msg for chaining.
func WithComputedID(msg *Message) (*Message, error) {
	id, err := ComputeID(msg)
	if err != nil {
		return nil, err
	}
	msg.ID = id
	return msg, nil
}

// ReplyID is the id a reply to a message with id reqID must carry for
// every verb (spec.md §9 Open Question 1: id+1 is fixed for all verbs,
// including Query/Reply, overriding the inconsistent narrative in §4.8).
func ReplyID(reqID uint64) uint64 {
	return reqID + 1
}

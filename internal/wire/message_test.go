package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alsacoin/avalanche-node/internal/model"
)

// TestMessageRoundTrip is P1 for ConsensusMessage: decode(encode(x)) = x.
func TestMessageRoundTrip(t *testing.T) {
	var id model.Digest
	id[0] = 0x07

	msg := &Message{
		Verb:    VerbFetchTransactions,
		Address: []byte{1, 2, 3, 4, 0, 80},
		ID:      42,
		IDs:     []model.Digest{id},
	}

	b, err := Encode(msg)
	require.NoError(t, err)

	out, err := Decode(b)
	require.NoError(t, err)

	assert.Equal(t, msg.Verb, out.Verb)
	assert.Equal(t, msg.Address, out.Address)
	assert.Equal(t, msg.ID, out.ID)
	assert.Equal(t, msg.IDs, out.IDs)
}

func TestEncodeIsDeterministic(t *testing.T) {
	msg := &Message{Verb: VerbQuery, ID: 7}

	b1, err := Encode(msg)
	require.NoError(t, err)

	b2, err := Encode(msg)
	require.NoError(t, err)

	assert.Equal(t, b1, b2)
}

// TestComputeIDExcludesIDField is P2 for ConsensusMessage: the id is
// computed over the canonical encoding with id zeroed, so two messages
// differing only in ID hash to the same value, while a different verb or
// payload changes it.
func TestComputeIDExcludesIDField(t *testing.T) {
	msg1 := &Message{Verb: VerbFetchNodes, ID: 1, Count: 5}
	msg2 := &Message{Verb: VerbFetchNodes, ID: 999, Count: 5}

	id1, err := ComputeID(msg1)
	require.NoError(t, err)

	id2, err := ComputeID(msg2)
	require.NoError(t, err)

	assert.Equal(t, id1, id2)

	msg3 := &Message{Verb: VerbFetchNodes, ID: 1, Count: 6}
	id3, err := ComputeID(msg3)
	require.NoError(t, err)

	assert.NotEqual(t, id1, id3)
}

func TestWithComputedIDStampsMessage(t *testing.T) {
	msg := &Message{Verb: VerbFetchRandomNodes, Count: 3}

	out, err := WithComputedID(msg)
	require.NoError(t, err)
	assert.Same(t, msg, out)
	assert.NotZero(t, out.ID)
}

// TestReplyIDIsRequestIDPlusOne is P8: every handled verb's reply satisfies
// reply.id == req.id+1, including Query/Reply (spec.md Open Question 1).
func TestReplyIDIsRequestIDPlusOne(t *testing.T) {
	assert.Equal(t, uint64(11), ReplyID(10))
	assert.Equal(t, uint64(1), ReplyID(0))
}

func TestVerbString(t *testing.T) {
	assert.Equal(t, "Query", VerbQuery.String())
	assert.Equal(t, "Unknown", Verb(200).String())
}

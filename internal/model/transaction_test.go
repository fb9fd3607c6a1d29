package model

import (
	"crypto/ed25519"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alsacoin/avalanche-node/internal/hashing"
)

func smallBalloonParams() BalloonParams {
	return BalloonParams{SCost: 4, TCost: 1, Delta: 3}
}

func TestNewEveIsMinedAndValid(t *testing.T) {
	params := smallBalloonParams()

	tx, err := NewEve(StageDevelopment, ZeroAddress, params)
	require.NoError(t, err)

	assert.True(t, tx.IsMined())
	assert.NoError(t, tx.Validate())
	assert.NoError(t, tx.ValidateMined(0, params))
	assert.Empty(t, tx.Ancestors)
	assert.Equal(t, hashing.CoinbaseBase, tx.Outputs[0].Amount)
}

// TestTransactionRoundTrip is P1: decode(encode(x)) = x.
func TestTransactionRoundTrip(t *testing.T) {
	params := smallBalloonParams()

	tx, err := NewEve(StageDevelopment, ZeroAddress, params)
	require.NoError(t, err)

	b, err := cbor.Marshal(tx)
	require.NoError(t, err)

	var out Transaction
	require.NoError(t, cbor.Unmarshal(b, &out))

	assert.Equal(t, tx.ID, out.ID)
	assert.Equal(t, tx.Digest, out.Digest)
	assert.Equal(t, tx.Nonce, out.Nonce)
	assert.Equal(t, tx.Outputs, out.Outputs)
	assert.Equal(t, tx.Coinbase.Amount, out.Coinbase.Amount)
}

// TestTransactionIDStability is P2: id(x) = hash(canon(x with id := default))
// and mutating any other field changes the id.
func TestTransactionIDStability(t *testing.T) {
	_, pub1 := newKeypair(t)
	addr1, err := AddressFromPublicKey(pub1)
	require.NoError(t, err)

	tx := New(StageDevelopment, NewDigestSet())
	tx.AddOutput(addr1, 100, nil)

	id1, err := tx.computeID()
	require.NoError(t, err)

	id1Again, err := tx.computeID()
	require.NoError(t, err)
	assert.Equal(t, id1, id1Again)

	tx2 := *tx
	tx2.Outputs = append([]Output{}, tx.Outputs...)
	tx2.Outputs[0].Amount = 200

	id2, err := tx2.computeID()
	require.NoError(t, err)

	assert.NotEqual(t, id1, id2)
}

func newKeypair(t *testing.T) (ed25519.PrivateKey, ed25519.PublicKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return priv, pub
}

func TestTransactionSignAndValidate(t *testing.T) {
	priv, pub := newKeypair(t)
	addr, err := AddressFromPublicKey(pub)
	require.NoError(t, err)

	_, toPub := newKeypair(t)
	toAddr, err := AddressFromPublicKey(toPub)
	require.NoError(t, err)

	params := smallBalloonParams()

	eve, err := NewEve(StageDevelopment, ZeroAddress, params)
	require.NoError(t, err)

	tx := New(StageDevelopment, NewDigestSet(eve.ID))
	tx.AddInput(addr, 100)
	tx.AddOutput(toAddr, 100, nil)

	require.NoError(t, tx.Sign(priv))
	require.NoError(t, tx.Mine(1, params))

	assert.NoError(t, tx.Validate())
	assert.NoError(t, tx.ValidateMined(1, params))
}

func TestTransactionValidateRejectsUnsignedInput(t *testing.T) {
	_, pub := newKeypair(t)
	addr, err := AddressFromPublicKey(pub)
	require.NoError(t, err)

	tx := New(StageDevelopment, NewDigestSet())
	tx.AddInput(addr, 100)
	tx.AddOutput(addr, 100, nil)

	id, err := tx.computeID()
	require.NoError(t, err)
	tx.ID = id

	assert.Error(t, tx.Validate())
}

func TestTransactionValidateRejectsBalanceMismatch(t *testing.T) {
	priv, pub := newKeypair(t)
	addr, err := AddressFromPublicKey(pub)
	require.NoError(t, err)

	tx := New(StageDevelopment, NewDigestSet())
	tx.AddInput(addr, 100)
	tx.AddOutput(addr, 50, nil) // outputs don't cover input amount

	require.NoError(t, tx.Sign(priv))

	id, err := tx.computeID()
	require.NoError(t, err)
	tx.ID = id

	assert.Error(t, tx.Validate())
}

func TestTransactionDistance(t *testing.T) {
	distances := map[Digest]uint64{}

	var a, b Digest
	a[0], b[0] = 1, 2
	distances[a] = 0
	distances[b] = 3

	tx := New(StageDevelopment, NewDigestSet(a, b))

	d, err := tx.Distance(func(id Digest) (uint64, error) {
		return distances[id], nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(4), d)
}

func TestTransactionDistanceEveIsZero(t *testing.T) {
	tx := New(StageDevelopment, NewDigestSet())
	d, err := tx.Distance(func(Digest) (uint64, error) { return 0, nil })
	require.NoError(t, err)
	assert.Equal(t, uint64(0), d)
}

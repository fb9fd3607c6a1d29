package mining

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alsacoin/avalanche-node/internal/hashing"
)

func smallParams() hashing.BalloonParams {
	return hashing.BalloonParams{SCost: 4, TCost: 1, Delta: 3}
}

// TestMineVerifySoundness is P4: mine(params, d, msg) = (n, h) implies
// verify(params, d, msg, n, h) holds and leading_zeros(h) >= d.
func TestMineVerifySoundness(t *testing.T) {
	params := smallParams()
	msg := []byte("hybridtx-mining-message")

	nonce, digest, err := Mine(params, 2, msg)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, hashing.LeadingZeros(digest), uint64(2))

	ok, err := Verify(params, 2, msg, nonce, digest)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyRejectsTamperedDigest(t *testing.T) {
	params := smallParams()
	msg := []byte("tamper-me")

	nonce, digest, err := Mine(params, 1, msg)
	require.NoError(t, err)

	digest[0] ^= 0xFF

	ok, err := Verify(params, 1, msg, nonce, digest)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyRejectsWrongNonce(t *testing.T) {
	params := smallParams()
	msg := []byte("wrong-nonce")

	nonce, digest, err := Mine(params, 1, msg)
	require.NoError(t, err)

	ok, err := Verify(params, 1, msg, nonce+1, digest)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMineRejectsDifficultyOutOfBounds(t *testing.T) {
	_, _, err := Mine(smallParams(), hashing.MaxDifficultyBits+1, []byte("x"))
	assert.Error(t, err)
}

func TestNoncedMessagePrependsLittleEndianNonce(t *testing.T) {
	out := NoncedMessage(1, []byte("m"))
	assert.Equal(t, []byte{1, 0, 0, 0, 0, 0, 0, 0, 'm'}, out)
}

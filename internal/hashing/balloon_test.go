package hashing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParams() BalloonParams {
	return BalloonParams{SCost: 8, TCost: 2, Delta: 3}
}

func TestBalloonValidate(t *testing.T) {
	assert.NoError(t, testParams().Validate())
	assert.Error(t, BalloonParams{SCost: 0, TCost: 1, Delta: 3}.Validate())
	assert.Error(t, BalloonParams{SCost: 1, TCost: 0, Delta: 3}.Validate())
	assert.Error(t, BalloonParams{SCost: 1, TCost: 1, Delta: 2}.Validate())
}

// TestBalloonDeterministic is P3: fixed (params, salt, msg) is a pure
// function.
func TestBalloonDeterministic(t *testing.T) {
	var salt [DigestSize]byte
	salt[0] = 0x42

	params := testParams()

	d1, err := Balloon(salt, params, []byte("alsacoin"))
	require.NoError(t, err)

	d2, err := Balloon(salt, params, []byte("alsacoin"))
	require.NoError(t, err)

	assert.Equal(t, d1, d2)
}

func TestBalloonDistinctMessagesDiverge(t *testing.T) {
	var salt [DigestSize]byte

	params := testParams()

	d1, err := Balloon(salt, params, []byte("msg-one"))
	require.NoError(t, err)

	d2, err := Balloon(salt, params, []byte("msg-two"))
	require.NoError(t, err)

	assert.NotEqual(t, d1, d2)
}

func TestBalloonRejectsInvalidParams(t *testing.T) {
	var salt [DigestSize]byte
	_, err := Balloon(salt, BalloonParams{}, []byte("x"))
	assert.Error(t, err)
}

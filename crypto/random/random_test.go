package random

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFillRandomDeterministic_Vector(t *testing.T) {
	seed := []byte("testseed000000000000000000000001")
	out := make([]byte, 32)

	require.NoError(t, FillRandomDeterministic(seed, out))

	want, err := hex.DecodeString("b1923a011cd1adbe89552db9862470c29512a8f51d184dfd778bfe7f845390d1")
	require.NoError(t, err)
	assert.Equal(t, want, out)
}

func TestFillRandomDeterministic_PureFunction(t *testing.T) {
	seed := []byte("testseed000000000000000000000001")
	a := make([]byte, 48)
	b := make([]byte, 48)

	require.NoError(t, FillRandomDeterministic(seed, a))
	require.NoError(t, FillRandomDeterministic(seed, b))

	assert.Equal(t, a, b)
}

func TestFillRandomDeterministic_RejectsBadSeedLen(t *testing.T) {
	out := make([]byte, 16)
	err := FillRandomDeterministic([]byte("tooshort"), out)
	assert.ErrorIs(t, err, ErrInvalidSeedLen)
}

func TestFillRandom_FillsBuffer(t *testing.T) {
	out := make([]byte, 32)
	require.NoError(t, FillRandom(out))

	zero := make([]byte, 32)
	assert.NotEqual(t, zero, out, "extremely unlikely to be all-zero from a CSPRNG")
}

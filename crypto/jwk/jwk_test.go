package jwk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/sage-vault/crypto/aead"
)

func TestFromKey_RoundTrip(t *testing.T) {
	key, err := aead.GenerateKey(aead.A256GCM)
	require.NoError(t, err)

	data, err := Marshal(key)
	require.NoError(t, err)

	back, err := Unmarshal(data)
	require.NoError(t, err)

	assert.True(t, key.Equal(back))
	assert.Equal(t, aead.A256GCM, back.Algorithm())
}

func TestFromKey_Shape(t *testing.T) {
	key, err := aead.ImportKey(aead.A128GCM, make([]byte, 16))
	require.NoError(t, err)

	j := FromKey(key)
	assert.Equal(t, "oct", j.Kty)
	assert.Equal(t, "A128GCM", j.Alg)
	assert.NotEmpty(t, j.K)
}

func TestExport_PrivateReturnsOctView(t *testing.T) {
	key, err := aead.GenerateKey(aead.A128GCM)
	require.NoError(t, err)

	j, err := Export(key, false)
	require.NoError(t, err)
	assert.Equal(t, "oct", j.Kty)
	assert.Equal(t, "A128GCM", j.Alg)
}

func TestExport_PublicRejected(t *testing.T) {
	key, err := aead.GenerateKey(aead.A128GCM)
	require.NoError(t, err)

	j, err := Export(key, true)
	assert.Nil(t, j)
	require.Error(t, err)
	ae, ok := err.(*aead.Error)
	require.True(t, ok)
	assert.Equal(t, aead.KindUnsupported, ae.Kind)
	assert.Same(t, ErrPublicExportUnsupported, err)
}

func TestToKey_RejectsWrongKty(t *testing.T) {
	_, err := ToKey(&OctJWK{Kty: "RSA", Alg: "A128GCM", K: "AAAA"})
	require.Error(t, err)
	ae, ok := err.(*aead.Error)
	require.True(t, ok)
	assert.Equal(t, aead.KindUnsupported, ae.Kind)
}

func TestToKey_RejectsUnknownAlg(t *testing.T) {
	_, err := ToKey(&OctJWK{Kty: "oct", Alg: "HS256", K: "AAAA"})
	require.Error(t, err)
	ae, ok := err.(*aead.Error)
	require.True(t, ok)
	assert.Equal(t, aead.KindUnsupported, ae.Kind)
}

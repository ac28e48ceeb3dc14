package aead

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sagebuffer "github.com/sage-x-project/sage-vault/crypto/buffer"
)

func hexDecode(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func TestCBCHMAC128_RFC7518VectorB1(t *testing.T) {
	keyData := hexDecode(t, "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")
	nonce := hexDecode(t, "1af38c2dc2b96ffdd86694092341bc04")
	aad := []byte("The second principle of Auguste Kerckhoffs")
	plaintext := []byte("A cipher system must not be required to be secret, and it must be able to fall into the hands of the enemy without inconvenience")

	key, err := ImportKey(A128CBCHS256, keyData)
	require.NoError(t, err)

	buf := sagebuffer.New(append([]byte(nil), plaintext...))
	n, err := Encrypt(A128CBCHS256, key, buf, nonce, aad)
	require.NoError(t, err)
	assert.Equal(t, len(plaintext)+16, n) // pad to next 16-byte block

	want := hexDecode(t, "c80edfa32ddf39d5ef00c0b468834279a2e46a1b8049f792f76bfe54b903a9c9"+
		"a94ac9b47ad2655c5f10f9aef71427e2fc6f9b3f399a221489f16362c7032336"+
		"09d45ac69864e3321cf82935ac4096c86e133314c54019e8ca7980dfa4b9cf1b"+
		"384c486f3a54c51078158ee5d79de59fbd34d848b3d69550a67646344427ade5"+
		"4b8851ffb598f7f80074b9473c82e2db"+
		"652c3fa36b0a7c5b3219fab3a30bc1c4")
	assert.Equal(t, want, buf.Bytes())

	require.NoError(t, Decrypt(A128CBCHS256, key, buf, nonce, aad))
	assert.Equal(t, plaintext, buf.Bytes())
}

func TestCBCHMAC256_RFC7518VectorB2(t *testing.T) {
	keyData := hexDecode(t, "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"+
		"202122232425262728292a2b2c2d2e2f303132333435363738393a3b3c3d3e3f")
	nonce := hexDecode(t, "1af38c2dc2b96ffdd86694092341bc04")
	aad := []byte("The second principle of Auguste Kerckhoffs")
	plaintext := []byte("A cipher system must not be required to be secret, and it must be able to fall into the hands of the enemy without inconvenience")

	key, err := ImportKey(A256CBCHS512, keyData)
	require.NoError(t, err)

	buf := sagebuffer.New(append([]byte(nil), plaintext...))
	_, err = Encrypt(A256CBCHS512, key, buf, nonce, aad)
	require.NoError(t, err)

	want := hexDecode(t, "4affaaadb78c31c5da4b1b590d10ffbd3dd8d5d302423526912da037ecbcc7bd"+
		"822c301dd67c373bccb584ad3e9279c2e6d12a1374b77f077553df829410446b"+
		"36ebd97066296ae6427ea75c2e0846a11a09ccf5370dc80bfecbad28c73f09b3"+
		"a3b75e662a2594410ae496b2e2e6609e31e6e02cc837f053d21f37ff4f51950b"+
		"be2638d09dd7a4930930806d0703b1f6"+
		"4dd3b4c088a7f45c216839645b2012bf2e6269a8c56a816dbc1b267761955bc5")
	assert.Equal(t, want, buf.Bytes())

	require.NoError(t, Decrypt(A256CBCHS512, key, buf, nonce, aad))
	assert.Equal(t, plaintext, buf.Bytes())
}

func TestKeyWrap128_RFC3394Vector(t *testing.T) {
	keyData := hexDecode(t, "000102030405060708090a0b0c0d0e0f")
	input := hexDecode(t, "00112233445566778899aabbccddeeff")

	key, err := ImportKey(A128KW, keyData)
	require.NoError(t, err)

	buf := sagebuffer.New(append([]byte(nil), input...))
	_, err = Encrypt(A128KW, key, buf, nil, nil)
	require.NoError(t, err)

	want := hexDecode(t, "1fa68b0a8112b447aef34bd8fb5a7b829d3e862371d2cfe5")
	assert.Equal(t, want, buf.Bytes())

	require.NoError(t, Decrypt(A128KW, key, buf, nil, nil))
	assert.Equal(t, input, buf.Bytes())
}

func TestKeyWrap256_RFC3394Vector(t *testing.T) {
	keyData := hexDecode(t, "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")
	input := hexDecode(t, "00112233445566778899aabbccddeeff")

	key, err := ImportKey(A256KW, keyData)
	require.NoError(t, err)

	buf := sagebuffer.New(append([]byte(nil), input...))
	_, err = Encrypt(A256KW, key, buf, nil, nil)
	require.NoError(t, err)

	want := hexDecode(t, "64e8c3f9ce0f5ba263e9777905818a2a93c8191e7d6e8ae7")
	assert.Equal(t, want, buf.Bytes())

	require.NoError(t, Decrypt(A256KW, key, buf, nil, nil))
	assert.Equal(t, input, buf.Bytes())
}

func TestKeyWrap_RejectsNonceOrAAD(t *testing.T) {
	key, err := GenerateKey(A128KW)
	require.NoError(t, err)
	buf := sagebuffer.New([]byte("01234567"))

	_, err = Encrypt(A128KW, key, buf, []byte{1}, nil)
	assertKind(t, err, KindUnsupported)

	_, err = Encrypt(A128KW, key, buf, nil, []byte{1})
	assertKind(t, err, KindUnsupported)
}

func TestKeyWrap_RejectsBadLength(t *testing.T) {
	key, err := GenerateKey(A128KW)
	require.NoError(t, err)
	buf := sagebuffer.New([]byte("1234567")) // 7 bytes, not a multiple of 8

	_, err = Encrypt(A128KW, key, buf, nil, nil)
	assertKind(t, err, KindUnsupported)
}

func TestGCMRoundTrip(t *testing.T) {
	for _, alg := range []Algorithm{A128GCM, A256GCM} {
		alg := alg
		t.Run(alg.String(), func(t *testing.T) {
			key, err := GenerateKey(alg)
			require.NoError(t, err)

			nonce := make([]byte, alg.Params().NonceLen)
			require.NoError(t, err)
			aad := []byte("associated data")
			plaintext := []byte("the quick brown fox jumps over the lazy dog")

			buf := sagebuffer.New(append([]byte(nil), plaintext...))
			n, err := Encrypt(alg, key, buf, nonce, aad)
			require.NoError(t, err)
			assert.Equal(t, len(plaintext), n)
			assert.Equal(t, len(plaintext)+alg.Params().TagLen, buf.Len())

			require.NoError(t, Decrypt(alg, key, buf, nonce, aad))
			assert.Equal(t, plaintext, buf.Bytes())
		})
	}
}

func TestRoundTrip_BitFlipFails(t *testing.T) {
	for _, alg := range []Algorithm{A128GCM, A256GCM, A128CBCHS256, A256CBCHS512} {
		alg := alg
		t.Run(alg.String(), func(t *testing.T) {
			key, err := GenerateKey(alg)
			require.NoError(t, err)
			nonce := make([]byte, alg.Params().NonceLen)
			plaintext := []byte("flip a bit in the ciphertext or tag region")

			buf := sagebuffer.New(append([]byte(nil), plaintext...))
			_, err = Encrypt(alg, key, buf, nonce, nil)
			require.NoError(t, err)

			tampered := buf.Bytes()
			tampered[len(tampered)-1] ^= 0x01

			err = Decrypt(alg, key, sagebuffer.New(tampered), nonce, nil)
			assertKind(t, err, KindEncryption)
		})
	}
}

func TestEncryptDecrypt_WrongNonceLength(t *testing.T) {
	for _, alg := range []Algorithm{A128GCM, A256GCM, A128CBCHS256, A256CBCHS512} {
		alg := alg
		t.Run(alg.String(), func(t *testing.T) {
			key, err := GenerateKey(alg)
			require.NoError(t, err)
			buf := sagebuffer.New([]byte("hello"))

			_, err = Encrypt(alg, key, buf, []byte{1, 2, 3}, nil)
			assertKind(t, err, KindInvalidNonce)

			err = Decrypt(alg, key, buf, []byte{1, 2, 3}, nil)
			assertKind(t, err, KindInvalidNonce)
		})
	}
}

func TestImportKey_WrongLength(t *testing.T) {
	_, err := ImportKey(A128GCM, make([]byte, 8))
	assertKind(t, err, KindInvalidKeyData)
}

func assertKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	require.Error(t, err)
	ae, ok := err.(*Error)
	require.True(t, ok, "expected *aead.Error, got %T", err)
	assert.Equal(t, kind, ae.Kind)
}

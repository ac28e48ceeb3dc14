package postgres

import (
	"github.com/sage-x-project/sage-vault/crypto/aead"
	"github.com/sage-x-project/sage-vault/crypto/buffer"
	"github.com/sage-x-project/sage-vault/crypto/random"
)

const (
	defaultKDFIterations = 100_000
	keyWrapNonceLen      = 12
)

// deriveProtectionKey mirrors storage/memory's key-wrap construction: a
// "raw" (or empty) key method keeps keys unprotected at rest, and
// "kdf:pbkdf2" derives an AES-256-GCM key from passKey and salt to wrap
// every stored key's raw bytes before they reach the database.
func deriveProtectionKey(keyMethod string, passKey, salt []byte) (*aead.Key, error) {
	if keyMethod != "kdf:pbkdf2" {
		return nil, nil
	}
	return aead.KeyFromPassphrase(aead.A256GCM, passKey, salt, defaultKDFIterations)
}

func wrapKey(protectionKey *aead.Key, key *aead.Key) ([]byte, aead.Algorithm, error) {
	nonce := make([]byte, keyWrapNonceLen)
	if err := random.FillRandom(nonce); err != nil {
		return nil, 0, &aead.Error{Kind: aead.KindUnexpected, Message: "generate key-wrap nonce: " + err.Error()}
	}
	buf := buffer.New(append([]byte(nil), key.Bytes()...))
	if _, err := aead.Encrypt(aead.A256GCM, protectionKey, buf, nonce, nil); err != nil {
		return nil, 0, err
	}
	out := make([]byte, 0, len(nonce)+buf.Len())
	out = append(out, nonce...)
	out = append(out, buf.Bytes()...)
	return out, key.Algorithm(), nil
}

func unwrapKey(protectionKey *aead.Key, keyAlg aead.Algorithm, wrapped []byte) (*aead.Key, error) {
	if len(wrapped) < keyWrapNonceLen {
		return nil, &aead.Error{Kind: aead.KindEncryption, Message: "wrapped key material too short"}
	}
	nonce := wrapped[:keyWrapNonceLen]
	buf := buffer.New(append([]byte(nil), wrapped[keyWrapNonceLen:]...))
	if err := aead.Decrypt(aead.A256GCM, protectionKey, buf, nonce, nil); err != nil {
		return nil, err
	}
	return aead.ImportKey(keyAlg, buf.Bytes())
}

package aead

import (
	"crypto/aes"
	"crypto/cipher"

	sagebuffer "github.com/sage-x-project/sage-vault/crypto/buffer"
)

func newGCM(key *Key) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key.Bytes())
	if err != nil {
		return nil, newErr(KindUsage, "aes cipher: %v", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, newErr(KindUsage, "gcm: %v", err)
	}
	return gcm, nil
}

// gcmEncrypt seals buf's current contents in place, appending the 16-byte
// tag produced by Go's stdlib GCM implementation.
func gcmEncrypt(key *Key, buf sagebuffer.Buffer, nonce, aad []byte) (int, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return 0, err
	}
	plaintext := buf.Bytes()
	msgLen := len(plaintext)

	sealed := gcm.Seal(nil, nonce, plaintext, aad)
	buf.Resize(len(sealed))
	copy(buf.BytesMut(), sealed)
	return msgLen, nil
}

// gcmDecrypt opens buf in place: ciphertext||tag in, plaintext out. Any
// authentication failure surfaces as KindEncryption without exposing
// intermediate plaintext.
func gcmDecrypt(key *Key, buf sagebuffer.Buffer, nonce, aad []byte) error {
	gcm, err := newGCM(key)
	if err != nil {
		return err
	}
	sealed := buf.Bytes()

	opened, err := gcm.Open(nil, nonce, sealed, aad)
	if err != nil {
		return newErr(KindEncryption, "gcm authentication failed")
	}
	buf.Resize(len(opened))
	copy(buf.BytesMut(), opened)
	return nil
}

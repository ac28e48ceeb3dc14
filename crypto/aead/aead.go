// Package aead implements the AES-GCM, AES-CBC-HMAC (RFC 7518 §5.2), and AES
// Key Wrap (RFC 3394) constructions used to encrypt key and entry material
// at rest. Every algorithm presents the same in-place shape: Encrypt grows
// the caller's buffer to hold ciphertext plus tag and returns the ciphertext
// length excluding the tag; Decrypt shrinks the buffer back down to the
// original plaintext length or fails leaving no partial plaintext exposed.
package aead

import (
	"time"

	"github.com/sage-x-project/sage-vault/crypto/buffer"
	"github.com/sage-x-project/sage-vault/internal/metrics"
)

// Encrypt runs alg's encryption in place over buf using key and nonce,
// binding aad into the authentication tag. Returns the ciphertext length,
// excluding the appended tag.
func Encrypt(alg Algorithm, key *Key, buf buffer.Buffer, nonce, aad []byte) (int, error) {
	n, err := encrypt(alg, key, buf, nonce, aad)
	recordAEAD("encrypt", alg, err)
	return n, err
}

func encrypt(alg Algorithm, key *Key, buf buffer.Buffer, nonce, aad []byte) (int, error) {
	start := time.Now()
	defer func() { observeAEADDuration("encrypt", alg, start) }()

	if key.Algorithm() != alg {
		return 0, newErr(KindUsage, "key algorithm %s does not match %s", key.Algorithm(), alg)
	}
	p := alg.Params()
	if !p.KeyWrap {
		if len(nonce) != p.NonceLen {
			return 0, newErr(KindInvalidNonce, "%s requires a %d-byte nonce, got %d", alg, p.NonceLen, len(nonce))
		}
	}

	switch alg {
	case A128GCM, A256GCM:
		return gcmEncrypt(key, buf, nonce, aad)
	case A128CBCHS256, A256CBCHS512:
		return cbcHMACEncrypt(alg, key, buf, nonce, aad)
	case A128KW, A256KW:
		return keyWrapEncrypt(key, buf, nonce, aad)
	default:
		return 0, newErr(KindUnsupported, "unknown algorithm")
	}
}

// Decrypt runs alg's decryption in place over buf, verifying the trailing
// tag in constant time before the buffer is considered valid plaintext.
func Decrypt(alg Algorithm, key *Key, buf buffer.Buffer, nonce, aad []byte) error {
	err := decrypt(alg, key, buf, nonce, aad)
	recordAEAD("decrypt", alg, err)
	return err
}

func decrypt(alg Algorithm, key *Key, buf buffer.Buffer, nonce, aad []byte) error {
	start := time.Now()
	defer func() { observeAEADDuration("decrypt", alg, start) }()

	if key.Algorithm() != alg {
		return newErr(KindUsage, "key algorithm %s does not match %s", key.Algorithm(), alg)
	}
	p := alg.Params()
	if !p.KeyWrap {
		if len(nonce) != p.NonceLen {
			return newErr(KindInvalidNonce, "%s requires a %d-byte nonce, got %d", alg, p.NonceLen, len(nonce))
		}
	}
	if buf.Len() < p.TagLen {
		return newErr(KindEncryption, "buffer shorter than tag length")
	}

	switch alg {
	case A128GCM, A256GCM:
		return gcmDecrypt(key, buf, nonce, aad)
	case A128CBCHS256, A256CBCHS512:
		return cbcHMACDecrypt(alg, key, buf, nonce, aad)
	case A128KW, A256KW:
		return keyWrapDecrypt(key, buf, nonce, aad)
	default:
		return newErr(KindUnsupported, "unknown algorithm")
	}
}

func observeAEADDuration(operation string, alg Algorithm, start time.Time) {
	metrics.AEADOperationDuration.WithLabelValues(operation, alg.String()).Observe(time.Since(start).Seconds())
}

func recordAEAD(operation string, alg Algorithm, err error) {
	metrics.AEADOperations.WithLabelValues(operation, alg.String()).Inc()
	if err == nil {
		return
	}
	kind := KindUnexpected
	if e, ok := err.(*Error); ok {
		kind = e.Kind
	}
	metrics.AEADErrors.WithLabelValues(operation, alg.String(), kind.String()).Inc()
}

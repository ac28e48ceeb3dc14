package aead

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/binary"
	"hash"

	sagebuffer "github.com/sage-x-project/sage-vault/crypto/buffer"
)

const cbcBlockSize = 16

// maxAADLen is the overflow guard from RFC 7518 §5.2.2.1: the AAD length
// in bits must fit the 8-byte big-endian field, i.e. aad length must not
// exceed 2^61 bytes.
const maxAADLen = 1 << 61

func cbcHMACKeys(alg Algorithm, key *Key) (macKey, encKey []byte, hashFn func() hash.Hash) {
	raw := key.Bytes()
	half := len(raw) / 2
	macKey, encKey = raw[:half], raw[half:]
	if alg == A128CBCHS256 {
		return macKey, encKey, sha256.New
	}
	return macKey, encKey, sha512.New
}

func cbcHMACTag(macKey []byte, hashFn func() hash.Hash, aad, nonce, ciphertext []byte, tagLen int) []byte {
	var aadBits [8]byte
	binary.BigEndian.PutUint64(aadBits[:], uint64(len(aad))*8)

	mac := hmac.New(hashFn, macKey)
	mac.Write(aad)
	mac.Write(nonce)
	mac.Write(ciphertext)
	mac.Write(aadBits[:])
	full := mac.Sum(nil)
	return full[:tagLen]
}

// cbcHMACEncrypt implements RFC 7518 §5.2.2.1's authenticated encryption:
// CBC-encrypt with PKCS#7 padding, then HMAC over aad || nonce ||
// ciphertext || big-endian AAD bit length, truncated to the algorithm's tag
// length and appended to the buffer.
func cbcHMACEncrypt(alg Algorithm, key *Key, buf sagebuffer.Buffer, nonce, aad []byte) (int, error) {
	if len(aad) > maxAADLen {
		return 0, newErr(KindEncryption, "aad too long")
	}
	macKey, encKey, hashFn := cbcHMACKeys(alg, key)
	tagLen := alg.Params().TagLen

	msgLen := buf.Len()
	pad := alg.Pad(msgLen)

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return 0, newErr(KindUsage, "aes cipher: %v", err)
	}

	padded := buf.Extend(pad)
	for i := range padded {
		padded[i] = byte(pad)
	}

	mode := cipher.NewCBCEncrypter(block, nonce)
	ciphertext := buf.BytesMut()[:msgLen+pad]
	mode.CryptBlocks(ciphertext, ciphertext)

	tag := cbcHMACTag(macKey, hashFn, aad, nonce, ciphertext, tagLen)
	buf.Write(tag)

	return msgLen + pad, nil
}

// cbcHMACDecrypt matches the source's defensive ordering: CBC-decrypt runs
// into a scratch slice before the tag-comparison result is inspected. The
// comparison itself is constant-time; the buffer is only overwritten with
// the plaintext and resized once the tag has matched, so a failed decrypt
// leaves the ciphertext and tag in the buffer and exposes no plaintext.
func cbcHMACDecrypt(alg Algorithm, key *Key, buf sagebuffer.Buffer, nonce, aad []byte) error {
	if len(aad) > maxAADLen {
		return newErr(KindEncryption, "aad too long")
	}
	macKey, encKey, hashFn := cbcHMACKeys(alg, key)
	tagLen := alg.Params().TagLen

	total := buf.Len()
	if total < tagLen || (total-tagLen)%cbcBlockSize != 0 || total-tagLen == 0 {
		return newErr(KindEncryption, "ciphertext length invalid")
	}
	ciphertext := buf.Bytes()[:total-tagLen]
	gotTag := buf.Bytes()[total-tagLen:]

	wantTag := cbcHMACTag(macKey, hashFn, aad, nonce, ciphertext, tagLen)
	tagOK := subtle.ConstantTimeCompare(gotTag, wantTag) == 1

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return newErr(KindUsage, "aes cipher: %v", err)
	}
	mode := cipher.NewCBCDecrypter(block, nonce)
	plain := make([]byte, len(ciphertext))
	mode.CryptBlocks(plain, ciphertext)

	pad := int(plain[len(plain)-1])
	if pad < 1 || pad > cbcBlockSize || pad > len(plain) {
		// Still fold through to the tag check below rather than returning
		// early, so a malformed pad on forged ciphertext does not provide
		// a timing oracle distinct from a bad tag.
		pad = cbcBlockSize
	}
	plainLen := len(plain) - pad

	if !tagOK {
		return newErr(KindEncryption, "cbc-hmac authentication failed")
	}

	copy(buf.BytesMut(), plain[:plainLen])
	buf.Resize(plainLen)
	return nil
}

package aead

import (
	"crypto/aes"
	"crypto/subtle"
	"encoding/binary"

	sagebuffer "github.com/sage-x-project/sage-vault/crypto/buffer"
)

// keyWrapDefaultIV is the RFC 3394 integrity check value: eight bytes of
// 0xA6.
var keyWrapDefaultIV = [8]byte{0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6}

// keyWrapEncrypt implements the RFC 3394 wrapping algorithm in place: the
// buffer is grown by one 64-bit block at the front to hold the running
// integrity register, then n*6 AES block operations update it and the n
// data blocks in the nested counter scheme.
func keyWrapEncrypt(key *Key, buf sagebuffer.Buffer, nonce, aad []byte) (int, error) {
	if len(nonce) != 0 || len(aad) != 0 {
		return 0, newErr(KindUnsupported, "key wrap does not accept a nonce or aad")
	}
	msgLen := buf.Len()
	if msgLen <= 0 || msgLen%8 != 0 {
		return 0, newErr(KindUnsupported, "key wrap input must be a positive multiple of 8 bytes")
	}
	block, err := aes.NewCipher(key.Bytes())
	if err != nil {
		return 0, newErr(KindUsage, "aes cipher: %v", err)
	}

	n := msgLen / 8
	buf.Insert(0, make([]byte, 8))
	data := buf.BytesMut()

	a := keyWrapDefaultIV
	var blockBuf [16]byte
	var tBytes [8]byte
	for j := 0; j < 6; j++ {
		for i := 0; i < n; i++ {
			r := data[(i+1)*8 : (i+2)*8]
			copy(blockBuf[:8], a[:])
			copy(blockBuf[8:], r)
			block.Encrypt(blockBuf[:], blockBuf[:])

			binary.BigEndian.PutUint64(tBytes[:], uint64(n*j+(i+1)))
			for k := 0; k < 8; k++ {
				a[k] = blockBuf[k] ^ tBytes[k]
			}
			copy(r, blockBuf[8:])
		}
	}
	copy(data[:8], a[:])
	return msgLen, nil
}

// keyWrapDecrypt reverses keyWrapEncrypt. After all rounds, the running
// register is compared to the fixed IV in constant time; any mismatch means
// the wrapped input was tampered with or encrypted under a different key.
func keyWrapDecrypt(key *Key, buf sagebuffer.Buffer, nonce, aad []byte) error {
	if len(nonce) != 0 || len(aad) != 0 {
		return newErr(KindUnsupported, "key wrap does not accept a nonce or aad")
	}
	total := buf.Len()
	if total%8 != 0 {
		return newErr(KindEncryption, "wrapped input is not a multiple of 8 bytes")
	}
	blocks := total/8 - 1
	if blocks < 0 {
		return newErr(KindEncryption, "wrapped input too short")
	}
	block, err := aes.NewCipher(key.Bytes())
	if err != nil {
		return newErr(KindUsage, "aes cipher: %v", err)
	}

	var a [8]byte
	copy(a[:], buf.Bytes()[:8])
	buf.Remove(0, 8)
	data := buf.BytesMut()

	var blockBuf [16]byte
	var tBytes [8]byte
	for j := 5; j >= 0; j-- {
		for i := blocks - 1; i >= 0; i-- {
			binary.BigEndian.PutUint64(tBytes[:], uint64(blocks*j+(i+1)))

			var axort [8]byte
			for k := 0; k < 8; k++ {
				axort[k] = a[k] ^ tBytes[k]
			}
			r := data[i*8 : (i+1)*8]
			copy(blockBuf[:8], axort[:])
			copy(blockBuf[8:], r)
			block.Decrypt(blockBuf[:], blockBuf[:])

			copy(a[:], blockBuf[:8])
			copy(r, blockBuf[8:])
		}
	}

	if subtle.ConstantTimeCompare(a[:], keyWrapDefaultIV[:]) != 1 {
		return newErr(KindEncryption, "key wrap integrity check failed")
	}
	return nil
}

// Package jwk renders symmetric AEAD keys as the "oct" JSON Web Key view
// used when a store exposes key material to a caller that expects JOSE
// encoding. It intentionally implements nothing beyond that single view:
// asymmetric keys, PEM, and the rest of the JOSE key zoo are out of scope.
package jwk

import (
	"encoding/base64"
	"encoding/json"

	"github.com/sage-x-project/sage-vault/crypto/aead"
)

// OctJWK is the "oct" (octet sequence) JWK shape for a symmetric key.
type OctJWK struct {
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	K   string `json:"k"`
}

// FromKey renders key as an oct JWK. The key bytes are base64url-encoded
// without padding, per RFC 7518 §6.4.
func FromKey(key *aead.Key) *OctJWK {
	return &OctJWK{
		Kty: "oct",
		Alg: key.Algorithm().String(),
		K:   base64.RawURLEncoding.EncodeToString(key.Bytes()),
	}
}

// Export renders key as an oct JWK for a caller that distinguishes a
// private (secret-bearing) export from a public one. Symmetric keys have
// no public component to export, so public=true always fails with
// ErrPublicExportUnsupported rather than silently returning the secret
// bytes under a misleading name — this is the spec.md §6 "public export of
// symmetric keys is rejected with Unsupported" behavior, reachable from
// handle.Manager.SessionExportKey and the CLI's `key export --public`.
func Export(key *aead.Key, public bool) (*OctJWK, error) {
	if public {
		return nil, ErrPublicExportUnsupported
	}
	return FromKey(key), nil
}

// Marshal renders key directly to JSON bytes.
func Marshal(key *aead.Key) ([]byte, error) {
	return json.Marshal(FromKey(key))
}

// ToKey parses an oct JWK back into an aead.Key. The "alg" field must name
// one of the six supported algorithms.
func ToKey(j *OctJWK) (*aead.Key, error) {
	if j.Kty != "oct" {
		return nil, &aead.Error{Kind: aead.KindUnsupported, Message: "jwk: kty must be \"oct\""}
	}
	alg, ok := aead.ParseAlgorithm(j.Alg)
	if !ok {
		return nil, &aead.Error{Kind: aead.KindUnsupported, Message: "jwk: unknown alg " + j.Alg}
	}
	raw, err := base64.RawURLEncoding.DecodeString(j.K)
	if err != nil {
		return nil, &aead.Error{Kind: aead.KindInvalidKeyData, Message: "jwk: k is not valid base64url"}
	}
	return aead.ImportKey(alg, raw)
}

// Unmarshal parses JSON bytes into an aead.Key via ToKey.
func Unmarshal(data []byte) (*aead.Key, error) {
	var j OctJWK
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, &aead.Error{Kind: aead.KindInvalidKeyData, Message: "jwk: malformed json"}
	}
	return ToKey(&j)
}

// ErrPublicExportUnsupported is returned by any caller-facing code path that
// attempts to export a public view of a symmetric key; there is no such
// view, so the only kind recorded is Unsupported.
var ErrPublicExportUnsupported = &aead.Error{Kind: aead.KindUnsupported, Message: "symmetric keys have no public export"}

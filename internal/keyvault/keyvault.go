// Package keyvault generates asymmetric key material for identities and
// converts it between raw bytes and the portable base58 form used for
// persistence and transport.
package keyvault

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/curve25519"

	"github.com/trustmesh/ssi-bridge/internal/model"
)

// ErrInvalidKeyMaterial indicates stored key material could not be decoded
// back into a usable key pair.
var ErrInvalidKeyMaterial = errors.New("invalid key material")

// Generate produces fresh key material for the given signature scheme.
// Ed25519 pairs can sign; X25519 pairs are agreement-only.
func Generate(scheme string) (model.KeyPair, error) {
	switch scheme {
	case model.SchemeEd25519:
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return model.KeyPair{}, fmt.Errorf("generate ed25519 key: %w", err)
		}
		return model.KeyPair{
			Scheme:     model.SchemeEd25519,
			PublicKey:  append([]byte(nil), pub...),
			PrivateKey: append([]byte(nil), priv...),
		}, nil
	case model.SchemeX25519:
		priv := make([]byte, curve25519.ScalarSize)
		if _, err := rand.Read(priv); err != nil {
			return model.KeyPair{}, fmt.Errorf("generate x25519 key: %w", err)
		}
		pub, err := curve25519.X25519(priv, curve25519.Basepoint)
		if err != nil {
			return model.KeyPair{}, fmt.Errorf("derive x25519 public key: %w", err)
		}
		return model.KeyPair{
			Scheme:     model.SchemeX25519,
			PublicKey:  pub,
			PrivateKey: priv,
		}, nil
	default:
		return model.KeyPair{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidKeyMaterial, scheme)
	}
}

// Encode converts a key pair into its portable base58 form. The round trip
// through Decode reproduces the exact raw key bytes.
func Encode(key model.KeyPair) model.EncodedKeyPair {
	return model.EncodedKeyPair{
		Public:   base58.Encode(key.PublicKey),
		Secret:   base58.Encode(key.PrivateKey),
		Type:     key.Scheme,
		Encoding: model.EncodingBase58,
	}
}

// Decode converts stored key material back into raw bytes, validating the
// scheme tag and key lengths. Returns ErrInvalidKeyMaterial on any failure.
func Decode(encoded model.EncodedKeyPair) (model.KeyPair, error) {
	if encoded.Encoding != "" && encoded.Encoding != model.EncodingBase58 {
		return model.KeyPair{}, fmt.Errorf("%w: unsupported encoding %q", ErrInvalidKeyMaterial, encoded.Encoding)
	}
	pub, err := base58.Decode(encoded.Public)
	if err != nil {
		return model.KeyPair{}, fmt.Errorf("%w: public key: %v", ErrInvalidKeyMaterial, err)
	}
	priv, err := base58.Decode(encoded.Secret)
	if err != nil {
		return model.KeyPair{}, fmt.Errorf("%w: private key: %v", ErrInvalidKeyMaterial, err)
	}

	switch encoded.Type {
	case model.SchemeEd25519:
		if len(pub) != ed25519.PublicKeySize {
			return model.KeyPair{}, fmt.Errorf("%w: ed25519 public key must be %d bytes, got %d", ErrInvalidKeyMaterial, ed25519.PublicKeySize, len(pub))
		}
		// Accept the 32-byte seed form as well as the full 64-byte key.
		switch len(priv) {
		case ed25519.PrivateKeySize:
		case ed25519.SeedSize:
			priv = ed25519.NewKeyFromSeed(priv)
		default:
			return model.KeyPair{}, fmt.Errorf("%w: ed25519 private key must be %d or %d bytes, got %d", ErrInvalidKeyMaterial, ed25519.SeedSize, ed25519.PrivateKeySize, len(priv))
		}
	case model.SchemeX25519:
		if len(pub) != curve25519.PointSize || len(priv) != curve25519.ScalarSize {
			return model.KeyPair{}, fmt.Errorf("%w: x25519 keys must be %d bytes", ErrInvalidKeyMaterial, curve25519.ScalarSize)
		}
	default:
		return model.KeyPair{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidKeyMaterial, encoded.Type)
	}

	return model.KeyPair{Scheme: encoded.Type, PublicKey: pub, PrivateKey: priv}, nil
}

// Sign produces a signature over digest with the pair's private key. Only
// signing schemes are accepted.
func Sign(key model.KeyPair, digest []byte) ([]byte, error) {
	if key.Scheme != model.SchemeEd25519 {
		return nil, fmt.Errorf("%w: scheme %q cannot sign", ErrInvalidKeyMaterial, key.Scheme)
	}
	if len(key.PrivateKey) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: ed25519 private key must be %d bytes", ErrInvalidKeyMaterial, ed25519.PrivateKeySize)
	}
	return ed25519.Sign(ed25519.PrivateKey(key.PrivateKey), digest), nil
}

// Verify reports whether sig is a valid signature over digest for the given
// raw public key bytes under the given scheme.
func Verify(scheme string, publicKey, digest, sig []byte) bool {
	if scheme != model.SchemeEd25519 || len(publicKey) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(publicKey), digest, sig)
}

// Digest computes the canonical sha256 digest of v: the value is marshaled
// to JSON and hashed. Signatures over documents and credentials are produced
// and checked against this digest with the proof field cleared.
func Digest(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("digest: %w", err)
	}
	sum := sha256.Sum256(raw)
	return sum[:], nil
}

// MultibaseEncode renders raw key bytes as "z" + base58, the form embedded in
// document signing methods.
func MultibaseEncode(raw []byte) string {
	return "z" + base58.Encode(raw)
}

// MultibaseDecode reverses MultibaseEncode. Only the base58btc ("z") prefix
// is supported.
func MultibaseDecode(value string) ([]byte, error) {
	if len(value) < 2 || value[0] != 'z' {
		return nil, fmt.Errorf("%w: unsupported multibase prefix", ErrInvalidKeyMaterial)
	}
	raw, err := base58.Decode(value[1:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyMaterial, err)
	}
	return raw, nil
}

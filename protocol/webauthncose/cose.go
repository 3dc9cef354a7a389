// Package webauthncose implements the COSE_Key public-key model used by
// WebAuthn: decoding COSE_Key CBOR into a typed key, structural validation
// ("checking") of that key, and algorithm-dispatched signature
// verification.
//
// Only a PublicKey that has passed Check may be used by Verify; an
// UncheckedPublicKey fresh out of Decode is not trusted for anything.
package webauthncose

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"fmt"
	"math/big"

	_ "crypto/sha256" // register crypto.SHA256
	_ "crypto/sha512" // register crypto.SHA384 / crypto.SHA512

	"github.com/gravitational/trace"

	"github.com/trustwing/webauthn/protocol/webauthncbor"
)

// Algorithm is a COSEAlgorithmIdentifier: a signature scheme paired with
// the hash function used to digest the signed message.
//
// https://www.iana.org/assignments/cose/cose.xhtml#algorithms
type Algorithm int64

// Recognized algorithms.
const (
	AlgES256 Algorithm = -7
	AlgES384 Algorithm = -35
	AlgES512 Algorithm = -36
	AlgEdDSA Algorithm = -8
	AlgRS256 Algorithm = -257
	AlgRS384 Algorithm = -258
	AlgRS512 Algorithm = -259
	AlgPS256 Algorithm = -37
	AlgPS384 Algorithm = -38
	AlgPS512 Algorithm = -39
)

func (a Algorithm) String() string {
	switch a {
	case AlgES256:
		return "ES256"
	case AlgES384:
		return "ES384"
	case AlgES512:
		return "ES512"
	case AlgEdDSA:
		return "EdDSA"
	case AlgRS256:
		return "RS256"
	case AlgRS384:
		return "RS384"
	case AlgRS512:
		return "RS512"
	case AlgPS256:
		return "PS256"
	case AlgPS384:
		return "PS384"
	case AlgPS512:
		return "PS512"
	default:
		return fmt.Sprintf("Algorithm(%d)", int64(a))
	}
}

// cryptoHash returns the standard-library crypto.Hash paired with the
// algorithm, usable both to produce a hash.Hash and to pass to the RSA
// verification functions.
func (a Algorithm) cryptoHash() crypto.Hash {
	switch a {
	case AlgES256, AlgRS256, AlgPS256:
		return crypto.SHA256
	case AlgES384, AlgRS384, AlgPS384:
		return crypto.SHA384
	case AlgES512, AlgRS512, AlgPS512:
		return crypto.SHA512
	default:
		return 0
	}
}

// CryptoHash exposes cryptoHash to other packages in the module that need
// to hash attestation statement data with the same algorithm used to sign
// it, such as the tpm attestation format.
func (a Algorithm) CryptoHash() crypto.Hash {
	return a.cryptoHash()
}

// KeyType mirrors the COSE "kty" label (1).
type KeyType int64

const (
	KeyTypeOKP KeyType = 1
	KeyTypeEC2 KeyType = 2
	KeyTypeRSA KeyType = 3
)

// Curve mirrors the COSE "crv" label (-1).
type Curve int64

const (
	CurveP256   Curve = 1
	CurveP384   Curve = 2
	CurveP521   Curve = 3
	CurveEd25519 Curve = 6
)

// coseKeyLabels holds a COSE_Key CBOR map decoded by integer label. Labels
// -1/-2/-3 are polymorphic across key types (crv/x/y for OKP and EC2,
// n/e for RSA), so the map is decoded generically and reinterpreted by
// Decode once kty is known, rather than via a single struct tagged with
// colliding keys.
type coseKeyLabels map[int64]webauthncbor.RawMessage

func (m coseKeyLabels) int64At(label int64) (int64, bool) {
	raw, ok := m[label]
	if !ok {
		return 0, false
	}
	var v int64
	if err := webauthncbor.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	return v, true
}

func (m coseKeyLabels) bytesAt(label int64) ([]byte, bool) {
	raw, ok := m[label]
	if !ok {
		return nil, false
	}
	var v []byte
	if err := webauthncbor.Unmarshal(raw, &v); err != nil {
		return nil, false
	}
	return v, true
}

// UncheckedPublicKey is a COSE_Key decoded into its typed variant, prior
// to structural validation. Exactly one of the embedded field sets is
// meaningful, selected by Type.
type UncheckedPublicKey struct {
	Type      KeyType
	Algorithm Algorithm

	// OKP / ECDSA / RSA fields. Populated according to Type.
	Curve Curve
	X, Y  *big.Int // ECDSA
	EdX   []byte   // EdDSA raw public key bytes
	N, E  *big.Int // RSA
}

// Decode parses a COSE_Key CBOR map into an UncheckedPublicKey. It does
// not validate the key's structural soundness; call Check for that.
func Decode(data []byte) (*UncheckedPublicKey, error) {
	var labels coseKeyLabels
	if err := webauthncbor.Unmarshal(data, &labels); err != nil {
		return nil, trace.BadParameter("decoding COSE key: %v", err)
	}

	kty, ok := labels.int64At(1)
	if !ok {
		return nil, trace.BadParameter("COSE key missing kty (label 1)")
	}
	alg, ok := labels.int64At(3)
	if !ok {
		return nil, trace.BadParameter("COSE key missing alg (label 3)")
	}

	key := &UncheckedPublicKey{
		Type:      KeyType(kty),
		Algorithm: Algorithm(alg),
	}
	switch key.Type {
	case KeyTypeOKP:
		crv, _ := labels.int64At(-1)
		if Curve(crv) != CurveEd25519 {
			return nil, trace.BadParameter("unsupported OKP curve %d", crv)
		}
		x, ok := labels.bytesAt(-2)
		if !ok {
			return nil, trace.BadParameter("COSE OKP key missing x (label -2)")
		}
		key.Curve = CurveEd25519
		key.EdX = x

	case KeyTypeEC2:
		crv, _ := labels.int64At(-1)
		switch Curve(crv) {
		case CurveP256, CurveP384, CurveP521:
			key.Curve = Curve(crv)
		default:
			return nil, trace.BadParameter("unsupported EC2 curve %d", crv)
		}
		x, xok := labels.bytesAt(-2)
		y, yok := labels.bytesAt(-3)
		if !xok || !yok {
			return nil, trace.BadParameter("COSE EC2 key missing x or y")
		}
		key.X = new(big.Int).SetBytes(x)
		key.Y = new(big.Int).SetBytes(y)

	case KeyTypeRSA:
		n, nok := labels.bytesAt(-1)
		e, eok := labels.bytesAt(-2)
		if !nok || !eok {
			return nil, trace.BadParameter("COSE RSA key missing n or e")
		}
		key.N = new(big.Int).SetBytes(n)
		key.E = new(big.Int).SetBytes(e)

	default:
		return nil, trace.BadParameter("unsupported COSE key type %d", kty)
	}
	return key, nil
}

// InvalidKeyShapeError reports why a key failed Check.
type InvalidKeyShapeError struct {
	Reason string
}

func (e *InvalidKeyShapeError) Error() string {
	return fmt.Sprintf("invalid key shape: %s", e.Reason)
}

// PublicKey is an UncheckedPublicKey that has passed Check and may be used
// to Verify signatures.
type PublicKey struct {
	unchecked UncheckedPublicKey
	std       any // *ecdsa.PublicKey, ed25519.PublicKey, or *rsa.PublicKey
}

// Algorithm returns the COSE algorithm associated with the key.
func (k *PublicKey) Algorithm() Algorithm { return k.unchecked.Algorithm }

// Std returns the standard-library representation of the key
// (*ecdsa.PublicKey, ed25519.PublicKey, or *rsa.PublicKey).
func (k *PublicKey) Std() any { return k.std }

const ed25519PublicKeySize = 32

// Check validates the structural soundness of an UncheckedPublicKey and
// returns a PublicKey that may be used for verification.
//
// EdDSA: |x| must equal the curve's public key size (32 for Ed25519).
// ECDSA: (x,y) must be a valid point on the named curve.
// RSA: modulus must be >= 2048 bits, exponent odd and > 1.
func Check(k *UncheckedPublicKey) (*PublicKey, error) {
	switch k.Type {
	case KeyTypeOKP:
		if len(k.EdX) != ed25519PublicKeySize {
			return nil, &InvalidKeyShapeError{Reason: fmt.Sprintf("EdDSA key must be %d bytes, got %d", ed25519PublicKeySize, len(k.EdX))}
		}
		return &PublicKey{unchecked: *k, std: ed25519.PublicKey(k.EdX)}, nil

	case KeyTypeEC2:
		curve := ellipticCurve(k.Curve)
		if curve == nil {
			return nil, &InvalidKeyShapeError{Reason: "unknown ECDSA curve"}
		}
		if k.X == nil || k.Y == nil || !curve.IsOnCurve(k.X, k.Y) {
			return nil, &InvalidKeyShapeError{Reason: "point is not on curve"}
		}
		pub := &ecdsa.PublicKey{Curve: curve, X: k.X, Y: k.Y}
		return &PublicKey{unchecked: *k, std: pub}, nil

	case KeyTypeRSA:
		if k.N == nil || k.N.BitLen() < 2048 {
			return nil, &InvalidKeyShapeError{Reason: "RSA modulus must be at least 2048 bits"}
		}
		if k.E == nil || k.E.Sign() <= 0 || k.E.Bit(0) == 0 || k.E.Cmp(big.NewInt(1)) <= 0 {
			return nil, &InvalidKeyShapeError{Reason: "RSA exponent must be odd and greater than 1"}
		}
		pub := &rsa.PublicKey{N: k.N, E: int(k.E.Int64())}
		return &PublicKey{unchecked: *k, std: pub}, nil

	default:
		return nil, &InvalidKeyShapeError{Reason: "unknown key type"}
	}
}

func ellipticCurve(c Curve) elliptic.Curve {
	switch c {
	case CurveP256:
		return elliptic.P256()
	case CurveP384:
		return elliptic.P384()
	case CurveP521:
		return elliptic.P521()
	default:
		return nil
	}
}

// SignatureInvalidError carries the inputs of a failed verification for
// callers that want to surface the taxonomy's SignatureInvalid variant.
// Verify itself never returns an error for a bad signature, only false.
type SignatureInvalidError struct {
	Key       *PublicKey
	Message   []byte
	Signature []byte
}

func (e *SignatureInvalidError) Error() string {
	return "signature verification failed"
}

// Verify checks signature over message using key, dispatching on the
// key's algorithm. It returns false on a bad signature rather than
// raising — callers that need a structured error use SignatureInvalidError.
//
// EdDSA is verified directly over message (Ed25519 internally hashes with
// SHA-512 as part of the signing equation; callers must not pre-hash).
// ECDSA signatures are expected DER-encoded SEQUENCE(r, s), as produced by
// fido-u2f and packed attestation statements. RSA signatures are raw
// PKCS1-v1.5 except for the PS* algorithms, which are RSA-PSS with a salt
// length equal to the hash size.
func Verify(key *PublicKey, message, signature []byte) bool {
	switch key.Algorithm() {
	case AlgEdDSA:
		pub, ok := key.std.(ed25519.PublicKey)
		if !ok {
			return false
		}
		return ed25519.Verify(pub, message, signature)

	case AlgES256, AlgES384, AlgES512:
		pub, ok := key.std.(*ecdsa.PublicKey)
		if !ok {
			return false
		}
		return VerifyASN1ECDSASignature(pub, key.Algorithm(), message, signature)

	case AlgRS256, AlgRS384, AlgRS512:
		pub, ok := key.std.(*rsa.PublicKey)
		if !ok {
			return false
		}
		ch := key.Algorithm().cryptoHash()
		h := ch.New()
		h.Write(message)
		return rsa.VerifyPKCS1v15(pub, ch, h.Sum(nil), signature) == nil

	case AlgPS256, AlgPS384, AlgPS512:
		pub, ok := key.std.(*rsa.PublicKey)
		if !ok {
			return false
		}
		ch := key.Algorithm().cryptoHash()
		h := ch.New()
		h.Write(message)
		opts := &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: ch}
		return rsa.VerifyPSS(pub, ch, h.Sum(nil), signature, opts) == nil

	default:
		return false
	}
}

// VerifyASN1ECDSASignature is a convenience used by Verify and by the
// fido-u2f format, which builds the ECDSA public key out-of-band (from the
// x5c leaf certificate) rather than from a COSE_Key.
func VerifyASN1ECDSASignature(pub *ecdsa.PublicKey, alg Algorithm, message, signature []byte) bool {
	ch := alg.cryptoHash()
	if ch == 0 {
		return false
	}
	h := ch.New()
	h.Write(message)
	return ecdsa.VerifyASN1(pub, h.Sum(nil), signature)
}

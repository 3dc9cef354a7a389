package attestation

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"encoding/asn1"

	"github.com/trustwing/webauthn/protocol/webauthncbor"
	"github.com/trustwing/webauthn/protocol/webauthncose"
)

// androidKeyAttestationExtensionOID is the Android Keystore key
// attestation extension, embedding a KeyDescription ASN.1 sequence whose
// attestationChallenge field must equal the WebAuthn clientDataHash.
var androidKeyAttestationExtensionOID = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 11129, 2, 1, 17}

type androidKeyStatement struct {
	Alg int64                     `cbor:"alg"`
	Sig []byte                    `cbor:"sig"`
	X5C []webauthncbor.RawMessage `cbor:"x5c"`
}

// keyDescription is a partial parse of the Android Keystore
// KeyDescription ASN.1 structure; only attestationChallenge (index 4) is
// needed here.
type keyDescription struct {
	AttestationVersion       int
	AttestationSecurityLevel asn1.Enumerated
	KeymasterVersion         int
	KeymasterSecurityLevel   asn1.Enumerated
	AttestationChallenge     []byte
	UniqueID                 []byte
	SoftwareEnforced         asn1.RawValue
	TeeEnforced              asn1.RawValue
}

// verifyAndroidKey implements the "android-key" attestation statement
// format: the leaf certificate of x5c carries a key-attestation extension
// binding the clientDataHash as its challenge, and its public key must be
// the same as the credential's.
func verifyAndroidKey(in *Input) (*Chain, error) {
	var stmt androidKeyStatement
	if err := webauthncbor.Unmarshal(in.AttStmtRaw, &stmt); err != nil {
		return nil, newStatementError(FormatAndroidKey, "decoding attStmt: %v", err)
	}
	if stmt.Sig == nil || len(stmt.X5C) == 0 {
		return nil, newStatementError(FormatAndroidKey, "missing sig or x5c")
	}
	chain, err := decodeX5C(stmt.X5C)
	if err != nil {
		return nil, newStatementError(FormatAndroidKey, "decoding x5c: %v", err)
	}
	leaf := chain[0]

	alg := webauthncose.Algorithm(stmt.Alg)
	if alg != in.CredentialKey.Algorithm() {
		return nil, newStatementError(FormatAndroidKey, "attStmt alg does not match credential key algorithm")
	}

	signedBytes := in.SignedBytes()
	if err := leaf.CheckSignature(leaf.SignatureAlgorithm, signedBytes, stmt.Sig); err != nil {
		return nil, newStatementError(FormatAndroidKey, "signature verification failed: %v", err)
	}

	if !publicKeysEqual(leaf.PublicKey, in.CredentialKey.Std()) {
		return nil, newStatementError(FormatAndroidKey, "certificate public key does not match credential public key")
	}

	ext := findExtension(leaf, androidKeyAttestationExtensionOID)
	if ext == nil {
		return nil, newStatementError(FormatAndroidKey, "certificate missing key attestation extension")
	}
	var kd keyDescription
	if _, err := asn1.Unmarshal(ext.Value, &kd); err != nil {
		return nil, newStatementError(FormatAndroidKey, "invalid key attestation extension: %v", err)
	}
	if !bytes.Equal(kd.AttestationChallenge, in.ClientDataHash) {
		return nil, newStatementError(FormatAndroidKey, "attestationChallenge does not match clientDataHash")
	}

	return &Chain{Trust: TrustBasicX5C, Certs: chain}, nil
}

func publicKeysEqual(a, b any) bool {
	switch ak := a.(type) {
	case *ecdsa.PublicKey:
		bk, ok := b.(*ecdsa.PublicKey)
		return ok && ak.Equal(bk)
	case *rsa.PublicKey:
		bk, ok := b.(*rsa.PublicKey)
		return ok && ak.Equal(bk)
	case ed25519.PublicKey:
		bk, ok := b.(ed25519.PublicKey)
		return ok && ak.Equal(bk)
	default:
		return false
	}
}

package attestation

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha1" //nolint:gosec // SHA-1 is the FIDO-U2F authenticator identifier algorithm, not used for signing.
	"crypto/x509"
	"encoding/asn1"

	"github.com/trustwing/webauthn/protocol/webauthncbor"
	"github.com/trustwing/webauthn/protocol/webauthncose"
)

type fidoU2FStatement struct {
	Sig []byte                    `cbor:"sig"`
	X5C []webauthncbor.RawMessage `cbor:"x5c"`
}

// verifyFIDOU2F implements the legacy "fido-u2f" attestation statement
// format: a single x5c certificate signs, with ANSI X9.62 ECDSA over
// P-256, the concatenation
//
//	0x00 || rpIdHash || clientDataHash || credentialId || credPubKey(x||y)
//
// where credPubKey is the uncompressed EC point (0x04 || x || y), not the
// COSE-encoded key. FIDO-U2F only ever produced P-256 keys.
func verifyFIDOU2F(in *Input) (*Chain, error) {
	var stmt fidoU2FStatement
	if err := webauthncbor.Unmarshal(in.AttStmtRaw, &stmt); err != nil {
		return nil, newStatementError(FormatFIDOU2F, "decoding attStmt: %v", err)
	}
	if stmt.Sig == nil {
		return nil, newStatementError(FormatFIDOU2F, "missing sig")
	}
	if len(stmt.X5C) != 1 {
		return nil, newStatementError(FormatFIDOU2F, "x5c must contain exactly one certificate")
	}
	chain, err := decodeX5C(stmt.X5C)
	if err != nil {
		return nil, newStatementError(FormatFIDOU2F, "decoding x5c: %v", err)
	}
	leaf := chain[0]

	leafECDSA, ok := leaf.PublicKey.(*ecdsa.PublicKey)
	if !ok || leafECDSA.Curve != elliptic.P256() {
		return nil, newStatementError(FormatFIDOU2F, "attestation certificate key must be P-256 ECDSA")
	}

	acd := in.AuthData.AttestedCredentialData
	if acd == nil {
		return nil, newStatementError(FormatFIDOU2F, "authenticator data missing attested credential data")
	}
	credKeyECDSA, ok := in.CredentialKey.Std().(*ecdsa.PublicKey)
	if !ok || credKeyECDSA.Curve != elliptic.P256() {
		return nil, newStatementError(FormatFIDOU2F, "credential public key must be P-256 ECDSA")
	}
	uncompressed := uncompressedPoint(credKeyECDSA)

	signedBytes := make([]byte, 0, 1+32+32+len(acd.CredentialID)+len(uncompressed))
	signedBytes = append(signedBytes, 0x00)
	signedBytes = append(signedBytes, in.AuthData.RPIDHash[:]...)
	signedBytes = append(signedBytes, in.ClientDataHash...)
	signedBytes = append(signedBytes, acd.CredentialID...)
	signedBytes = append(signedBytes, uncompressed...)

	if err := leaf.CheckSignature(x509.ECDSAWithSHA256, signedBytes, stmt.Sig); err != nil {
		if !webauthncose.VerifyASN1ECDSASignature(leafECDSA, webauthncose.AlgES256, signedBytes, stmt.Sig) {
			return nil, newStatementError(FormatFIDOU2F, "signature verification failed: %v", err)
		}
	}

	return &Chain{Trust: TrustBasicX5C, Certs: chain}, nil
}

func uncompressedPoint(pub *ecdsa.PublicKey) []byte {
	size := (pub.Curve.Params().BitSize + 7) / 8
	out := make([]byte, 1+2*size)
	out[0] = 0x04
	pub.X.FillBytes(out[1 : 1+size])
	pub.Y.FillBytes(out[1+size : 1+2*size])
	return out
}

// U2FIdentifier returns the SHA-1 SubjectKeyIdentifier used to look up a
// FIDO-U2F authenticator in the MDS registry: the SHA-1 digest of the
// BIT STRING contents of the leaf attestation certificate's
// SubjectPublicKeyInfo (RFC 5280 §4.2.1.2 method (1)), not the full DER
// SPKI (which also covers the algorithm identifier).
func U2FIdentifier(leaf *x509.Certificate) ([20]byte, error) {
	var spki struct {
		Algorithm asn1.RawValue
		PublicKey asn1.BitString
	}
	if _, err := asn1.Unmarshal(leaf.RawSubjectPublicKeyInfo, &spki); err != nil {
		return [20]byte{}, err
	}
	return sha1.Sum(spki.PublicKey.RightAlign()), nil //nolint:gosec // identifier, not a security boundary.
}

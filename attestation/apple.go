package attestation

import (
	"crypto/sha256"
	"encoding/asn1"

	"github.com/trustwing/webauthn/protocol/webauthncbor"
)

// appleNonceExtensionOID is Apple's anonymous attestation nonce extension,
// a SEQUENCE containing one [1]-tagged OCTET STRING holding
// SHA256(authData || clientDataHash).
var appleNonceExtensionOID = asn1.ObjectIdentifier{1, 2, 840, 113635, 100, 8, 2}

type appleStatement struct {
	X5C []webauthncbor.RawMessage `cbor:"x5c"`
}

type appleNonceExtensionValue struct {
	Nonce []byte `asn1:"tag:1"`
}

// verifyApple implements the "apple" attestation statement format
// (App Attest/anonymous attestation): the credential certificate carries
// a nonce extension binding SHA256(authData || clientDataHash), and its
// public key must equal the credential's.
func verifyApple(in *Input) (*Chain, error) {
	var stmt appleStatement
	if err := webauthncbor.Unmarshal(in.AttStmtRaw, &stmt); err != nil {
		return nil, newStatementError(FormatApple, "decoding attStmt: %v", err)
	}
	chain, err := decodeX5C(stmt.X5C)
	if err != nil {
		return nil, newStatementError(FormatApple, "decoding x5c: %v", err)
	}
	if len(chain) == 0 {
		return nil, newStatementError(FormatApple, "empty x5c")
	}
	credCert := chain[0]

	nonceToHash := sha256.Sum256(in.SignedBytes())

	ext := findExtension(credCert, appleNonceExtensionOID)
	if ext == nil {
		return nil, newStatementError(FormatApple, "credential certificate missing Apple nonce extension")
	}
	var nonceValue appleNonceExtensionValue
	if _, err := asn1.Unmarshal(ext.Value, &nonceValue); err != nil {
		return nil, newStatementError(FormatApple, "invalid Apple nonce extension: %v", err)
	}
	if len(nonceValue.Nonce) != len(nonceToHash) || string(nonceValue.Nonce) != string(nonceToHash[:]) {
		return nil, newStatementError(FormatApple, "nonce extension does not match hash of authData || clientDataHash")
	}

	if !publicKeysEqual(credCert.PublicKey, in.CredentialKey.Std()) {
		return nil, newStatementError(FormatApple, "certificate public key does not match credential public key")
	}

	return &Chain{Trust: TrustAnonCA, Certs: chain}, nil
}

package attestation

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"

	"github.com/gravitational/trace"

	"github.com/trustwing/webauthn/protocol/webauthncbor"
	"github.com/trustwing/webauthn/protocol/webauthncose"
)

// extensionIDFIDOGenCEAAGUID is the id-fido-gen-ce-aaguid X.509 extension
// OID, used to cross-check the AAGUID embedded in a packed attestation
// certificate against the one in authenticator data.
var extensionIDFIDOGenCEAAGUID = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 45724, 1, 1, 4}

type packedStatement struct {
	Alg int64                     `cbor:"alg"`
	Sig []byte                    `cbor:"sig"`
	X5C []webauthncbor.RawMessage `cbor:"x5c,omitempty"`
}

// verifyPacked implements the "packed" attestation statement format
// (§8.2). Self attestation and X.509-rooted (basic/AttCA) attestation are
// both supported; ECDAA is not (it was removed from later WebAuthn
// revisions and no examined authenticator in the wild emits it).
func verifyPacked(in *Input) (*Chain, error) {
	var stmt packedStatement
	if err := webauthncbor.Unmarshal(in.AttStmtRaw, &stmt); err != nil {
		return nil, newStatementError(FormatPacked, "decoding attStmt: %v", err)
	}
	if stmt.Sig == nil {
		return nil, newStatementError(FormatPacked, "missing sig")
	}
	alg := webauthncose.Algorithm(stmt.Alg)

	if len(stmt.X5C) > 0 {
		return verifyPackedX5C(in, alg, stmt.Sig, stmt.X5C)
	}
	return verifyPackedSelf(in, alg, stmt.Sig)
}

func verifyPackedX5C(in *Input, alg webauthncose.Algorithm, sig []byte, x5cRaw []webauthncbor.RawMessage) (*Chain, error) {
	chain, err := decodeX5C(x5cRaw)
	if err != nil {
		return nil, newStatementError(FormatPacked, "decoding x5c: %v", err)
	}
	leaf := chain[0]

	signedBytes := in.SignedBytes()
	if err := leaf.CheckSignature(leaf.SignatureAlgorithm, signedBytes, sig); err != nil {
		return nil, newStatementError(FormatPacked, "signature verification failed: %v", err)
	}

	if leaf.Version != 3 {
		return nil, newStatementError(FormatPacked, "attestation certificate must be X.509v3")
	}
	if leaf.IsCA {
		return nil, newStatementError(FormatPacked, "attestation certificate must not be a CA")
	}

	if aaguidExt := findExtension(leaf, extensionIDFIDOGenCEAAGUID); aaguidExt != nil {
		if aaguidExt.Critical {
			return nil, newStatementError(FormatPacked, "id-fido-gen-ce-aaguid extension must not be critical")
		}
		var extAAGUID []byte
		if _, err := asn1.Unmarshal(aaguidExt.Value, &extAAGUID); err != nil {
			return nil, newStatementError(FormatPacked, "invalid id-fido-gen-ce-aaguid extension: %v", err)
		}
		if in.AuthData.AttestedCredentialData == nil || string(extAAGUID) != string(in.AuthData.AttestedCredentialData.AAGUID[:]) {
			return nil, newStatementError(FormatPacked, "certificate AAGUID does not match authenticator data AAGUID")
		}
	}

	// Attestation CA vs. Basic is a policy distinction the statement
	// itself cannot convey; classify as Basic. The trust-chain cross-check
	// against the MDS registry (§4.4 step 9) does not reclassify the
	// chain; it returns the matched metadata entry, whose attestation
	// types are the only record of that distinction.
	return &Chain{Trust: TrustBasicX5C, Certs: chain}, nil
}

func verifyPackedSelf(in *Input, alg webauthncose.Algorithm, sig []byte) (*Chain, error) {
	if in.CredentialKey.Algorithm() != alg {
		return nil, newStatementError(FormatPacked, "attStmt alg %s does not match credential key algorithm %s", alg, in.CredentialKey.Algorithm())
	}
	if !webauthncose.Verify(in.CredentialKey, in.SignedBytes(), sig) {
		return nil, newStatementError(FormatPacked, "self attestation signature invalid")
	}
	return &Chain{Trust: TrustSelf}, nil
}

func decodeX5C(x5cRaw []webauthncbor.RawMessage) ([]*x509.Certificate, error) {
	if len(x5cRaw) == 0 {
		return nil, trace.BadParameter("empty x5c")
	}
	certs := make([]*x509.Certificate, 0, len(x5cRaw))
	for _, raw := range x5cRaw {
		var der []byte
		if err := webauthncbor.Unmarshal(raw, &der); err != nil {
			return nil, err
		}
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, err
		}
		certs = append(certs, cert)
	}
	return certs, nil
}

func findExtension(cert *x509.Certificate, oid asn1.ObjectIdentifier) *pkix.Extension {
	for _, ext := range cert.Extensions {
		if ext.Id.Equal(oid) {
			e := ext
			return &e
		}
	}
	return nil
}

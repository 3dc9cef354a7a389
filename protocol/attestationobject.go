package protocol

import (
	"github.com/gravitational/trace"

	"github.com/trustwing/webauthn/protocol/webauthncbor"
)

// AttestationObject is the CBOR-decoded `{authData, fmt, attStmt}` map
// produced during registration. AttStmt is left uninterpreted CBOR; its
// shape depends on Format and is decoded by the matching attestation
// format verifier. AuthData is parsed into AuthenticatorData, and its raw
// bytes are what get hashed and verified alongside the client-data hash.
type AttestationObject struct {
	Format        string
	AttStmtRaw    webauthncbor.RawMessage
	AuthData      *AuthenticatorData
	RawAuthData   []byte
}

type attestationObjectWire struct {
	AuthData webauthncbor.RawMessage `cbor:"authData"`
	Fmt      string                  `cbor:"fmt"`
	AttStmt  webauthncbor.RawMessage `cbor:"attStmt"`
}

// DecodeAttestationObject strictly decodes the CBOR attestation object:
// all three keys (authData, fmt, attStmt) are required.
func DecodeAttestationObject(raw []byte) (*AttestationObject, error) {
	var wire attestationObjectWire
	if err := webauthncbor.Unmarshal(raw, &wire); err != nil {
		return nil, trace.BadParameter("decoding attestation object: %v", err)
	}
	if wire.AuthData == nil {
		return nil, trace.BadParameter("attestation object missing authData")
	}
	if wire.Fmt == "" {
		return nil, trace.BadParameter("attestation object missing fmt")
	}
	if wire.AttStmt == nil {
		return nil, trace.BadParameter("attestation object missing attStmt")
	}

	var authDataBytes []byte
	if err := webauthncbor.Unmarshal(wire.AuthData, &authDataBytes); err != nil {
		return nil, trace.BadParameter("decoding attestation object authData bytes: %v", err)
	}

	authData, err := DecodeAuthenticatorData(authDataBytes)
	if err != nil {
		return nil, trace.Wrap(err, "decoding authData")
	}

	return &AttestationObject{
		Format:      wire.Fmt,
		AttStmtRaw:  wire.AttStmt,
		AuthData:    authData,
		RawAuthData: authDataBytes,
	}, nil
}

// Encode re-serializes the attestation object. Because authData, fmt, and
// attStmt are all captured as raw/verbatim values, re-encoding with
// CTAP2-canonical CBOR (three map keys, stable order) reproduces the
// original byte sequence for any well-formed input.
func (a *AttestationObject) Encode() ([]byte, error) {
	authDataBytes, err := webauthncbor.Marshal(a.RawAuthData)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	// Field order matches CTAP2 canonical map-key ordering (shortest key
	// first, then bytewise): "fmt", "attStmt", "authData".
	wire := struct {
		Fmt      string                  `cbor:"fmt"`
		AttStmt  webauthncbor.RawMessage `cbor:"attStmt"`
		AuthData webauthncbor.RawMessage `cbor:"authData"`
	}{
		Fmt:      a.Format,
		AttStmt:  a.AttStmtRaw,
		AuthData: authDataBytes,
	}
	out, err := webauthncbor.Marshal(wire)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return out, nil
}

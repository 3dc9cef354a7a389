// Package protocol implements the WebAuthn binary codec: decoding (and, for
// client-data, re-encoding) of the three wire structures an authenticator
// response carries — CollectedClientData, authenticator data, and the
// attestation object — while preserving the exact signed byte sequences.
package protocol

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/gravitational/trace"
)

// CeremonyType is the WebAuthn ceremony a CollectedClientData was produced
// for.
type CeremonyType string

const (
	CeremonyCreate CeremonyType = "webauthn.create"
	CeremonyGet    CeremonyType = "webauthn.get"
)

// CollectedClientData is the browser-produced JSON structure bound into
// every signed authenticator response. RawBytes holds the exact bytes
// that were hashed and signed; it is populated by Decode and must never
// be reconstructed by re-encoding the struct, since field order, spacing,
// and Unicode escaping are not canonical.
type CollectedClientData struct {
	Type        CeremonyType
	Challenge   []byte
	Origin      string
	CrossOrigin bool
	RawBytes    []byte
}

// clientDataJSON mirrors the wire shape of CollectedClientData for
// encoding/json purposes. The challenge is base64url, accepted with or
// without padding on decode.
type clientDataJSON struct {
	Type         CeremonyType `json:"type"`
	Challenge    string       `json:"challenge"`
	Origin       string       `json:"origin"`
	CrossOrigin  bool         `json:"crossOrigin,omitempty"`
	TokenBinding any          `json:"tokenBinding,omitempty"`
}

// DecodeClientData parses raw client-data JSON bytes, preserving the
// original bytes verbatim in the result's RawBytes field.
func DecodeClientData(raw []byte) (*CollectedClientData, error) {
	var wire clientDataJSON
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, trace.BadParameter("decoding client data: %v", err)
	}
	if wire.Type == "" {
		return nil, trace.BadParameter("client data missing type")
	}
	if wire.Origin == "" {
		return nil, trace.BadParameter("client data missing origin")
	}
	if wire.Challenge == "" {
		return nil, trace.BadParameter("client data missing challenge")
	}

	challenge, err := decodeBase64URL(wire.Challenge)
	if err != nil {
		return nil, trace.BadParameter("decoding client data challenge: %v", err)
	}

	return &CollectedClientData{
		Type:        wire.Type,
		Challenge:   challenge,
		Origin:      wire.Origin,
		CrossOrigin: wire.CrossOrigin,
		RawBytes:    append([]byte(nil), raw...),
	}, nil
}

// Encode re-serializes the client data for test fixtures. Per §8, the
// result MAY differ byte-for-byte from any original input, but decoding
// it again MUST produce an equal value. Field order is fixed as
// type, challenge, origin, crossOrigin, matching the order browsers emit.
func (c *CollectedClientData) Encode() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"type":`)
	typeJSON, err := json.Marshal(string(c.Type))
	if err != nil {
		return nil, trace.Wrap(err)
	}
	buf.Write(typeJSON)

	buf.WriteString(`,"challenge":`)
	challengeJSON, err := json.Marshal(base64.RawURLEncoding.EncodeToString(c.Challenge))
	if err != nil {
		return nil, trace.Wrap(err)
	}
	buf.Write(challengeJSON)

	buf.WriteString(`,"origin":`)
	originJSON, err := json.Marshal(c.Origin)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	buf.Write(originJSON)

	fmt.Fprintf(&buf, `,"crossOrigin":%t}`, c.CrossOrigin)
	return buf.Bytes(), nil
}

// decodeBase64URL decodes s as base64url, tolerating both padded and
// unpadded encodings, as browsers and CTAP authenticators may emit
// either.
func decodeBase64URL(s string) ([]byte, error) {
	if b, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.URLEncoding.DecodeString(s)
}

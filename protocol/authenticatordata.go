package protocol

import (
	"encoding/binary"

	"github.com/google/uuid"
	"github.com/gravitational/trace"

	"github.com/trustwing/webauthn/protocol/webauthncbor"
)

// Flag bit positions within the authenticator data flags byte.
//
// https://www.w3.org/TR/webauthn-3/#authdata-flags
const (
	flagUserPresent         = 1 << 0
	flagUserVerified        = 1 << 2
	flagBackupEligible      = 1 << 3
	flagBackedUp            = 1 << 4
	flagAttestedCredentials = 1 << 6
	flagExtensions          = 1 << 7
)

// Flags is the authenticator data flags byte.
type Flags byte

func (f Flags) UserPresent() bool         { return byte(f)&flagUserPresent != 0 }
func (f Flags) UserVerified() bool        { return byte(f)&flagUserVerified != 0 }
func (f Flags) BackupEligible() bool      { return byte(f)&flagBackupEligible != 0 }
func (f Flags) BackedUp() bool            { return byte(f)&flagBackedUp != 0 }
func (f Flags) HasAttestedCredentials() bool { return byte(f)&flagAttestedCredentials != 0 }
func (f Flags) HasExtensions() bool       { return byte(f)&flagExtensions != 0 }

// AttestedCredentialData is present on authenticator data produced during
// registration. RawPublicKeyBytes is the exact CBOR bytes of the COSE key,
// required to re-verify the stored credential and to detect tampering of
// the stored key material.
type AttestedCredentialData struct {
	AAGUID            uuid.UUID
	CredentialID      []byte
	PublicKeyBytes    []byte
	RawPublicKeyBytes []byte
}

const maxCredentialIDLength = 1023

// AuthenticatorData is the decoded authenticator data structure. RawBytes
// holds the exact input span, which is what gets signed (concatenated
// with the client-data hash) and must be preserved unmodified.
type AuthenticatorData struct {
	RPIDHash  [32]byte
	Flags     Flags
	SignCount uint32

	AttestedCredentialData *AttestedCredentialData
	Extensions             webauthncbor.RawMessage

	RawBytes []byte
}

const (
	rpIDHashLen = 32
	flagsLen    = 1
	counterLen  = 4
	aaguidLen   = 16
	credIDLenLen = 2
)

// DecodeAuthenticatorData parses the binary authenticator data layout:
// rpIdHash(32) || flags(1) || signCount(4) || [attestedCredentialData] ||
// [extensions].
func DecodeAuthenticatorData(raw []byte) (*AuthenticatorData, error) {
	minLen := rpIDHashLen + flagsLen + counterLen
	if len(raw) < minLen {
		return nil, trace.BadParameter("authenticator data too short: got %d bytes, need at least %d", len(raw), minLen)
	}

	ad := &AuthenticatorData{RawBytes: append([]byte(nil), raw...)}
	copy(ad.RPIDHash[:], raw[:rpIDHashLen])
	rest := raw[rpIDHashLen:]

	ad.Flags = Flags(rest[0])
	rest = rest[flagsLen:]

	ad.SignCount = binary.BigEndian.Uint32(rest[:counterLen])
	rest = rest[counterLen:]

	if ad.Flags.HasAttestedCredentials() {
		acd, remaining, err := decodeAttestedCredentialData(rest)
		if err != nil {
			return nil, trace.Wrap(err, "decoding attested credential data")
		}
		ad.AttestedCredentialData = acd
		rest = remaining
	}

	if ad.Flags.HasExtensions() {
		dec := webauthncbor.NewSequenceDecoder(rest)
		var ext webauthncbor.RawMessage
		raw, err := dec.Decode(&ext)
		if err != nil {
			return nil, trace.BadParameter("decoding extensions: %v", err)
		}
		ad.Extensions = raw
		rest = dec.Rest()
	}

	if len(rest) != 0 {
		return nil, trace.BadParameter("authenticator data has %d trailing bytes", len(rest))
	}
	return ad, nil
}

func decodeAttestedCredentialData(b []byte) (*AttestedCredentialData, []byte, error) {
	if len(b) < aaguidLen+credIDLenLen {
		return nil, nil, trace.BadParameter("not enough bytes for AAGUID and credential ID length")
	}
	aaguid, err := uuid.FromBytes(b[:aaguidLen])
	if err != nil {
		return nil, nil, trace.BadParameter("invalid AAGUID: %v", err)
	}
	b = b[aaguidLen:]

	credIDLen := binary.BigEndian.Uint16(b[:credIDLenLen])
	if int(credIDLen) > maxCredentialIDLength {
		return nil, nil, trace.BadParameter("credential ID length %d exceeds maximum %d", credIDLen, maxCredentialIDLength)
	}
	b = b[credIDLenLen:]

	if len(b) < int(credIDLen) {
		return nil, nil, trace.BadParameter("not enough bytes for credential ID")
	}
	credID := b[:credIDLen]
	b = b[credIDLen:]

	dec := webauthncbor.NewSequenceDecoder(b)
	var keyLabels map[int64]webauthncbor.RawMessage
	keyRaw, err := dec.Decode(&keyLabels)
	if err != nil {
		return nil, nil, trace.BadParameter("decoding credential public key: %v", err)
	}

	return &AttestedCredentialData{
		AAGUID:            aaguid,
		CredentialID:      append([]byte(nil), credID...),
		PublicKeyBytes:    append([]byte(nil), keyRaw...),
		RawPublicKeyBytes: append([]byte(nil), keyRaw...),
	}, dec.Rest(), nil
}

// Encode re-serializes the authenticator data. Round-tripping a
// well-formed decode must reproduce the original bytes exactly, since the
// binary layout has no canonicalization ambiguity once the attested
// credential data and extensions' raw spans are known.
func (ad *AuthenticatorData) Encode() []byte {
	out := make([]byte, 0, len(ad.RawBytes))
	out = append(out, ad.RPIDHash[:]...)
	out = append(out, byte(ad.Flags))

	var counter [4]byte
	binary.BigEndian.PutUint32(counter[:], ad.SignCount)
	out = append(out, counter[:]...)

	if ad.AttestedCredentialData != nil {
		acd := ad.AttestedCredentialData
		out = append(out, acd.AAGUID[:]...)
		var idLen [2]byte
		binary.BigEndian.PutUint16(idLen[:], uint16(len(acd.CredentialID)))
		out = append(out, idLen[:]...)
		out = append(out, acd.CredentialID...)
		out = append(out, acd.RawPublicKeyBytes...)
	}
	if ad.Extensions != nil {
		out = append(out, ad.Extensions...)
	}
	return out
}

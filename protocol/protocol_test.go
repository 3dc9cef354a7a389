package protocol_test

import (
	"encoding/base64"
	"encoding/binary"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/trustwing/webauthn/protocol"
	"github.com/trustwing/webauthn/protocol/webauthncbor"
)

func TestDecodeClientData(t *testing.T) {
	raw := []byte(`{"type":"webauthn.create","challenge":"AAECAwQFBgc","origin":"https://example.com","crossOrigin":false}`)

	cd, err := protocol.DecodeClientData(raw)
	require.NoError(t, err)
	require.Equal(t, protocol.CeremonyCreate, cd.Type)
	require.Equal(t, "https://example.com", cd.Origin)
	require.False(t, cd.CrossOrigin)
	require.Equal(t, []byte{0, 1, 2, 3, 4, 5, 6, 7}, cd.Challenge)
	require.Equal(t, raw, cd.RawBytes)
}

func TestDecodeClientData_MissingFields(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"missing type", `{"challenge":"AAAA","origin":"https://example.com"}`},
		{"missing origin", `{"type":"webauthn.create","challenge":"AAAA"}`},
		{"missing challenge", `{"type":"webauthn.create","origin":"https://example.com"}`},
		{"not json", `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := protocol.DecodeClientData([]byte(tt.raw))
			require.Error(t, err)
		})
	}
}

func TestCollectedClientData_EncodeDecodeRoundTrip(t *testing.T) {
	cd := &protocol.CollectedClientData{
		Type:        protocol.CeremonyGet,
		Challenge:   []byte("some-challenge-bytes"),
		Origin:      "https://login.example.com",
		CrossOrigin: true,
	}
	encoded, err := cd.Encode()
	require.NoError(t, err)

	decoded, err := protocol.DecodeClientData(encoded)
	require.NoError(t, err)
	require.Equal(t, cd.Type, decoded.Type)
	require.Equal(t, cd.Challenge, decoded.Challenge)
	require.Equal(t, cd.Origin, decoded.Origin)
	require.Equal(t, cd.CrossOrigin, decoded.CrossOrigin)
}

func mustCOSEKeyBytes(t *testing.T) []byte {
	t.Helper()
	key := map[int64]any{
		1:  int64(2),  // kty: EC2
		3:  int64(-7), // alg: ES256
		-1: int64(1),  // crv: P-256
		-2: []byte{1, 2, 3},
		-3: []byte{4, 5, 6},
	}
	raw, err := webauthncbor.Marshal(key)
	require.NoError(t, err)
	return raw
}

func buildAuthenticatorData(t *testing.T, withAttestedCred bool) []byte {
	t.Helper()
	var buf []byte
	rpIDHash := make([]byte, 32)
	for i := range rpIDHash {
		rpIDHash[i] = byte(i)
	}
	buf = append(buf, rpIDHash...)

	flags := byte(0x01) // UP
	if withAttestedCred {
		flags |= 0x40 // attested credential data present
	}
	buf = append(buf, flags)

	var counter [4]byte
	binary.BigEndian.PutUint32(counter[:], 7)
	buf = append(buf, counter[:]...)

	if withAttestedCred {
		aaguid := uuid.New()
		buf = append(buf, aaguid[:]...)

		credID := []byte("credential-id-bytes")
		var credIDLen [2]byte
		binary.BigEndian.PutUint16(credIDLen[:], uint16(len(credID)))
		buf = append(buf, credIDLen[:]...)
		buf = append(buf, credID...)

		buf = append(buf, mustCOSEKeyBytes(t)...)
	}
	return buf
}

func TestDecodeAuthenticatorData_NoAttestedCredential(t *testing.T) {
	raw := buildAuthenticatorData(t, false)
	ad, err := protocol.DecodeAuthenticatorData(raw)
	require.NoError(t, err)
	require.True(t, ad.Flags.UserPresent())
	require.False(t, ad.Flags.UserVerified())
	require.False(t, ad.Flags.HasAttestedCredentials())
	require.Nil(t, ad.AttestedCredentialData)
	require.Equal(t, uint32(7), ad.SignCount)
	require.Equal(t, raw, ad.RawBytes)
}

func TestDecodeAuthenticatorData_WithAttestedCredential(t *testing.T) {
	raw := buildAuthenticatorData(t, true)
	ad, err := protocol.DecodeAuthenticatorData(raw)
	require.NoError(t, err)
	require.True(t, ad.Flags.HasAttestedCredentials())
	require.NotNil(t, ad.AttestedCredentialData)
	require.Equal(t, []byte("credential-id-bytes"), ad.AttestedCredentialData.CredentialID)
}

func TestDecodeAuthenticatorData_TooShort(t *testing.T) {
	_, err := protocol.DecodeAuthenticatorData(make([]byte, 10))
	require.Error(t, err)
}

func TestAuthenticatorData_EncodeDecodeRoundTrip(t *testing.T) {
	raw := buildAuthenticatorData(t, true)
	ad, err := protocol.DecodeAuthenticatorData(raw)
	require.NoError(t, err)
	require.Equal(t, raw, ad.Encode())
}

func TestDecodeAttestationObject_RoundTrip(t *testing.T) {
	authDataBytes := buildAuthenticatorData(t, true)

	attStmt := map[string]any{"foo": "bar"}
	attStmtRaw, err := webauthncbor.Marshal(attStmt)
	require.NoError(t, err)

	authDataEncoded, err := webauthncbor.Marshal(authDataBytes)
	require.NoError(t, err)

	wire := struct {
		Fmt      string                  `cbor:"fmt"`
		AttStmt  webauthncbor.RawMessage `cbor:"attStmt"`
		AuthData webauthncbor.RawMessage `cbor:"authData"`
	}{
		Fmt:      "none",
		AttStmt:  attStmtRaw,
		AuthData: authDataEncoded,
	}
	raw, err := webauthncbor.Marshal(wire)
	require.NoError(t, err)

	obj, err := protocol.DecodeAttestationObject(raw)
	require.NoError(t, err)
	require.Equal(t, "none", obj.Format)
	require.Equal(t, authDataBytes, obj.RawAuthData)
	require.NotNil(t, obj.AuthData)

	reEncoded, err := obj.Encode()
	require.NoError(t, err)
	require.Equal(t, raw, reEncoded)
}

func TestDecodeAttestationObject_MissingKeys(t *testing.T) {
	wire := map[string]any{"fmt": "none"}
	raw, err := webauthncbor.Marshal(wire)
	require.NoError(t, err)
	_, err = protocol.DecodeAttestationObject(raw)
	require.Error(t, err)
}

func TestBase64URLChallenge_UnpaddedAndPadded(t *testing.T) {
	challenge := []byte("variable-length-challenge-data")
	unpadded := base64.RawURLEncoding.EncodeToString(challenge)
	padded := base64.URLEncoding.EncodeToString(challenge)

	for _, enc := range []string{unpadded, padded} {
		raw := []byte(`{"type":"webauthn.get","challenge":"` + enc + `","origin":"https://example.com"}`)
		cd, err := protocol.DecodeClientData(raw)
		require.NoError(t, err)
		require.Equal(t, challenge, cd.Challenge)
	}
}

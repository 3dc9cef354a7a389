package metadata

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/hex"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testSelfSignedCertDER(t *testing.T) []byte {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "test root"},
		NotBefore:    time.Unix(0, 0),
		NotAfter:     time.Unix(0, 0).Add(100 * 365 * 24 * time.Hour),
		IsCA:         true,
		KeyUsage:     x509.KeyUsageCertSign,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	require.NoError(t, err)
	return der
}

func sampleRootCertB64(t *testing.T) string {
	t.Helper()
	// A self-signed certificate DER, base64-encoded with interior
	// whitespace, as real MDS blobs have shipped.
	der := testSelfSignedCertDER(t)
	enc := base64.StdEncoding.EncodeToString(der)
	return enc[:len(enc)/2] + "\n " + enc[len(enc)/2:]
}

func TestDecodeEntry_AAGUIDVariant(t *testing.T) {
	d := &Decoder{}
	raw := rawEntry{
		AAGUID: "00000000-0000-0000-0000-000000000001",
		MetadataStatement: &rawStatement{
			Description:      "Example Authenticator",
			AttestationTypes: []string{"basic_full"},
			Schema:           3,
		},
	}
	outcome, err := d.DecodeEntry(raw)
	require.NoError(t, err)
	require.False(t, outcome.Skipped)
	require.NotNil(t, outcome.Entry.AAGUID)
	require.Empty(t, outcome.Entry.SKIs)
	require.Equal(t, []AttestationType{AttestationBasicFull}, outcome.Entry.AttestationTypes)
}

func TestDecodeEntry_SKIVariant(t *testing.T) {
	d := &Decoder{}
	ski := hex.EncodeToString(make([]byte, 20))
	raw := rawEntry{
		AttestationCertificateKeyIdentifiers: []string{ski},
		MetadataStatement: &rawStatement{
			AttestationTypes: []string{"attca"},
			Schema:           3,
		},
	}
	outcome, err := d.DecodeEntry(raw)
	require.NoError(t, err)
	require.Len(t, outcome.Entry.SKIs, 1)
	require.Nil(t, outcome.Entry.AAGUID)
}

func TestDecodeEntry_MultipleSKIs(t *testing.T) {
	d := &Decoder{}
	ski1 := hex.EncodeToString(make([]byte, 20))
	two := make([]byte, 20)
	two[19] = 1
	ski2 := hex.EncodeToString(two)
	raw := rawEntry{
		AttestationCertificateKeyIdentifiers: []string{ski1, ski2},
		MetadataStatement: &rawStatement{
			AttestationTypes: []string{"attca"},
			Schema:           3,
		},
	}
	outcome, err := d.DecodeEntry(raw)
	require.NoError(t, err)
	require.Len(t, outcome.Entry.SKIs, 2)
	require.Len(t, outcome.Entry.Identifiers(), 2)
}

func TestDecodeEntry_NeitherIdentifier(t *testing.T) {
	d := &Decoder{}
	raw := rawEntry{MetadataStatement: &rawStatement{AttestationTypes: []string{"basic_full"}, Schema: 3}}
	_, err := d.DecodeEntry(raw)
	require.Error(t, err)
}

func TestDecodeEntry_MissingMetadataStatement(t *testing.T) {
	d := &Decoder{}
	_, err := d.DecodeEntry(rawEntry{AAGUID: "00000000-0000-0000-0000-000000000001"})
	require.Error(t, err)
}

func TestDecodeEntry_WrongSchema(t *testing.T) {
	d := &Decoder{}
	raw := rawEntry{
		AAGUID:            "00000000-0000-0000-0000-000000000001",
		MetadataStatement: &rawStatement{AttestationTypes: []string{"basic_full"}, Schema: 2},
	}
	_, err := d.DecodeEntry(raw)
	require.Error(t, err)
}

func TestDecodeEntry_OnlyIncompatibleAttestationTypesSkips(t *testing.T) {
	d := &Decoder{}
	raw := rawEntry{
		AAGUID: "00000000-0000-0000-0000-000000000001",
		MetadataStatement: &rawStatement{
			AttestationTypes: []string{"basic_surrogate", "ecdaa"},
			Schema:           3,
		},
	}
	outcome, err := d.DecodeEntry(raw)
	require.NoError(t, err)
	require.True(t, outcome.Skipped)
	require.Nil(t, outcome.Entry)
}

func TestDecodeEntry_MixedAttestationTypesKeepsCompatibleOnes(t *testing.T) {
	d := &Decoder{}
	raw := rawEntry{
		AAGUID: "00000000-0000-0000-0000-000000000001",
		MetadataStatement: &rawStatement{
			AttestationTypes: []string{"basic_surrogate", "basic_full"},
			Schema:           3,
		},
	}
	outcome, err := d.DecodeEntry(raw)
	require.NoError(t, err)
	require.False(t, outcome.Skipped)
	require.Equal(t, []AttestationType{AttestationBasicFull}, outcome.Entry.AttestationTypes)
}

func TestDecodeEntry_LenientBase64RootCert(t *testing.T) {
	d := &Decoder{Strict: false}
	raw := rawEntry{
		AAGUID: "00000000-0000-0000-0000-000000000001",
		MetadataStatement: &rawStatement{
			AttestationTypes:     []string{"basic_full"},
			Schema:               3,
			AttestationRootCerts: []string{sampleRootCertB64(t)},
		},
	}
	outcome, err := d.DecodeEntry(raw)
	require.NoError(t, err)
	require.Len(t, outcome.Entry.AttestationRootCertificates, 1)
}

func TestDecodeEntry_StrictRejectsWhitespaceBase64(t *testing.T) {
	d := &Decoder{Strict: true}
	raw := rawEntry{
		AAGUID: "00000000-0000-0000-0000-000000000001",
		MetadataStatement: &rawStatement{
			AttestationTypes:     []string{"basic_full"},
			Schema:               3,
			AttestationRootCerts: []string{sampleRootCertB64(t)},
		},
	}
	_, err := d.DecodeEntry(raw)
	require.Error(t, err)
}

func TestDecodeSKI_WrongLength(t *testing.T) {
	_, err := decodeSKI(hex.EncodeToString(make([]byte, 10)))
	require.Error(t, err)
}

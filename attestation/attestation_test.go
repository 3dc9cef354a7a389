package attestation_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trustwing/webauthn/attestation"
	"github.com/trustwing/webauthn/protocol"
	"github.com/trustwing/webauthn/protocol/webauthncbor"
	"github.com/trustwing/webauthn/protocol/webauthncose"
)

func mustCheckedECDSAKey(t *testing.T, priv *ecdsa.PrivateKey) *webauthncose.PublicKey {
	t.Helper()
	coseKey := map[int64]any{
		1:  int64(webauthncose.KeyTypeEC2),
		3:  int64(webauthncose.AlgES256),
		-1: int64(webauthncose.CurveP256),
		-2: priv.PublicKey.X.Bytes(),
		-3: priv.PublicKey.Y.Bytes(),
	}
	raw, err := webauthncbor.Marshal(coseKey)
	require.NoError(t, err)

	unchecked, err := webauthncose.Decode(raw)
	require.NoError(t, err)
	key, err := webauthncose.Check(unchecked)
	require.NoError(t, err)
	return key
}

func baseInput(t *testing.T, credKey *webauthncose.PublicKey) *attestation.Input {
	t.Helper()
	authData := &protocol.AuthenticatorData{
		RawBytes: []byte("fake-authenticator-data-bytes"),
	}
	clientDataHash := sha256.Sum256([]byte("fake-client-data"))
	return &attestation.Input{
		AuthData:       authData,
		ClientDataHash: clientDataHash[:],
		CredentialKey:  credKey,
	}
}

func TestVerifyNone(t *testing.T) {
	sf := attestation.New()

	t.Run("empty map accepted", func(t *testing.T) {
		in := baseInput(t, nil)
		in.AttStmtRaw = []byte{0xa0}
		chain, err := sf.Verify(attestation.FormatNone, in)
		require.NoError(t, err)
		require.Equal(t, attestation.TrustUncertain, chain.Trust)
		require.Empty(t, chain.Certs)
	})

	t.Run("non-empty map rejected", func(t *testing.T) {
		in := baseInput(t, nil)
		in.AttStmtRaw = []byte{0xa1, 0x61, 0x61, 0x01} // {"a": 1}
		_, err := sf.Verify(attestation.FormatNone, in)
		require.Error(t, err)
	})
}

func TestVerifyPackedSelf(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	credKey := mustCheckedECDSAKey(t, priv)

	sf := attestation.New()
	in := baseInput(t, credKey)

	sig, err := ecdsa.SignASN1(rand.Reader, priv, hash256(in.SignedBytes()))
	require.NoError(t, err)

	stmt := map[string]any{
		"alg": int64(webauthncose.AlgES256),
		"sig": sig,
	}
	stmtRaw, err := webauthncbor.Marshal(stmt)
	require.NoError(t, err)
	in.AttStmtRaw = stmtRaw

	chain, err := sf.Verify(attestation.FormatPacked, in)
	require.NoError(t, err)
	require.Equal(t, attestation.TrustSelf, chain.Trust)
}

func TestVerifyPackedSelf_WrongKey(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	other, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	credKey := mustCheckedECDSAKey(t, priv)

	sf := attestation.New()
	in := baseInput(t, credKey)

	sig, err := ecdsa.SignASN1(rand.Reader, other, hash256(in.SignedBytes()))
	require.NoError(t, err)

	stmt := map[string]any{
		"alg": int64(webauthncose.AlgES256),
		"sig": sig,
	}
	stmtRaw, err := webauthncbor.Marshal(stmt)
	require.NoError(t, err)
	in.AttStmtRaw = stmtRaw

	_, err = sf.Verify(attestation.FormatPacked, in)
	require.Error(t, err)
}

func TestVerify_UnsupportedFormat(t *testing.T) {
	sf := attestation.New()
	_, err := sf.Verify("unknown-format", baseInput(t, nil))
	require.Error(t, err)
}

func TestWithFormat_Override(t *testing.T) {
	called := false
	sf := attestation.New().WithFormat(attestation.FormatNone, func(in *attestation.Input) (*attestation.Chain, error) {
		called = true
		return &attestation.Chain{Trust: attestation.TrustAnonCA}, nil
	})

	chain, err := sf.Verify(attestation.FormatNone, baseInput(t, nil))
	require.NoError(t, err)
	require.True(t, called)
	require.Equal(t, attestation.TrustAnonCA, chain.Trust)

	// The original registry returned by New() must be unaffected.
	orig := attestation.New()
	chain2, err := orig.Verify(attestation.FormatNone, &attestation.Input{
		AuthData:       baseInput(t, nil).AuthData,
		ClientDataHash: baseInput(t, nil).ClientDataHash,
		AttStmtRaw:     []byte{0xa0},
	})
	require.NoError(t, err)
	require.Equal(t, attestation.TrustUncertain, chain2.Trust)
}

func hash256(b []byte) []byte {
	h := sha256.Sum256(b)
	return h[:]
}

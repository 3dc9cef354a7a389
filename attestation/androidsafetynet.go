package attestation

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"

	josejwt "github.com/go-jose/go-jose/v4"

	"github.com/trustwing/webauthn/protocol/webauthncbor"
)

type androidSafetyNetStatement struct {
	Ver      string `cbor:"ver"`
	Response []byte `cbor:"response"`
}

type safetyNetPayload struct {
	Nonce                      string `json:"nonce"`
	TimestampMs                int64  `json:"timestampMs"`
	ApkPackageName             string `json:"apkPackageName"`
	ApkDigestSha256            string `json:"apkDigestSha256"`
	CtsProfileMatch            bool   `json:"ctsProfileMatch"`
	BasicIntegrity             bool   `json:"basicIntegrity"`
	ApkCertificateDigestSha256 []string `json:"apkCertificateDigestSha256"`
}

// verifyAndroidSafetyNet implements the "android-safetynet" attestation
// statement format: `response` is a compact JWS whose payload's `nonce`
// field must equal base64(SHA256(rawAuthData || clientDataHash)), signed
// by the leaf certificate in the JWS header's x5c chain.
func verifyAndroidSafetyNet(in *Input) (*Chain, error) {
	var stmt androidSafetyNetStatement
	if err := webauthncbor.Unmarshal(in.AttStmtRaw, &stmt); err != nil {
		return nil, newStatementError(FormatAndroidSafetyNet, "decoding attStmt: %v", err)
	}
	if len(stmt.Response) == 0 {
		return nil, newStatementError(FormatAndroidSafetyNet, "missing response")
	}

	sig, err := josejwt.ParseSigned(string(stmt.Response), []josejwt.SignatureAlgorithm{
		josejwt.RS256, josejwt.ES256,
	})
	if err != nil {
		return nil, newStatementError(FormatAndroidSafetyNet, "parsing JWS: %v", err)
	}
	if len(sig.Signatures) != 1 {
		return nil, newStatementError(FormatAndroidSafetyNet, "JWS must have exactly one signature")
	}
	header := sig.Signatures[0].Header
	if len(header.Certificates) == 0 {
		return nil, newStatementError(FormatAndroidSafetyNet, "JWS header missing x5c")
	}
	chain := header.Certificates
	leaf := chain[0]

	payloadBytes, err := sig.Verify(leaf.PublicKey)
	if err != nil {
		return nil, newStatementError(FormatAndroidSafetyNet, "JWS signature verification failed: %v", err)
	}

	var payload safetyNetPayload
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		return nil, newStatementError(FormatAndroidSafetyNet, "decoding payload: %v", err)
	}
	if !payload.CtsProfileMatch {
		return nil, newStatementError(FormatAndroidSafetyNet, "ctsProfileMatch is false")
	}

	expectedNonce := sha256.Sum256(in.SignedBytes())
	gotNonce, err := base64.StdEncoding.DecodeString(payload.Nonce)
	if err != nil {
		return nil, newStatementError(FormatAndroidSafetyNet, "decoding nonce: %v", err)
	}
	if len(gotNonce) != len(expectedNonce) || string(gotNonce) != string(expectedNonce[:]) {
		return nil, newStatementError(FormatAndroidSafetyNet, "nonce does not match authData || clientDataHash")
	}

	return &Chain{Trust: TrustBasicX5C, Certs: chain}, nil
}

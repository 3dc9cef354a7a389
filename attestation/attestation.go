// Package attestation implements the pluggable attestation format
// registry (§4.3 of the specification): each WebAuthn attestation
// statement format ("packed", "fido-u2f", "android-key",
// "android-safetynet", "tpm", "apple", "none") is verified by a
// dedicated Verifier, looked up by its format identifier string and
// producing a classified trust chain.
package attestation

import (
	"crypto/x509"
	"fmt"

	"github.com/gravitational/trace"

	"github.com/trustwing/webauthn/protocol"
	"github.com/trustwing/webauthn/protocol/webauthncose"
)

// TrustType classifies the outcome of verifying an attestation statement.
type TrustType int

const (
	// TrustUncertain covers "none" and any case where no trust is
	// asserted by the statement.
	TrustUncertain TrustType = iota
	// TrustSelf means the statement was signed by the credential key
	// itself; trust depends only on the credential key.
	TrustSelf
	// TrustBasicX5C means the statement was signed by a certificate whose
	// chain terminates at a root that must be matched against the MDS
	// registry.
	TrustBasicX5C
	// TrustAttCAX5C is the same chain shape as TrustBasicX5C, carrying a
	// distinct policy label (Attestation CA).
	TrustAttCAX5C
	// TrustAnonCA is an anonymization CA chain with constrained fields.
	TrustAnonCA
)

func (t TrustType) String() string {
	switch t {
	case TrustSelf:
		return "self"
	case TrustBasicX5C:
		return "basic-x5c"
	case TrustAttCAX5C:
		return "attca-x5c"
	case TrustAnonCA:
		return "anon-ca"
	default:
		return "uncertain"
	}
}

// Chain is the result of verifying an attestation statement: a trust
// classification plus, for X.509-rooted trust types, the certificate
// chain presented (leaf first).
type Chain struct {
	Trust TrustType
	Certs []*x509.Certificate
}

// Input bundles everything a format Verifier needs. CredentialKey is the
// already-checked public key parsed from AuthData's attested credential
// data; a verifier may not be invoked without one.
type Input struct {
	AuthData       *protocol.AuthenticatorData
	ClientDataHash []byte
	AttStmtRaw     []byte
	CredentialKey  *webauthncose.PublicKey
}

// SignedBytes is the byte sequence every format signs over:
// rawAuthData || clientDataHash.
func (in *Input) SignedBytes() []byte {
	out := make([]byte, 0, len(in.AuthData.RawBytes)+len(in.ClientDataHash))
	out = append(out, in.AuthData.RawBytes...)
	out = append(out, in.ClientDataHash...)
	return out
}

// Verifier verifies one attestation statement format.
type Verifier func(in *Input) (*Chain, error)

// StatementError carries the attestation format identifier alongside a
// format-specific reason, matching the taxonomy's single parameterized
// AttestationStatementVerificationError variant (§7).
type StatementError struct {
	Format string
	Reason string
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("attestation format %q: %s", e.Format, e.Reason)
}

func newStatementError(format, format2 string, args ...any) *StatementError {
	return &StatementError{Format: format, Reason: fmt.Sprintf(format2, args...)}
}

// SupportedFormats is an immutable registry of attestation format
// verifiers, keyed by the `fmt` identifier string. Built once via New()
// (or WithFormat for a custom subset) and passed into the registration
// verifier; never mutated globally.
type SupportedFormats struct {
	verifiers map[string]Verifier
}

// New returns the registry of all formats this module implements:
// packed, fido-u2f, android-key, android-safetynet, tpm, apple, none.
func New() *SupportedFormats {
	sf := &SupportedFormats{verifiers: make(map[string]Verifier)}
	for name, v := range defaultVerifiers() {
		sf.verifiers[name] = v
	}
	return sf
}

// WithFormat returns a copy of sf with name bound to v, overriding any
// existing verifier for that format. Used by tests to inject a fake
// format or to restrict the accepted set.
func (sf *SupportedFormats) WithFormat(name string, v Verifier) *SupportedFormats {
	next := &SupportedFormats{verifiers: make(map[string]Verifier, len(sf.verifiers)+1)}
	for k, vv := range sf.verifiers {
		next.verifiers[k] = vv
	}
	next.verifiers[name] = v
	return next
}

// Verify dispatches to the verifier registered for format and runs it.
func (sf *SupportedFormats) Verify(format string, in *Input) (*Chain, error) {
	v, ok := sf.verifiers[format]
	if !ok {
		return nil, trace.BadParameter("unsupported attestation format %q", format)
	}
	return v(in)
}

func defaultVerifiers() map[string]Verifier {
	return map[string]Verifier{
		FormatPacked:           verifyPacked,
		FormatFIDOU2F:          verifyFIDOU2F,
		FormatAndroidKey:       verifyAndroidKey,
		FormatAndroidSafetyNet: verifyAndroidSafetyNet,
		FormatTPM:              verifyTPM,
		FormatApple:            verifyApple,
		FormatNone:             verifyNone,
	}
}

// Format identifiers, as defined by the WebAuthn specification.
const (
	FormatPacked           = "packed"
	FormatFIDOU2F          = "fido-u2f"
	FormatAndroidKey       = "android-key"
	FormatAndroidSafetyNet = "android-safetynet"
	FormatTPM              = "tpm"
	FormatApple            = "apple"
	FormatNone             = "none"
)

package webauthntypes

import "github.com/trustwing/webauthn/protocol"

// Credential is the minimal {id, type} pair every PublicKeyCredential
// carries (§5.2.1).
type Credential struct {
	ID   string                  `json:"id"`
	Type protocol.CredentialType `json:"type"`
}

// PublicKeyCredential is the common envelope returned by both
// registration and authentication ceremonies (§5.2).
type PublicKeyCredential struct {
	Credential
	RawID      []byte                                  `json:"rawId"`
	Extensions *AuthenticationExtensionsClientOutputs `json:"extensions,omitempty"`
}

// AuthenticatorResponse is the base type both attestation and assertion
// responses extend (§5.2.1).
type AuthenticatorResponse struct {
	ClientDataJSON []byte `json:"clientDataJSON"`
}

// AuthenticatorAttestationResponse is returned from
// navigator.credentials.create() (§5.2.1).
type AuthenticatorAttestationResponse struct {
	AuthenticatorResponse
	AttestationObject []byte `json:"attestationObject"`
	// Transports reports getTransports(): the transports the authenticator
	// is believed to support, as a hint for future allowCredentials lists.
	// Absent or unrecognized values are carried through, not rejected.
	Transports []protocol.AuthenticatorTransport `json:"transports,omitempty"`
}

// AuthenticatorAssertionResponse is returned from
// navigator.credentials.get() (§5.2.2).
type AuthenticatorAssertionResponse struct {
	AuthenticatorResponse
	AuthenticatorData []byte `json:"authenticatorData"`
	Signature         []byte `json:"signature"`
	UserHandle        []byte `json:"userHandle,omitempty"`
}

// CredentialCreationResponse is the full registration ceremony response
// sent back to the relying party.
type CredentialCreationResponse struct {
	PublicKeyCredential
	AttestationResponse AuthenticatorAttestationResponse `json:"response"`
}

// CredentialAssertionResponse is the full authentication ceremony
// response sent back to the relying party.
type CredentialAssertionResponse struct {
	PublicKeyCredential
	AssertionResponse AuthenticatorAssertionResponse `json:"response"`
}

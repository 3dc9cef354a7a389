package webauthntypes

import (
	"github.com/gravitational/trace"

	"github.com/trustwing/webauthn/protocol"
)

// CredentialAssertion is the PublicKeyCredentialRequestOptions sent to
// the browser's navigator.credentials.get() call.
type CredentialAssertion struct {
	Response PublicKeyCredentialRequestOptions `json:"publicKey"`
}

// PublicKeyCredentialRequestOptions is defined by §5.5 of the
// specification.
type PublicKeyCredentialRequestOptions struct {
	Challenge          []byte                                `json:"challenge"`
	Timeout            int64                                 `json:"timeout,omitempty"`
	RelyingPartyID     string                                `json:"rpId,omitempty"`
	AllowedCredentials []CredentialDescriptor                `json:"allowCredentials,omitempty"`
	UserVerification   protocol.UserVerificationRequirement  `json:"userVerification,omitempty"`
	Extensions         *AuthenticationExtensionsClientInputs `json:"extensions,omitempty"`
}

// Validate checks CredentialAssertion for the structural requirements a
// verification flow depends on.
func (ca *CredentialAssertion) Validate() error {
	if ca == nil {
		return trace.BadParameter("assertion required")
	}
	if len(ca.Response.Challenge) == 0 {
		return trace.BadParameter("challenge required")
	}
	if ca.Response.RelyingPartyID == "" {
		return trace.BadParameter("relying party ID required")
	}
	return nil
}

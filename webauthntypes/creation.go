// Package webauthntypes defines the WebAuthn wire types exchanged between
// a relying party and a browser during registration and authentication
// ceremonies (§5 and §6 of the WebAuthn specification), along with the
// structural validation every inbound message must pass before a
// verification flow touches it.
package webauthntypes

import (
	"github.com/gravitational/trace"

	"github.com/trustwing/webauthn/protocol"
	"github.com/trustwing/webauthn/protocol/webauthncose"
)

// CredentialCreation is the PublicKeyCredentialCreationOptions sent to
// the browser's navigator.credentials.create() call, wrapped the way the
// WebAuthn JS API expects ("publicKey" response envelope).
type CredentialCreation struct {
	Response PublicKeyCredentialCreationOptions `json:"publicKey"`
}

// PublicKeyCredentialCreationOptions is defined by §5.4 of the
// specification.
type PublicKeyCredentialCreationOptions struct {
	Challenge              []byte                                  `json:"challenge"`
	RelyingParty           RelyingPartyEntity                      `json:"rp"`
	User                   UserEntity                              `json:"user"`
	Parameters             []CredentialParameter                   `json:"pubKeyCredParams"`
	Timeout                int64                                   `json:"timeout,omitempty"`
	CredentialExcludeList  []CredentialDescriptor                  `json:"excludeCredentials,omitempty"`
	AuthenticatorSelection AuthenticatorSelection                  `json:"authenticatorSelection,omitempty"`
	Attestation            protocol.AttestationConveyancePreference `json:"attestation,omitempty"`
	Extensions             *AuthenticationExtensionsClientInputs   `json:"extensions,omitempty"`
}

// CredentialEntity is the common shape of RelyingPartyEntity and
// UserEntity (§5.4.1).
type CredentialEntity struct {
	Name string `json:"name"`
}

// RelyingPartyEntity identifies the relying party (§5.4.2).
type RelyingPartyEntity struct {
	CredentialEntity
	ID string `json:"id"`
}

// UserEntity identifies the user account a credential is created for
// (§5.4.3).
type UserEntity struct {
	CredentialEntity
	ID          []byte `json:"id"`
	DisplayName string `json:"displayName"`
}

// CredentialParameter names one acceptable combination of credential
// type and public key algorithm (§5.3).
type CredentialParameter struct {
	Type      protocol.CredentialType `json:"type"`
	Algorithm webauthncose.Algorithm  `json:"alg"`
}

// AuthenticatorSelection lets the RP steer which authenticators may
// fulfil the ceremony (§5.4.4).
type AuthenticatorSelection struct {
	AuthenticatorAttachment protocol.AuthenticatorAttachment       `json:"authenticatorAttachment,omitempty"`
	ResidentKey             protocol.ResidentKeyRequirement         `json:"residentKey,omitempty"`
	RequireResidentKey      *bool                                   `json:"requireResidentKey,omitempty"`
	UserVerification        protocol.UserVerificationRequirement    `json:"userVerification,omitempty"`
}

// CredentialDescriptor identifies one existing credential, used in
// excludeCredentials and allowCredentials lists (§5.10.3).
type CredentialDescriptor struct {
	Type         protocol.CredentialType          `json:"type"`
	CredentialID []byte                           `json:"id"`
	Transports   []protocol.AuthenticatorTransport `json:"transports,omitempty"`
}

// Validate checks CredentialCreation for the structural requirements a
// verification flow depends on: presence of the fields needed to run the
// ceremony at all. It does not duplicate checks the attestation and
// authenticator-data decoders already make.
func (cc *CredentialCreation) Validate() error {
	if cc == nil {
		return trace.BadParameter("credential creation required")
	}
	r := cc.Response
	if len(r.Challenge) == 0 {
		return trace.BadParameter("challenge required")
	}
	if r.RelyingParty.ID == "" {
		return trace.BadParameter("relying party ID required")
	}
	if r.RelyingParty.Name == "" {
		return trace.BadParameter("relying party name required")
	}
	if r.User.Name == "" {
		return trace.BadParameter("user name required")
	}
	if r.User.DisplayName == "" {
		return trace.BadParameter("user display name required")
	}
	if len(r.User.ID) == 0 {
		return trace.BadParameter("user ID required")
	}
	if _, err := cc.RequireResidentKey(); err != nil {
		return trace.Wrap(err)
	}
	return nil
}

// RequireResidentKey reconciles the modern ResidentKey field with the
// legacy RequireResidentKey boolean (§5.4.4): when both are set they must
// agree, when only one is set it decides, and when neither is set a
// resident key isn't required.
func (cc *CredentialCreation) RequireResidentKey() (bool, error) {
	sel := cc.Response.AuthenticatorSelection
	if sel.ResidentKey == "" {
		if sel.RequireResidentKey == nil {
			return false, nil
		}
		return *sel.RequireResidentKey, nil
	}

	rk := sel.ResidentKey == protocol.ResidentKeyRequirementRequired
	if sel.RequireResidentKey != nil && *sel.RequireResidentKey != rk {
		return false, trace.BadParameter(
			"invalid combination of ResidentKey (%v) and RequireResidentKey (%v)",
			sel.ResidentKey, *sel.RequireResidentKey)
	}
	return rk, nil
}

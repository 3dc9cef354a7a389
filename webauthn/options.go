package webauthn

import (
	"crypto/rand"

	"github.com/gravitational/trace"

	"github.com/trustwing/webauthn/protocol"
	"github.com/trustwing/webauthn/webauthntypes"
)

// challengeSize is the byte length NewChallenge generates. The
// specification requires at least 16; this module follows the WebAuthn
// recommendation of 32.
const challengeSize = 32

// NewChallenge returns a fresh cryptographically random challenge, sized
// per §6. A PendingChallenges implementation's Insert calls this to
// produce the value it passes to its build callback; it is exported
// because allocating the challenge is ordinary domain logic, unlike the
// storage and TTL bookkeeping the core leaves to that collaborator.
func NewChallenge() ([]byte, error) {
	b := make([]byte, challengeSize)
	if _, err := rand.Read(b); err != nil {
		return nil, trace.Wrap(err, "generating challenge")
	}
	return b, nil
}

// CreationOptions is the caller-supplied subset of
// PublicKeyCredentialCreationOptions; everything else is filled in with
// the defaults §6 specifies.
type CreationOptions struct {
	RelyingParty           webauthntypes.RelyingPartyEntity
	User                   webauthntypes.UserEntity
	Parameters             []webauthntypes.CredentialParameter
	ExcludeCredentials     []webauthntypes.CredentialDescriptor
	RequireResidentKey     bool
	UserVerification       protocol.UserVerificationRequirement
	AuthenticatorSelection protocol.AuthenticatorAttachment
	Attestation            protocol.AttestationConveyancePreference
}

// BuildCreation returns the `Challenge -> Options` callback a
// PendingChallenges[*webauthntypes.CredentialCreation].Insert expects:
// given the challenge it allocates, assemble a CredentialCreation with
// every optional field defaulted per §6 (excludeCredentials defaults to
// an empty list, attestation to "none", residentKey derived from
// RequireResidentKey with requireResidentKey emitted alongside it only
// when a resident key is required, for legacy clients).
func BuildCreation(opts CreationOptions) func(challenge []byte) *webauthntypes.CredentialCreation {
	exclude := opts.ExcludeCredentials
	if exclude == nil {
		exclude = []webauthntypes.CredentialDescriptor{}
	}
	attestation := opts.Attestation
	if attestation == "" {
		attestation = protocol.PreferNoAttestation
	}

	residentKey := protocol.ResidentKeyRequirementDiscouraged
	var requireResidentKey *bool
	if opts.RequireResidentKey {
		residentKey = protocol.ResidentKeyRequirementRequired
		requireResidentKey = protocol.ResidentKeyRequired()
	}

	return func(challenge []byte) *webauthntypes.CredentialCreation {
		return &webauthntypes.CredentialCreation{
			Response: webauthntypes.PublicKeyCredentialCreationOptions{
				Challenge:             challenge,
				RelyingParty:          opts.RelyingParty,
				User:                  opts.User,
				Parameters:            opts.Parameters,
				CredentialExcludeList: exclude,
				AuthenticatorSelection: webauthntypes.AuthenticatorSelection{
					AuthenticatorAttachment: opts.AuthenticatorSelection,
					ResidentKey:             residentKey,
					RequireResidentKey:      requireResidentKey,
					UserVerification:        defaultVerification(opts.UserVerification),
				},
				Attestation: attestation,
			},
		}
	}
}

// AssertionOptions is the caller-supplied subset of
// PublicKeyCredentialRequestOptions.
type AssertionOptions struct {
	RelyingPartyID     string
	AllowedCredentials []webauthntypes.CredentialDescriptor
	UserVerification   protocol.UserVerificationRequirement
}

// BuildAssertion returns the `Challenge -> Options` callback a
// PendingChallenges[*webauthntypes.CredentialAssertion].Insert expects,
// defaulting allowCredentials to an empty list and userVerification to
// "preferred", per §6.
func BuildAssertion(opts AssertionOptions) func(challenge []byte) *webauthntypes.CredentialAssertion {
	allow := opts.AllowedCredentials
	if allow == nil {
		allow = []webauthntypes.CredentialDescriptor{}
	}

	return func(challenge []byte) *webauthntypes.CredentialAssertion {
		return &webauthntypes.CredentialAssertion{
			Response: webauthntypes.PublicKeyCredentialRequestOptions{
				Challenge:          challenge,
				RelyingPartyID:     opts.RelyingPartyID,
				AllowedCredentials: allow,
				UserVerification:   defaultVerification(opts.UserVerification),
			},
		}
	}
}

func defaultVerification(v protocol.UserVerificationRequirement) protocol.UserVerificationRequirement {
	if v == "" {
		return protocol.VerificationPreferred
	}
	return v
}

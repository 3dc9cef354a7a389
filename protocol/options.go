package protocol

// CredentialType is the value of a PublicKeyCredential's `type` field.
// WebAuthn defines exactly one credential type today; it remains an
// extensible string rather than a bool so a future type slots in without
// a wire-format change.
type CredentialType string

// PublicKeyCredentialType is the only credential type WebAuthn defines.
const PublicKeyCredentialType CredentialType = "public-key"

// AttestationConveyancePreference is the RP's preference for receiving
// attestation, carried in PublicKeyCredentialCreationOptions.attestation.
type AttestationConveyancePreference string

const (
	PreferNoAttestation         AttestationConveyancePreference = "none"
	PreferIndirectAttestation   AttestationConveyancePreference = "indirect"
	PreferDirectAttestation     AttestationConveyancePreference = "direct"
	PreferEnterpriseAttestation AttestationConveyancePreference = "enterprise"
)

// UserVerificationRequirement is the RP's requirement for user
// verification during a ceremony.
type UserVerificationRequirement string

const (
	VerificationRequired    UserVerificationRequirement = "required"
	VerificationPreferred   UserVerificationRequirement = "preferred"
	VerificationDiscouraged UserVerificationRequirement = "discouraged"
)

// ResidentKeyRequirement is the RP's requirement for a discoverable
// (resident) credential.
type ResidentKeyRequirement string

const (
	ResidentKeyRequirementDiscouraged ResidentKeyRequirement = "discouraged"
	ResidentKeyRequirementPreferred   ResidentKeyRequirement = "preferred"
	ResidentKeyRequirementRequired    ResidentKeyRequirement = "required"
)

// AuthenticatorAttachment restricts which class of authenticator may
// fulfil a ceremony.
type AuthenticatorAttachment string

const (
	Platform      AuthenticatorAttachment = "platform"
	CrossPlatform AuthenticatorAttachment = "cross-platform"
)

// AuthenticatorTransport names a channel a client may use to communicate
// with an authenticator. Values outside the ones WebAuthn currently
// defines are stored and round-tripped rather than rejected, since new
// transports (e.g. "hybrid") have shipped after the spec's transport
// enum was last revised.
type AuthenticatorTransport string

const (
	TransportUSB      AuthenticatorTransport = "usb"
	TransportNFC      AuthenticatorTransport = "nfc"
	TransportBLE      AuthenticatorTransport = "ble"
	TransportInternal AuthenticatorTransport = "internal"
	TransportHybrid   AuthenticatorTransport = "hybrid"
)

func boolPtr(b bool) *bool { return &b }

// ResidentKeyRequired returns a pointer to true, for populating the
// legacy requireResidentKey field alongside residentKey.
func ResidentKeyRequired() *bool { return boolPtr(true) }

// ResidentKeyNotRequired returns a pointer to false.
func ResidentKeyNotRequired() *bool { return boolPtr(false) }

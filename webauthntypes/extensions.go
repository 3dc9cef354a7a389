package webauthntypes

// CredPropsExtension is the "credProps" client extension identifier
// (§10.4), used by relying parties to learn whether a created credential
// is discoverable without waiting for the next authentication.
const CredPropsExtension = "credProps"

// AuthenticationExtensionsClientInputs carries extension inputs the
// relying party requests for a ceremony. It is an untyped map: every
// extension, credProps included, passes through untouched as opaque JSON,
// since this module verifies ceremonies, it does not implement every
// registered extension.
type AuthenticationExtensionsClientInputs map[string]any

// AuthenticationExtensionsClientOutputs carries extension outputs the
// client reports back. AppID and CredProps are its only fields; other
// extension outputs are dropped when the JSON is decoded. The
// verification flows do not read either field.
type AuthenticationExtensionsClientOutputs struct {
	AppID     bool                       `json:"appid,omitempty"`
	CredProps *CredentialPropertiesOutput `json:"credProps,omitempty"`
}

// CredentialPropertiesOutput is the credProps extension output (§10.4):
// whether the created credential is a discoverable (resident) credential.
type CredentialPropertiesOutput struct {
	ResidentKey bool `json:"rk"`
}

package webauthn

import (
	"bytes"
	"crypto/sha256"

	"github.com/trustwing/webauthn/attestation"
	"github.com/trustwing/webauthn/metadata"
	"github.com/trustwing/webauthn/protocol"
	"github.com/trustwing/webauthn/protocol/webauthncose"
	"github.com/trustwing/webauthn/webauthntypes"
)

// RegistrationFlow implements C4, the registration verifier. Formats and
// Registry are injected rather than constructed internally, so callers
// can restrict the accepted attestation formats or substitute a test
// registry without reaching into package internals.
type RegistrationFlow struct {
	Formats  *attestation.SupportedFormats
	Registry *metadata.Registry
}

// RegisterResponse bundles the inbound browser response with the options
// the ceremony was started with; Begin/pending-challenge bookkeeping is
// the caller's responsibility (§6's pending-challenge collaborator).
type RegisterResponse struct {
	Options  *webauthntypes.CredentialCreation
	Response *webauthntypes.CredentialCreationResponse
}

// Finish implements C4's contract: given the origin and relying party ID
// hash the caller expects, verify resp against options and return an
// AttestationResult or a non-empty ValidationErrors.
func (f *RegistrationFlow) Finish(origin string, rpIDHash [32]byte, resp RegisterResponse) (*AttestationResult, error) {
	var errs ValidationErrors

	if err := resp.Options.Validate(); err != nil {
		errs.Add(err)
		return nil, errs.AsError()
	}
	opts := resp.Options.Response
	cred := resp.Response

	clientData, err := protocol.DecodeClientData(cred.AttestationResponse.ClientDataJSON)
	if err != nil {
		errs.Add(err)
		return nil, errs.AsError()
	}
	if clientData.Type != protocol.CeremonyCreate {
		errs.Add(policyError(CodeClientDataType, "expected webauthn.create"))
	}
	if !bytes.Equal(clientData.Challenge, opts.Challenge) {
		errs.Add(policyError(CodeChallengeMismatch, ""))
	}
	if clientData.Origin != origin {
		errs.Add(policyError(CodeOriginMismatch, clientData.Origin))
	}

	attObj, err := protocol.DecodeAttestationObject(cred.AttestationResponse.AttestationObject)
	if err != nil {
		errs.Add(err)
		return nil, errs.AsError()
	}
	authData := attObj.AuthData

	if authData.RPIDHash != rpIDHash {
		errs.Add(policyError(CodeRPIDHashMismatch, ""))
	}
	if !authData.Flags.UserPresent() {
		errs.Add(policyError(CodeUserNotPresent, ""))
	}
	wantUV, err := requireUserVerification(opts.AuthenticatorSelection.UserVerification)
	if err != nil {
		errs.Add(err)
	} else if wantUV && !authData.Flags.UserVerified() {
		errs.Add(policyError(CodeUserNotVerified, ""))
	}
	if authData.AttestedCredentialData == nil {
		errs.Add(policyError(CodeAttestedCredentialDataMissing, ""))
		return nil, errs.AsError()
	}

	credKey, err := webauthncose.Decode(authData.AttestedCredentialData.PublicKeyBytes)
	var checkedKey *webauthncose.PublicKey
	if err != nil {
		errs.Add(err)
	} else {
		checkedKey, err = webauthncose.Check(credKey)
		if err != nil {
			errs.Add(err)
		}
	}
	if checkedKey != nil && !algorithmAllowed(checkedKey.Algorithm(), opts.Parameters) {
		errs.Add(policyError(CodeAlgorithmNotAllowed, checkedKey.Algorithm().String()))
	}

	if err := errs.AsError(); err != nil {
		return nil, err
	}

	clientDataHash := sha256.Sum256(clientData.RawBytes)
	chain, err := f.Formats.Verify(attObj.Format, &attestation.Input{
		AuthData:       authData,
		ClientDataHash: clientDataHash[:],
		AttStmtRaw:     attObj.AttStmtRaw,
		CredentialKey:  checkedKey,
	})
	if err != nil {
		errs.Add(err)
		return nil, errs.AsError()
	}

	trust := f.classifyTrust(attObj.Format, chain, authData.AttestedCredentialData)

	entry := CredentialEntry{
		ID:            authData.AttestedCredentialData.CredentialID,
		UserHandle:    resp.Options.Response.User.ID,
		PublicKeyCBOR: authData.AttestedCredentialData.RawPublicKeyBytes,
		SignCount:     authData.SignCount,
		Transports:    cred.AttestationResponse.Transports,
	}

	return &AttestationResult{CredentialEntry: entry, Trust: trust}, nil
}

func (f *RegistrationFlow) classifyTrust(format string, chain *attestation.Chain, acd *protocol.AttestedCredentialData) TrustResult {
	switch chain.Trust {
	case attestation.TrustSelf, attestation.TrustUncertain:
		return TrustResult{Kind: NotTrustworthy}
	}
	if f.Registry == nil || len(chain.Certs) == 0 {
		return TrustResult{Kind: UnknownTrust}
	}

	var entry *metadata.Entry
	var ok bool
	switch {
	case format == attestation.FormatFIDOU2F:
		// FIDO-U2F credentials carry no AAGUID; the registry indexes them
		// by the SHA-1 SubjectKeyIdentifier of the leaf attestation
		// certificate instead (§4.4 step 9).
		ski, err := attestation.U2FIdentifier(chain.Certs[0])
		if err != nil {
			return TrustResult{Kind: UnknownTrust}
		}
		entry, ok = f.Registry.LookupBySKI(ski)
	case chain.Trust == attestation.TrustBasicX5C || chain.Trust == attestation.TrustAttCAX5C || chain.Trust == attestation.TrustAnonCA:
		entry, ok = f.Registry.LookupByAAGUID(acd.AAGUID)
	}
	if !ok {
		return TrustResult{Kind: UnknownTrust}
	}

	root := chain.Certs[len(chain.Certs)-1]
	for _, candidate := range entry.AttestationRootCertificates {
		if bytes.Equal(candidate.Raw, root.Raw) {
			return TrustResult{Kind: Trusted, MetadataEntry: entry}
		}
	}
	return TrustResult{Kind: UnknownTrust}
}

func requireUserVerification(req protocol.UserVerificationRequirement) (bool, error) {
	switch req {
	case protocol.VerificationRequired:
		return true, nil
	case "", protocol.VerificationPreferred, protocol.VerificationDiscouraged:
		return false, nil
	default:
		return false, policyError(CodeUserNotVerified, "unknown userVerification requirement")
	}
}

func algorithmAllowed(alg webauthncose.Algorithm, params []webauthntypes.CredentialParameter) bool {
	if len(params) == 0 {
		return true
	}
	for _, p := range params {
		if p.Algorithm == alg {
			return true
		}
	}
	return false
}

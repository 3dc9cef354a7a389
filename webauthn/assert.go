package webauthn

import (
	"bytes"
	"crypto/sha256"

	"github.com/trustwing/webauthn/protocol"
	"github.com/trustwing/webauthn/protocol/webauthncose"
	"github.com/trustwing/webauthn/webauthntypes"
)

// AssertionFlow implements C5, the authentication verifier.
type AssertionFlow struct{}

// AssertResponse bundles the inbound assertion with the options it was
// issued against and the stored credential it claims to be.
type AssertResponse struct {
	Options *webauthntypes.CredentialAssertion
	// IdentifiedUser is the user handle the caller already knows the
	// ceremony is for, if any (e.g. a username was collected before the
	// assertion was requested). Nil when the ceremony is usernameless.
	IdentifiedUser []byte
	Credential     CredentialEntry
	Response       *webauthntypes.CredentialAssertionResponse
}

// Finish implements C5's contract: given the origin and relying party ID
// hash the caller expects, verify resp against options and the stored
// credential, returning a SignatureCounterResult or a non-empty
// ValidationErrors. It does not persist the updated counter; the caller
// does that after inspecting the result.
func (f *AssertionFlow) Finish(origin string, rpIDHash [32]byte, resp AssertResponse) (*SignatureCounterResult, error) {
	var errs ValidationErrors

	if err := resp.Options.Validate(); err != nil {
		errs.Add(err)
		return nil, errs.AsError()
	}
	opts := resp.Options.Response
	cred := resp.Response
	entry := resp.Credential

	if !credentialAllowed(cred.RawID, opts.AllowedCredentials) {
		errs.Add(policyError(CodeDisallowedCredential, ""))
	}
	if err := checkUserHandle(resp.IdentifiedUser, cred.AssertionResponse.UserHandle, entry.UserHandle); err != nil {
		errs.Add(err)
	}

	clientData, err := protocol.DecodeClientData(cred.AssertionResponse.ClientDataJSON)
	if err != nil {
		errs.Add(err)
		return nil, errs.AsError()
	}
	if clientData.Type != protocol.CeremonyGet {
		errs.Add(policyError(CodeClientDataType, "expected webauthn.get"))
	}
	if !bytes.Equal(clientData.Challenge, opts.Challenge) {
		errs.Add(policyError(CodeChallengeMismatch, ""))
	}
	if clientData.Origin != origin {
		errs.Add(policyError(CodeOriginMismatch, clientData.Origin))
	}

	authData, err := protocol.DecodeAuthenticatorData(cred.AssertionResponse.AuthenticatorData)
	if err != nil {
		errs.Add(err)
		return nil, errs.AsError()
	}
	if authData.RPIDHash != rpIDHash {
		errs.Add(policyError(CodeRPIDHashMismatch, ""))
	}
	if !authData.Flags.UserPresent() {
		errs.Add(policyError(CodeUserNotPresent, ""))
	}
	wantUV, err := requireUserVerification(opts.UserVerification)
	if err != nil {
		errs.Add(err)
	} else if wantUV && !authData.Flags.UserVerified() {
		errs.Add(policyError(CodeUserNotVerified, ""))
	}

	unchecked, err := webauthncose.Decode(entry.PublicKeyCBOR)
	var key *webauthncose.PublicKey
	if err != nil {
		errs.Add(err)
	} else {
		key, err = webauthncose.Check(unchecked)
		if err != nil {
			errs.Add(err)
		}
	}

	if err := errs.AsError(); err != nil {
		return nil, err
	}

	clientDataHash := sha256.Sum256(clientData.RawBytes)
	signedBytes := make([]byte, 0, len(cred.AssertionResponse.AuthenticatorData)+len(clientDataHash))
	signedBytes = append(signedBytes, cred.AssertionResponse.AuthenticatorData...)
	signedBytes = append(signedBytes, clientDataHash[:]...)

	if !webauthncose.Verify(key, signedBytes, cred.AssertionResponse.Signature) {
		errs.Add(&webauthncose.SignatureInvalidError{
			Key:       key,
			Message:   signedBytes,
			Signature: cred.AssertionResponse.Signature,
		})
		return nil, errs.AsError()
	}

	result := classifySignCount(entry.SignCount, authData.SignCount)
	return &result, nil
}

func credentialAllowed(rawID []byte, allowed []webauthntypes.CredentialDescriptor) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, c := range allowed {
		if bytes.Equal(c.CredentialID, rawID) {
			return true
		}
	}
	return false
}

// checkUserHandle reconciles the three possible sources of user identity
// (§4.5 step 2): a caller-identified user from a prior step, the
// authenticator-reported user handle, and the user handle the stored
// credential was registered under. The identified and authenticator-reported
// handles are each compared with the stored handle when both sides are
// present; they are not compared with each other. When neither the
// identified nor the reported handle is present, the check fails.
func checkUserHandle(identified, fromResponse, stored []byte) error {
	if len(identified) > 0 && len(stored) > 0 && !bytes.Equal(identified, stored) {
		return policyError(CodeIdentifiedUserHandleMismatch, "")
	}
	if len(fromResponse) > 0 && len(stored) > 0 && !bytes.Equal(fromResponse, stored) {
		return policyError(CodeCredentialUserHandleMismatch, "")
	}
	if len(identified) == 0 && len(fromResponse) == 0 {
		return policyError(CodeCannotVerifyUserHandle, "")
	}
	return nil
}

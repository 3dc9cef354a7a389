// Package webauthn orchestrates full registration and authentication
// ceremonies (§4.4 and §4.5 of the specification): binding inbound
// responses to the options that were issued, running every WebAuthn
// §7.1/§7.2 check, dispatching to the attestation registry, and
// classifying trust against the metadata registry.
package webauthn

import (
	"strings"
)

// PolicyError is one failed WebAuthn policy check (§7). It is always
// collected into a ValidationErrors rather than returned alone, so
// callers see every violation a malformed ceremony triggers, not just
// the first.
type PolicyError struct {
	// Code names the taxonomy variant, e.g. "ChallengeMismatch".
	Code   string
	Reason string
}

func (e *PolicyError) Error() string {
	if e.Reason == "" {
		return e.Code
	}
	return e.Code + ": " + e.Reason
}

func policyError(code, reason string) error {
	return &PolicyError{Code: code, Reason: reason}
}

// ValidationErrors accumulates every policy violation found while
// checking a single ceremony. A verifier returns one of these, never a
// single bare error, so tests (and callers) can assert on the full set.
type ValidationErrors struct {
	Errors []error
}

func (v *ValidationErrors) Error() string {
	msgs := make([]string, len(v.Errors))
	for i, err := range v.Errors {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Add appends err to the accumulator if it is non-nil.
func (v *ValidationErrors) Add(err error) {
	if err != nil {
		v.Errors = append(v.Errors, err)
	}
}

// AsError returns v as an error if it accumulated anything, nil
// otherwise. This is the single exit point every flow uses, so an empty
// accumulator never leaks out as a non-nil error.
func (v *ValidationErrors) AsError() error {
	if len(v.Errors) == 0 {
		return nil
	}
	return v
}

// Policy error codes, per §7's taxonomy.
const (
	CodeChallengeMismatch           = "ChallengeMismatch"
	CodeOriginMismatch              = "OriginMismatch"
	CodeRPIDHashMismatch            = "RpIdHashMismatch"
	CodeUserNotPresent              = "UserNotPresent"
	CodeUserNotVerified             = "UserNotVerified"
	CodeDisallowedCredential        = "DisallowedCredential"
	CodeIdentifiedUserHandleMismatch = "IdentifiedUserHandleMismatch"
	CodeCredentialUserHandleMismatch = "CredentialUserHandleMismatch"
	CodeCannotVerifyUserHandle       = "CannotVerifyUserHandle"
	CodeAlgorithmNotAllowed          = "AlgorithmNotAllowed"
	CodeClientDataType               = "ClientDataTypeMismatch"
	CodeAttestedCredentialDataMissing = "AttestedCredentialDataMissing"
)

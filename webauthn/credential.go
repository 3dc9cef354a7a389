package webauthn

import (
	"github.com/trustwing/webauthn/metadata"
	"github.com/trustwing/webauthn/protocol"
)

// CredentialEntry is everything a relying party needs to persist after a
// successful registration, and everything C5 needs to verify a later
// assertion (§4.4 step 10).
type CredentialEntry struct {
	ID         []byte
	UserHandle []byte
	// PublicKeyCBOR is the exact CBOR bytes of the credential's COSE key,
	// captured during decoding (§4.2) so re-verification never reparses a
	// re-encoded approximation of what the authenticator signed.
	PublicKeyCBOR []byte
	SignCount     uint32
	Transports    []protocol.AuthenticatorTransport
}

// TrustKind classifies how an attestation chain resolved against the
// metadata registry (§4.4 step 9).
type TrustKind int

const (
	// NotTrustworthy covers self attestation and "none": no external
	// trust claim was made, so none can be verified.
	NotTrustworthy TrustKind = iota
	// UnknownTrust means a certificate chain was presented but its root
	// does not match any metadata entry's attestationRootCertificates.
	UnknownTrust
	// Trusted means the chain's root matched a metadata entry.
	Trusted
)

func (k TrustKind) String() string {
	switch k {
	case NotTrustworthy:
		return "not-trustworthy"
	case UnknownTrust:
		return "unknown-trust"
	case Trusted:
		return "trusted"
	default:
		return "invalid"
	}
}

// TrustResult is the outcome of trust classification.
type TrustResult struct {
	Kind          TrustKind
	MetadataEntry *metadata.Entry
}

// AttestationResult is what C4 returns on a successful registration.
type AttestationResult struct {
	CredentialEntry CredentialEntry
	Trust           TrustResult
}

// SignatureCounterKind classifies a verified assertion's signature
// counter outcome (§4.5 step 8).
type SignatureCounterKind int

const (
	// CounterZero means both stored and received counters are zero: the
	// authenticator does not implement a counter.
	CounterZero SignatureCounterKind = iota
	// CounterUpdated means the received counter exceeds the stored one.
	CounterUpdated
	// CounterPotentiallyCloned means the received counter did not
	// advance. This is not a ceremony failure; the caller decides policy.
	CounterPotentiallyCloned
)

func (k SignatureCounterKind) String() string {
	switch k {
	case CounterZero:
		return "zero"
	case CounterUpdated:
		return "updated"
	case CounterPotentiallyCloned:
		return "potentially-cloned"
	default:
		return "invalid"
	}
}

// SignatureCounterResult is what C5 returns on a successful assertion.
type SignatureCounterResult struct {
	Kind     SignatureCounterKind
	Received uint32
}

func classifySignCount(stored, received uint32) SignatureCounterResult {
	switch {
	case stored == 0 && received == 0:
		return SignatureCounterResult{Kind: CounterZero}
	case received > stored:
		return SignatureCounterResult{Kind: CounterUpdated, Received: received}
	default:
		return SignatureCounterResult{Kind: CounterPotentiallyCloned, Received: received}
	}
}

package webauthn

// UnknownChallengeError is returned by a PendingChallenges implementation's
// Take when no pending ceremony matches the given challenge.
type UnknownChallengeError struct{}

func (*UnknownChallengeError) Error() string { return "unknown or already-consumed challenge" }

// ExpiredChallengeError is returned when a matching ceremony was found but
// its TTL has elapsed.
type ExpiredChallengeError struct{}

func (*ExpiredChallengeError) Error() string { return "challenge expired" }

// PendingChallenges is the §6 pending-challenge collaborator: the shared
// state that maps an in-flight ceremony's challenge to the options it was
// started with. The core does not implement or mandate a particular
// storage backend (in-memory map, Redis, a database row with a TTL
// column); callers supply one satisfying this interface. Options is
// typically webauthntypes.CredentialCreation or
// webauthntypes.CredentialAssertion.
type PendingChallenges[Options any] interface {
	// Insert allocates a fresh cryptographically random challenge
	// (>=16 bytes; 32 is recommended), passes it to build to produce the
	// options record, stores that record keyed by the challenge with an
	// implementation-defined TTL, and returns it.
	Insert(build func(challenge []byte) Options) (Options, error)

	// Take removes and returns the options stored under challenge, the
	// client-data challenge extracted from an inbound credential. It
	// returns *UnknownChallengeError if nothing matches, or
	// *ExpiredChallengeError if a match was found past its TTL. Either
	// way the entry is consumed: a challenge can only ever be taken once.
	Take(challenge []byte) (Options, error)
}

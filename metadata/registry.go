package metadata

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// Registry is a read-only, total mapping from authenticator identifier
// to metadata entry (§3). It is built once per fetch cycle and swapped
// in atomically, so registration verifications never observe a partially
// updated map and never block on a refresh in progress.
type Registry struct {
	ptr atomic.Pointer[map[string]*Entry]
}

// NewRegistry returns an empty, usable registry.
func NewRegistry() *Registry {
	r := &Registry{}
	empty := make(map[string]*Entry)
	r.ptr.Store(&empty)
	return r
}

// Lookup returns the entry for identifier, or (nil, false) if absent.
func (r *Registry) Lookup(identifier string) (*Entry, bool) {
	m := *r.ptr.Load()
	e, ok := m[identifier]
	return e, ok
}

// LookupByAAGUID is a convenience wrapper matching the AAGUID identifier
// shape authenticator data produces for FIDO2 credentials.
func (r *Registry) LookupByAAGUID(aaguid [16]byte) (*Entry, bool) {
	return r.Lookup(aaguidKey(aaguid))
}

// LookupBySKI is a convenience wrapper matching the SubjectKeyIdentifier
// shape FIDO-U2F attestation certificates produce.
func (r *Registry) LookupBySKI(ski [20]byte) (*Entry, bool) {
	return r.Lookup(skiKey(ski))
}

// Replace atomically swaps in a new set of entries, built from scratch by
// the caller (typically a Processor after a successful fetch).
func (r *Registry) Replace(entries []*Entry) {
	m := buildIndex(entries)
	r.ptr.Store(&m)
}

// buildIndex derives one or more identifier keys per entry (§4.7 step 4):
// AAGUID entries insert under that AAGUID; U2F entries insert once per
// SubjectKeyIdentifier they carry, so the entry is reachable under every
// one of them. Duplicate keys are last-writer-wins, keeping the
// registry's "at most one entry per identifier" contract. The overwrite
// is silent: no warning is logged and no count of conflicting keys is
// reported to the caller.
func buildIndex(entries []*Entry) map[string]*Entry {
	m := make(map[string]*Entry)
	for _, e := range entries {
		for _, key := range e.Identifiers() {
			m[key] = e
		}
	}
	return m
}

func aaguidKey(aaguid [16]byte) string {
	id := uuid.UUID(aaguid)
	return (&Entry{AAGUID: &id}).Identifiers()[0]
}

func skiKey(ski [20]byte) string {
	return (&Entry{SKIs: [][20]byte{ski}}).Identifiers()[0]
}

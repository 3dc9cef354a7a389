// Package metadata implements the FIDO Metadata Service (MDS) pipeline:
// decoding one MetadataBLOBPayloadEntry into an Entry (§4.6), verifying
// and parsing the signed MDS BLOB into a batch of entries (§4.7), and the
// read-only registry that the registration flow consults for trust
// classification.
package metadata

import (
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
	"github.com/gravitational/trace"
)

// AttestationType is the subset of FIDO MDS AuthenticatorAttestationType
// values this module treats as WebAuthn-compatible (§3).
type AttestationType string

const (
	AttestationBasicFull AttestationType = "basic_full"
	AttestationAttCA     AttestationType = "attca"

	// attestationBasicSurrogate entries carry no X.509 trust chain and are
	// not WebAuthn-compatible; recognizing the identifier lets the decoder
	// distinguish "unsupported type" from "unparseable".
	attestationBasicSurrogate = "basic_surrogate"
	attestationECDAA          = "ecdaa"
)

// Entry is a decoded, WebAuthn-relevant slice of a MetadataBLOBPayloadEntry
// (§3): enough to classify an attestation chain's trust and nothing else.
type Entry struct {
	// AAGUID (FIDO2) or SKIs (FIDO-U2F, one per
	// attestationCertificateKeyIdentifiers entry) identify the
	// authenticator; exactly one of AAGUID/SKIs is set, matching the
	// "exactly one variant" invariant. A U2F entry may list more than one
	// SubjectKeyIdentifier and must be reachable under every one of them
	// (§4.7 step 4).
	AAGUID *uuid.UUID
	SKIs   [][20]byte

	Description                 string
	AttestationRootCertificates []*x509.Certificate
	AttestationTypes            []AttestationType
}

// Identifiers returns the string keys suitable for registry storage and
// lookup: a single-element slice for an AAGUID entry, or one element per
// SubjectKeyIdentifier for a U2F entry.
func (e *Entry) Identifiers() []string {
	if e.AAGUID != nil {
		return []string{"aaguid:" + e.AAGUID.String()}
	}
	if len(e.SKIs) > 0 {
		keys := make([]string, len(e.SKIs))
		for i, ski := range e.SKIs {
			keys[i] = "ski:" + hex.EncodeToString(ski[:])
		}
		return keys
	}
	return nil
}

// rawEntry mirrors the JSON shape of a single MetadataBLOBPayloadEntry,
// trimmed to the fields this module reads.
type rawEntry struct {
	AAGUID                           string           `json:"aaguid,omitempty"`
	AttestationCertificateKeyIdentifiers []string     `json:"attestationCertificateKeyIdentifiers,omitempty"`
	MetadataStatement                *rawStatement    `json:"metadataStatement,omitempty"`
}

type rawStatement struct {
	Description          string   `json:"description"`
	AttestationTypes     []string `json:"attestationTypes"`
	AttestationRootCerts []string `json:"attestationRootCertificates"`
	Schema               int      `json:"schema"`
}

// DecodeOutcome is the three-state per-entry result of decoding (§4.6):
// an error, a skip (no WebAuthn-compatible attestation type), or an
// entry.
type DecodeOutcome struct {
	Entry   *Entry
	Skipped bool
}

// Decoder decodes MetadataBLOBPayloadEntry JSON into Entry values.
// Strict controls base64 decoding leniency for attestation root
// certificates: real-world MDS blobs have shipped non-padded,
// whitespace-containing base64 there, a documented spec violation.
// Strict=false (the default a Processor uses) tolerates it; Strict=true
// rejects it, for deployments that would rather fail closed. Icons are
// not read or decoded at all.
type Decoder struct {
	Strict bool
}

// DecodeEntry implements C6's per-entry decoding.
func (d *Decoder) DecodeEntry(raw rawEntry) (DecodeOutcome, error) {
	if raw.MetadataStatement == nil {
		return DecodeOutcome{}, trace.BadParameter("entry missing metadataStatement")
	}
	stmt := raw.MetadataStatement
	if stmt.Schema != 3 {
		return DecodeOutcome{}, trace.BadParameter("unsupported metadata schema version %d", stmt.Schema)
	}

	entry := &Entry{Description: stmt.Description}

	switch {
	case raw.AAGUID != "":
		id, err := uuid.Parse(raw.AAGUID)
		if err != nil {
			return DecodeOutcome{}, trace.Wrap(err, "parsing aaguid")
		}
		entry.AAGUID = &id
	case len(raw.AttestationCertificateKeyIdentifiers) > 0:
		skis := make([][20]byte, 0, len(raw.AttestationCertificateKeyIdentifiers))
		for _, hexStr := range raw.AttestationCertificateKeyIdentifiers {
			ski, err := decodeSKI(hexStr)
			if err != nil {
				return DecodeOutcome{}, trace.Wrap(err, "parsing attestationCertificateKeyIdentifiers")
			}
			skis = append(skis, ski)
		}
		entry.SKIs = skis
	default:
		return DecodeOutcome{}, trace.BadParameter("entry has neither aaguid nor attestationCertificateKeyIdentifiers")
	}

	for _, t := range stmt.AttestationTypes {
		switch strings.ToLower(t) {
		case string(AttestationBasicFull), "tag_attestation_basic_full":
			entry.AttestationTypes = append(entry.AttestationTypes, AttestationBasicFull)
		case string(AttestationAttCA), "tag_attestation_attca":
			entry.AttestationTypes = append(entry.AttestationTypes, AttestationAttCA)
		case attestationBasicSurrogate, attestationECDAA:
			// Not WebAuthn-compatible; ignored rather than erroring so a
			// mixed list with at least one compatible type still decodes.
		}
	}
	if len(entry.AttestationTypes) == 0 {
		return DecodeOutcome{Skipped: true}, nil
	}

	for _, certB64 := range stmt.AttestationRootCerts {
		der, err := d.decodeBase64(certB64)
		if err != nil {
			return DecodeOutcome{}, trace.Wrap(err, "decoding attestation root certificate")
		}
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return DecodeOutcome{}, trace.Wrap(err, "parsing attestation root certificate")
		}
		entry.AttestationRootCertificates = append(entry.AttestationRootCertificates, cert)
	}

	return DecodeOutcome{Entry: entry}, nil
}

func (d *Decoder) decodeBase64(s string) ([]byte, error) {
	if d.Strict {
		return base64.StdEncoding.DecodeString(s)
	}
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n':
			return -1
		default:
			return r
		}
	}, s)
	if b, err := base64.StdEncoding.DecodeString(cleaned); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(cleaned, "="))
}

func decodeSKI(hexStr string) ([20]byte, error) {
	var ski [20]byte
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		return ski, err
	}
	if len(b) != 20 {
		return ski, trace.BadParameter("subject key identifier must be 20 bytes, got %d", len(b))
	}
	copy(ski[:], b)
	return ski, nil
}

package metadata

import (
	"crypto/x509"
	"encoding/json"
	"time"

	josejwt "github.com/go-jose/go-jose/v4"
	"github.com/gravitational/trace"
)

// BlobPayload mirrors the fields of a MetadataBLOBPayload this module
// reads (§4.7 step 2).
type BlobPayload struct {
	LegalHeader string     `json:"legalHeader,omitempty"`
	Number      int        `json:"no"`
	NextUpdate  string     `json:"nextUpdate"`
	Entries     []rawEntry `json:"entries"`
}

// BatchOutcome is the three-state result of processing one MDS blob
// (§4.7 step 3): all entries failed, all succeeded, or a mix. Each state
// is represented by which of Errors/Registry-building Entries is
// populated, rather than a three-way tagged union, since Go has no sum
// types; callers branch on len(Errors)/len(Entries) the same way the
// spec's This/That/These would.
type BatchOutcome struct {
	Entries    []*Entry
	Errors     []error
	NextUpdate string
}

// AllFailed reports the "This errors" outcome: entries existed but none
// decoded.
func (b *BatchOutcome) AllFailed() bool {
	return len(b.Entries) == 0 && len(b.Errors) > 0
}

// AllSucceeded reports the "That registry" outcome.
func (b *BatchOutcome) AllSucceeded() bool {
	return len(b.Errors) == 0
}

// Processor verifies and decodes a fetched MDS blob end to end.
type Processor struct {
	// Roots are the trust anchors a blob's JWS signing chain must chain
	// to; production deployments pin this to the FIDO Alliance MDS3 root.
	Roots *x509.CertPool
	// ExpectedCommonName is the Subject common name the blob's leaf
	// signing certificate must carry (mds.fidoalliance.org in production).
	ExpectedCommonName string
	Decoder            Decoder
}

// NewProcessor returns a Processor rooted at roots and constrained to
// commonName.
func NewProcessor(roots *x509.CertPool, commonName string) *Processor {
	return &Processor{Roots: roots, ExpectedCommonName: commonName}
}

// ProcessBlob implements C7 steps 1-3: verify the JWS, parse the
// payload, decode every entry.
func (p *Processor) ProcessBlob(blob []byte, now time.Time) (*BatchOutcome, error) {
	payload, err := p.verifyAndParse(blob, now)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	out := &BatchOutcome{NextUpdate: payload.NextUpdate}
	for i, raw := range payload.Entries {
		outcome, err := p.Decoder.DecodeEntry(raw)
		if err != nil {
			out.Errors = append(out.Errors, trace.Wrap(err, "entry %d", i))
			continue
		}
		if outcome.Skipped {
			continue
		}
		out.Entries = append(out.Entries, outcome.Entry)
	}
	return out, nil
}

func (p *Processor) verifyAndParse(blob []byte, now time.Time) (*BlobPayload, error) {
	sig, err := josejwt.ParseSigned(string(blob), []josejwt.SignatureAlgorithm{
		josejwt.RS256, josejwt.ES256,
	})
	if err != nil {
		return nil, trace.Wrap(err, "parsing MDS JWS")
	}
	if len(sig.Signatures) != 1 {
		return nil, trace.BadParameter("MDS JWS must have exactly one signature")
	}
	header := sig.Signatures[0].Header
	if len(header.Certificates) == 0 {
		return nil, trace.BadParameter("MDS JWS header missing x5c")
	}
	leaf := header.Certificates[0]

	if err := p.verifyChain(header.Certificates, now); err != nil {
		return nil, trace.Wrap(err, "verifying MDS signing chain")
	}

	payloadBytes, err := sig.Verify(leaf.PublicKey)
	if err != nil {
		return nil, trace.Wrap(err, "verifying MDS JWS signature")
	}

	var payload BlobPayload
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		return nil, trace.Wrap(err, "decoding MDS payload")
	}
	return &payload, nil
}

func (p *Processor) verifyChain(chain []*x509.Certificate, now time.Time) error {
	if p.Roots == nil {
		return trace.BadParameter("no trust roots configured")
	}
	leaf := chain[0]
	intermediates := x509.NewCertPool()
	for _, cert := range chain[1:] {
		intermediates.AddCert(cert)
	}
	opts := x509.VerifyOptions{
		Roots:         p.Roots,
		Intermediates: intermediates,
		CurrentTime:   now,
	}
	if _, err := leaf.Verify(opts); err != nil {
		return err
	}
	if p.ExpectedCommonName != "" && leaf.Subject.CommonName != p.ExpectedCommonName {
		return trace.BadParameter("MDS signing certificate common name %q does not match %q", leaf.Subject.CommonName, p.ExpectedCommonName)
	}
	return nil
}

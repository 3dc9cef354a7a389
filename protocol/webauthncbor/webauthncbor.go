// Package webauthncbor wraps github.com/fxamacker/cbor/v2 with the encode
// and decode modes used throughout the WebAuthn wire formats (CTAP2
// canonical CBOR). Centralizing the modes here keeps every decode call
// in the codebase byte-for-byte consistent with the signed data the
// authenticator produced.
package webauthncbor

import (
	"bytes"

	"github.com/fxamacker/cbor/v2"
)

// RawMessage is a raw encoded CBOR value, preserved verbatim. Attestation
// statements and COSE keys are decoded into typed structs for inspection,
// but the exact bytes captured here are what gets hashed and verified, so
// they must never be produced by re-encoding a typed value.
type RawMessage = cbor.RawMessage

var (
	decMode = mustDecMode()
	encMode = mustEncMode()
)

func mustDecMode() cbor.DecMode {
	opts := cbor.DecOptions{
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
		IndefLength:      cbor.IndefLengthForbidden,
		MaxNestedLevels:  16,
		MaxArrayElements: 1024,
		MaxMapPairs:      1024,
	}
	mode, err := opts.DecMode()
	if err != nil {
		panic(err)
	}
	return mode
}

func mustEncMode() cbor.EncMode {
	opts := cbor.CTAP2EncOptions()
	mode, err := opts.EncMode()
	if err != nil {
		panic(err)
	}
	return mode
}

// Unmarshal decodes CTAP2-canonical CBOR data into v, the same way an
// authenticator's response is decoded everywhere in this module.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Marshal encodes v as CTAP2-canonical CBOR. Used only for test fixtures
// and for re-encoding values that were never byte-preserved in the first
// place (§8 round-trip properties apply to decode(encode(x)), not the
// reverse, for client-data; for CBOR-bearing structures both directions
// must hold for well-formed input).
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// SequenceDecoder decodes back-to-back CBOR items from a single buffer
// (for example the credential public key immediately followed by
// extensions within authenticator data) while reporting how many bytes
// each item consumed, so the exact byte span of each item can be
// preserved for later re-verification.
type SequenceDecoder struct {
	r   *bytes.Reader
	dec *cbor.Decoder
}

// NewSequenceDecoder wraps data for sequential decoding.
func NewSequenceDecoder(data []byte) *SequenceDecoder {
	r := bytes.NewReader(data)
	return &SequenceDecoder{r: r, dec: decMode.NewDecoder(r)}
}

// Decode reads the next CBOR item into v and returns the raw bytes that
// made up that item.
func (d *SequenceDecoder) Decode(v any) (raw []byte, err error) {
	// The cbor.Decoder reads ahead from d.r, so the reader's position says
	// nothing about item boundaries; the decoder's own count of consumed
	// bytes does.
	start := d.dec.NumBytesRead()
	if err := d.dec.Decode(v); err != nil {
		return nil, err
	}
	end := d.dec.NumBytesRead()

	full := make([]byte, d.r.Size())
	if _, err := d.r.ReadAt(full, 0); err != nil {
		return nil, err
	}
	return full[start:end], nil
}

// Rest returns the remaining undecoded bytes.
func (d *SequenceDecoder) Rest() []byte {
	full := make([]byte, d.r.Size())
	_, _ = d.r.ReadAt(full, 0)
	return full[d.dec.NumBytesRead():]
}

// Done reports whether the full buffer has been consumed.
func (d *SequenceDecoder) Done() bool {
	return int64(d.dec.NumBytesRead()) == d.r.Size()
}

package attestation

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/sha1" //nolint:gosec // TPM_ALG_SHA1 is a legal nameAlg/hash choice for older TPMs, not a signing algorithm here.
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"encoding/asn1"
	"encoding/binary"
	"errors"
	"hash"

	"github.com/gravitational/trace"

	"github.com/trustwing/webauthn/protocol/webauthncbor"
	"github.com/trustwing/webauthn/protocol/webauthncose"
)

// TPM 2.0 structure constants (TPMv2-Part2 §6, §12).
const (
	tpmGeneratedValue  = 0xff544347
	tpmStAttestCertify = 0x8017

	tpmAlgRSA    = 0x0001
	tpmAlgSHA1   = 0x0004
	tpmAlgSHA256 = 0x000b
	tpmAlgSHA384 = 0x000c
	tpmAlgSHA512 = 0x000d
	tpmAlgNull   = 0x0010
	tpmAlgECC    = 0x0023

	tpmECCNistP256 = 0x0003
	tpmECCNistP384 = 0x0004
	tpmECCNistP521 = 0x0005
)

var (
	tcgKpAIKCertificate = asn1.ObjectIdentifier{2, 23, 133, 8, 3}
	oidExtendedKeyUsage = asn1.ObjectIdentifier{2, 5, 29, 37}
)

type tpmStatement struct {
	Ver      string                    `cbor:"ver"`
	Alg      int64                     `cbor:"alg"`
	Sig      []byte                    `cbor:"sig"`
	CertInfo []byte                    `cbor:"certInfo"`
	PubArea  []byte                    `cbor:"pubArea"`
	X5C      []webauthncbor.RawMessage `cbor:"x5c"`
}

// tpmsAttest holds the fields of a TPMv2-Part2 §10.12.8 TPMS_ATTEST
// structure relevant to certifying a key, parsed out of certInfo.
type tpmsAttest struct {
	ExtraData     []byte
	CertifiedName []byte
}

// tpmtPublic holds the fields of a TPMv2-Part2 §12.2.4 TPMT_PUBLIC
// structure relevant to cross-checking against credentialPublicKey,
// parsed out of pubArea.
type tpmtPublic struct {
	Type    uint16
	NameAlg uint16
	Raw     []byte

	Modulus  []byte
	Exponent uint32

	CurveID uint16
	X, Y    []byte
}

// verifyTPM implements the "tpm" attestation statement format (§8.3):
// certInfo is a TPMS_ATTEST structure signed by the attestation identity
// key (AIK) in x5c, binding a name derived from pubArea and an extraData
// hash of authData||clientDataHash.
func verifyTPM(in *Input) (*Chain, error) {
	var stmt tpmStatement
	if err := webauthncbor.Unmarshal(in.AttStmtRaw, &stmt); err != nil {
		return nil, newStatementError(FormatTPM, "decoding attStmt: %v", err)
	}
	if stmt.Ver != "2.0" {
		return nil, newStatementError(FormatTPM, "unsupported TPM version %q", stmt.Ver)
	}
	if len(stmt.X5C) == 0 {
		return nil, newStatementError(FormatTPM, "ecdaaKeyId attestation is not supported; x5c is required")
	}
	chain, err := decodeX5C(stmt.X5C)
	if err != nil {
		return nil, newStatementError(FormatTPM, "decoding x5c: %v", err)
	}
	aik := chain[0]

	pub, err := parseTPMTPublic(stmt.PubArea)
	if err != nil {
		return nil, newStatementError(FormatTPM, "decoding pubArea: %v", err)
	}
	if err := checkPubAreaMatchesCredentialKey(pub, in.CredentialKey.Std()); err != nil {
		return nil, newStatementError(FormatTPM, "%v", err)
	}

	attest, err := parseTPMSAttest(stmt.CertInfo)
	if err != nil {
		return nil, newStatementError(FormatTPM, "decoding certInfo: %v", err)
	}

	alg := webauthncose.Algorithm(stmt.Alg)
	ch := alg.CryptoHash()
	if !ch.Available() {
		return nil, newStatementError(FormatTPM, "unsupported attStmt alg %s", alg)
	}
	h := ch.New()
	h.Write(in.SignedBytes())
	digest := h.Sum(nil)
	if !bytes.Equal(attest.ExtraData, digest) {
		return nil, newStatementError(FormatTPM, "certInfo extraData does not match hash of authData||clientDataHash")
	}

	nameDigest, err := hashWithTPMAlg(pub.NameAlg, pub.Raw)
	if err != nil {
		return nil, newStatementError(FormatTPM, "%v", err)
	}
	wantName := append(uint16Bytes(pub.NameAlg), nameDigest...)
	if !bytes.Equal(attest.CertifiedName, wantName) {
		return nil, newStatementError(FormatTPM, "certInfo attested name does not match pubArea")
	}

	if err := aik.CheckSignature(aik.SignatureAlgorithm, stmt.CertInfo, stmt.Sig); err != nil {
		return nil, newStatementError(FormatTPM, "signature verification failed: %v", err)
	}

	if err := checkAIKCertificate(aik); err != nil {
		return nil, newStatementError(FormatTPM, "%v", err)
	}

	return &Chain{Trust: TrustBasicX5C, Certs: chain}, nil
}

func checkPubAreaMatchesCredentialKey(pub *tpmtPublic, std any) error {
	switch k := std.(type) {
	case *ecdsa.PublicKey:
		if pub.Type != tpmAlgECC {
			return trace.BadParameter("pubArea type is not ECC but credential key is")
		}
		if tpmCurveID(k.Curve) != pub.CurveID {
			return trace.BadParameter("pubArea curve does not match credential key curve")
		}
		size := (k.Curve.Params().BitSize + 7) / 8
		xb := make([]byte, size)
		yb := make([]byte, size)
		k.X.FillBytes(xb)
		k.Y.FillBytes(yb)
		if !bytes.Equal(pub.X, xb) || !bytes.Equal(pub.Y, yb) {
			return trace.BadParameter("pubArea EC point does not match credential key")
		}
		return nil
	case *rsa.PublicKey:
		if pub.Type != tpmAlgRSA {
			return trace.BadParameter("pubArea type is not RSA but credential key is")
		}
		if !bytes.Equal(pub.Modulus, k.N.Bytes()) || pub.Exponent != uint32(k.E) {
			return trace.BadParameter("pubArea RSA parameters do not match credential key")
		}
		return nil
	default:
		return trace.BadParameter("unsupported credential key type for pubArea cross-check")
	}
}

func tpmCurveID(c elliptic.Curve) uint16 {
	switch c {
	case elliptic.P256():
		return tpmECCNistP256
	case elliptic.P384():
		return tpmECCNistP384
	case elliptic.P521():
		return tpmECCNistP521
	default:
		return 0
	}
}

func hashWithTPMAlg(alg uint16, data []byte) ([]byte, error) {
	var h hash.Hash
	switch alg {
	case tpmAlgSHA1:
		h = sha1.New() //nolint:gosec
	case tpmAlgSHA256:
		h = sha256.New()
	case tpmAlgSHA384:
		h = sha512.New384()
	case tpmAlgSHA512:
		h = sha512.New()
	default:
		return nil, trace.BadParameter("unsupported TPM hash algorithm 0x%04x", alg)
	}
	h.Write(data)
	return h.Sum(nil), nil
}

func uint16Bytes(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

// tpmCursor is a minimal big-endian binary reader over a TPM structure
// buffer; TPM 2.0 wire structures are hand-rolled big-endian TLV-ish
// records (TPMv2-Part1 §16), not covered by any general-purpose decoder.
type tpmCursor struct {
	b   []byte
	off int
}

func (c *tpmCursor) u16() (uint16, error) {
	if len(c.b)-c.off < 2 {
		return 0, errors.New("truncated TPM structure")
	}
	v := binary.BigEndian.Uint16(c.b[c.off:])
	c.off += 2
	return v, nil
}

func (c *tpmCursor) u32() (uint32, error) {
	if len(c.b)-c.off < 4 {
		return 0, errors.New("truncated TPM structure")
	}
	v := binary.BigEndian.Uint32(c.b[c.off:])
	c.off += 4
	return v, nil
}

func (c *tpmCursor) u64() (uint64, error) {
	if len(c.b)-c.off < 8 {
		return 0, errors.New("truncated TPM structure")
	}
	v := binary.BigEndian.Uint64(c.b[c.off:])
	c.off += 8
	return v, nil
}

func (c *tpmCursor) bytes(n int) ([]byte, error) {
	if len(c.b)-c.off < n {
		return nil, errors.New("truncated TPM structure")
	}
	v := c.b[c.off : c.off+n]
	c.off += n
	return v, nil
}

// sizedBuf reads a TPM2B_* structure: a 2-byte big-endian length prefix
// followed by that many bytes.
func (c *tpmCursor) sizedBuf() ([]byte, error) {
	n, err := c.u16()
	if err != nil {
		return nil, err
	}
	return c.bytes(int(n))
}

// parseTPMSAttest parses the fixed-layout prefix of a TPMS_ATTEST
// structure (TPMv2-Part2 §10.12.8) followed by its TPMS_CERTIFY_INFO
// attested union member (§10.12.3), which is all the "tpm" attestation
// format needs.
func parseTPMSAttest(data []byte) (*tpmsAttest, error) {
	c := &tpmCursor{b: data}

	magic, err := c.u32()
	if err != nil {
		return nil, err
	}
	if magic != tpmGeneratedValue {
		return nil, trace.BadParameter("certInfo magic is not TPM_GENERATED_VALUE")
	}

	typ, err := c.u16()
	if err != nil {
		return nil, err
	}
	if typ != tpmStAttestCertify {
		return nil, trace.BadParameter("certInfo type is not TPM_ST_ATTEST_CERTIFY")
	}

	if _, err := c.sizedBuf(); err != nil { // qualifiedSigner
		return nil, err
	}
	extraData, err := c.sizedBuf()
	if err != nil {
		return nil, err
	}
	// TPMS_CLOCK_INFO: clock(8) + resetCount(4) + restartCount(4) + safe(1).
	if _, err := c.bytes(17); err != nil {
		return nil, trace.Wrap(err, "clockInfo")
	}
	if _, err := c.u64(); err != nil { // firmwareVersion
		return nil, err
	}

	// TPMS_CERTIFY_INFO: name, qualifiedName (both TPM2B_NAME).
	name, err := c.sizedBuf()
	if err != nil {
		return nil, err
	}

	return &tpmsAttest{ExtraData: extraData, CertifiedName: name}, nil
}

// parseTPMTPublic parses a TPMT_PUBLIC structure (TPMv2-Part2 §12.2.4)
// for the RSA and ECC object types; no other TPM key types are used by
// any known WebAuthn authenticator.
func parseTPMTPublic(data []byte) (*tpmtPublic, error) {
	c := &tpmCursor{b: data}

	typ, err := c.u16()
	if err != nil {
		return nil, err
	}
	nameAlg, err := c.u16()
	if err != nil {
		return nil, err
	}
	if _, err := c.u32(); err != nil { // objectAttributes
		return nil, err
	}
	if _, err := c.sizedBuf(); err != nil { // authPolicy
		return nil, err
	}

	pub := &tpmtPublic{Type: typ, NameAlg: nameAlg, Raw: data}

	switch typ {
	case tpmAlgRSA:
		if err := skipSymmetricAndScheme(c); err != nil {
			return nil, err
		}
		keyBits, err := c.u16()
		if err != nil {
			return nil, err
		}
		exponent, err := c.u32()
		if err != nil {
			return nil, err
		}
		if exponent == 0 {
			exponent = 65537 // TPM convention: 0 means the default RSA exponent.
		}
		_ = keyBits
		modulus, err := c.sizedBuf()
		if err != nil {
			return nil, err
		}
		pub.Modulus = modulus
		pub.Exponent = exponent

	case tpmAlgECC:
		if err := skipSymmetricAndScheme(c); err != nil {
			return nil, err
		}
		curveID, err := c.u16()
		if err != nil {
			return nil, err
		}
		if err := skipSchemeField(c); err != nil { // kdf
			return nil, err
		}
		x, err := c.sizedBuf()
		if err != nil {
			return nil, err
		}
		y, err := c.sizedBuf()
		if err != nil {
			return nil, err
		}
		pub.CurveID = curveID
		pub.X = x
		pub.Y = y

	default:
		return nil, trace.BadParameter("unsupported TPMT_PUBLIC type 0x%04x", typ)
	}

	return pub, nil
}

// skipSymmetricAndScheme consumes a TPMT_SYM_DEF_OBJECT followed by a
// scheme union, both of which use the "algorithm identifier, then
// algorithm-specific fields (absent when TPM_ALG_NULL)" shape.
func skipSymmetricAndScheme(c *tpmCursor) error {
	// symmetric: a non-NULL TPMT_SYM_DEF_OBJECT carries keyBits and mode,
	// two 2-byte fields.
	alg, err := c.u16()
	if err != nil {
		return err
	}
	if alg != tpmAlgNull {
		if _, err := c.bytes(4); err != nil {
			return err
		}
	}
	return skipSchemeField(c) // scheme
}

// skipSchemeField consumes a TPMT_*_SCHEME-shaped union: a 2-byte
// algorithm identifier, followed by a 2-byte hash algorithm identifier
// unless the algorithm is TPM_ALG_NULL.
func skipSchemeField(c *tpmCursor) error {
	alg, err := c.u16()
	if err != nil {
		return err
	}
	if alg == tpmAlgNull {
		return nil
	}
	_, err = c.u16()
	return err
}

// checkAIKCertificate verifies the AIK certificate requirements of
// §8.3.1: version 3, empty subject, CA false, and the tcg-kp-AIKCertificate
// extended key usage OID present.
func checkAIKCertificate(aik *x509.Certificate) error {
	if aik.Version != 3 {
		return trace.BadParameter("AIK certificate version must be 3")
	}
	if aik.Subject.String() != "" {
		return trace.BadParameter("AIK certificate subject must be empty")
	}
	if aik.IsCA {
		return trace.BadParameter("AIK certificate must not be a CA")
	}

	var ekuFound bool
	for _, ext := range aik.Extensions {
		if !ext.Id.Equal(oidExtendedKeyUsage) {
			continue
		}
		var eku []asn1.ObjectIdentifier
		if rest, err := asn1.Unmarshal(ext.Value, &eku); err != nil || len(rest) != 0 {
			return trace.BadParameter("AIK certificate EKU extension malformed")
		}
		for _, oid := range eku {
			if oid.Equal(tcgKpAIKCertificate) {
				ekuFound = true
			}
		}
	}
	if !ekuFound {
		return trace.BadParameter("AIK certificate missing tcg-kp-AIKCertificate EKU")
	}

	return nil
}

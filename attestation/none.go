package attestation

// verifyNone implements the "none" attestation statement format: the
// statement must be an empty CBOR map, and no trust is asserted.
//
// https://www.w3.org/TR/webauthn-3/#sctn-none-attestation
func verifyNone(in *Input) (*Chain, error) {
	// CTAP2 canonical CBOR for an empty map is a single byte: 0xa0.
	if len(in.AttStmtRaw) != 1 || in.AttStmtRaw[0] != 0xa0 {
		return nil, newStatementError(FormatNone, "attStmt must be an empty map")
	}
	return &Chain{Trust: TrustUncertain}, nil
}

package webauthn

import (
	"net/url"
	"strings"

	"github.com/gravitational/trace"
)

// ValidateOrigin checks that origin is a well-formed URL whose host is
// either exactly rpID or a subdomain of it. Flows compare clientData's
// origin against the exact origin they issued options for (§4.4 step 3);
// ValidateOrigin exists alongside that exact-match check as a looser
// helper for callers that accept any origin under their relying party's
// effective domain (common for multi-subdomain deployments).
func ValidateOrigin(origin, rpID string) error {
	if origin == "" {
		return trace.BadParameter("origin is empty")
	}
	u, err := url.Parse(origin)
	if err != nil {
		return trace.Wrap(err, "parsing origin")
	}
	if u.Host == "" {
		return trace.BadParameter("origin %q has no host", origin)
	}
	host := u.Hostname()
	if host == rpID || strings.HasSuffix(host, "."+rpID) {
		return nil
	}
	return trace.BadParameter("origin %q does not match relying party ID %q", origin, rpID)
}

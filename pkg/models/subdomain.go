package models

import (
	"regexp"
	"strings"

	pkgerrors "leadcolor/pkg/errors"
)

var subdomainPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,62}$`)

// NormalizeSubdomain trims and lower-cases a tenant subdomain. The result is
// always a single DNS label, so it is safe to place in the CRM host name.
func NormalizeSubdomain(subdomain string) (string, error) {
	subdomain = strings.ToLower(strings.TrimSpace(subdomain))
	if subdomain == "" {
		return "", pkgerrors.ErrValidation.WithMessage("subdomain is required")
	}
	if !subdomainPattern.MatchString(subdomain) {
		return "", pkgerrors.ErrValidation.
			WithMessage("subdomain must be a single DNS label").
			WithDetail("subdomain", subdomain)
	}
	return subdomain, nil
}

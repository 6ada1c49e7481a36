package model

import (
	"net/url"
	"strings"
)

// CompanyTarget is a normalized company identifier: a bare, lower-cased domain
// with scheme, "www." prefix, path, and port removed.
type CompanyTarget struct {
	// Domain is the normalized domain, e.g. "acme.com".
	Domain string `json:"domain"`
	// Input is the identifier as it was supplied by the caller.
	Input string `json:"input"`
}

// NewCompanyTarget normalizes raw into a CompanyTarget. The returned bool is
// false when raw does not contain a usable domain.
func NewCompanyTarget(raw string) (CompanyTarget, bool) {
	domain := NormalizeDomain(raw)
	t := CompanyTarget{Domain: domain, Input: strings.TrimSpace(raw)}
	return t, IsValidDomain(domain)
}

// String returns the normalized domain.
func (c CompanyTarget) String() string {
	return c.Domain
}

// NormalizeDomain strips scheme, credentials, "www.", path, query, port and
// trailing dots from raw and lower-cases the result.
func NormalizeDomain(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}

	if !strings.Contains(s, "://") {
		s = "http://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		// Fall back to manual trimming for inputs url.Parse rejects.
		s = strings.TrimPrefix(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(raw)), "https://"), "http://")
		if i := strings.IndexAny(s, "/?#"); i >= 0 {
			s = s[:i]
		}
		return strings.TrimSuffix(strings.TrimPrefix(s, "www."), ".")
	}

	host := u.Hostname()
	host = strings.TrimPrefix(host, "www.")
	return strings.TrimSuffix(host, ".")
}

// IsValidDomain reports whether domain looks like a registrable host name.
func IsValidDomain(domain string) bool {
	if domain == "" || !strings.Contains(domain, ".") {
		return false
	}
	if strings.HasPrefix(domain, ".") || strings.Contains(domain, "..") {
		return false
	}
	for _, r := range domain {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '.':
		default:
			return false
		}
	}
	return true
}

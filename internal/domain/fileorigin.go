package domain

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var private172 = regexp.MustCompile(`^172\.(1[6-9]|2[0-9]|3[0-1])\.`)

// IsPrivateOrLocalHost reports whether a hostname names loopback or a private
// range by string inspection. It does not resolve DNS, so a hostname that
// rebinds to a private address after validation is not caught; OriginPolicy
// accepts a replacement check for deployments that need resolution.
func IsPrivateOrLocalHost(hostname string) bool {
	host := strings.ToLower(hostname)

	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return true
	}
	if strings.HasPrefix(host, "10.") {
		return true
	}
	if strings.HasPrefix(host, "192.168.") {
		return true
	}
	return private172.MatchString(host)
}

// OriginPolicy validates product file URLs before they are ever returned to a
// client, so the download redirect cannot be turned into an SSRF proxy by an
// attacker-controlled file URL on a product record.
type OriginPolicy struct {
	// AllowedHosts, when non-empty, restricts file hosts to this set
	// (lower-cased hostnames).
	AllowedHosts map[string]struct{}
	// PrivateHostFn defaults to IsPrivateOrLocalHost.
	PrivateHostFn func(hostname string) bool
}

// NewOriginPolicy builds a policy from a comma-separated-style host list.
func NewOriginPolicy(allowedHosts []string) OriginPolicy {
	policy := OriginPolicy{PrivateHostFn: IsPrivateOrLocalHost}
	if len(allowedHosts) > 0 {
		policy.AllowedHosts = make(map[string]struct{}, len(allowedHosts))
		for _, host := range allowedHosts {
			trimmed := strings.ToLower(strings.TrimSpace(host))
			if trimmed == "" {
				continue
			}
			policy.AllowedHosts[trimmed] = struct{}{}
		}
	}
	return policy
}

// Validate parses and vets a raw product file URL. The returned error is one
// of the ErrFile* sentinels; callers log it and surface a generic denial.
func (p OriginPolicy) Validate(rawURL string) (*url.URL, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		return nil, fmt.Errorf("%w: unparseable file url", ErrInvalidFileURL)
	}

	if parsed.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme %q", ErrFileURLScheme, parsed.Scheme)
	}

	hostname := parsed.Hostname()
	isPrivate := p.PrivateHostFn
	if isPrivate == nil {
		isPrivate = IsPrivateOrLocalHost
	}
	if isPrivate(hostname) {
		return nil, fmt.Errorf("%w: %s", ErrFileHostNotAllowed, hostname)
	}

	if len(p.AllowedHosts) > 0 {
		if _, ok := p.AllowedHosts[strings.ToLower(hostname)]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrFileHostNotAllowlisted, hostname)
		}
	}

	return parsed, nil
}

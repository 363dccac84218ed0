package ai

import "strings"

// HostAllowed reports whether host matches one of the patterns. A pattern is
// an exact host name or "*.domain", which matches any subdomain of domain
// but not domain itself. An empty list allows nothing.
func HostAllowed(host string, patterns []string) bool {
	host = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(host), "."))
	if host == "" {
		return false
	}
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if domain, ok := strings.CutPrefix(p, "*."); ok {
			if domain != "" && strings.HasSuffix(host, "."+domain) {
				return true
			}
			continue
		}
		if host == p {
			return true
		}
	}
	return false
}

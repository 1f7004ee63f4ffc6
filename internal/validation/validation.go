package validation

import (
	"net"
	"net/url"
	"regexp"
	"strings"
)

// SlugPattern defines the valid slug format: lowercase alphanumerics with
// interior hyphens, no leading or trailing hyphen. Single-character slugs
// are allowed.
var SlugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*[a-z0-9]$|^[a-z0-9]$`)

// MaxSlugLength is the longest accepted slug.
const MaxSlugLength = 32

// reservedSlugs can never be claimed as custom page slugs. They collide
// with routes, well-known names, or the implicit default page.
var reservedSlugs = map[string]struct{}{
	"default": {}, "api": {}, "admin": {}, "app": {}, "www": {},
	"login": {}, "logout": {}, "signup": {}, "settings": {},
	"static": {}, "assets": {}, "health": {}, "healthz": {},
	"metrics": {}, "about": {}, "help": {}, "support": {},
	"terms": {}, "privacy": {}, "new": {}, "edit": {}, "go": {},
	"page": {}, "pages": {}, "npub": {}, "profile": {}, "me": {}, "my": {},
}

// ValidateSlug checks if a slug matches the allowed pattern and length.
// Reserved-word checks are separate; see IsReservedSlug.
func ValidateSlug(slug string) bool {
	if slug == "" || len(slug) > MaxSlugLength {
		return false
	}
	return SlugPattern.MatchString(slug)
}

// NormalizeSlug lowercases and trims a slug so lookups are case-insensitive.
func NormalizeSlug(slug string) string {
	return strings.ToLower(strings.TrimSpace(slug))
}

// IsReservedSlug reports whether a slug is in the reserved-word set.
func IsReservedSlug(slug string) bool {
	_, ok := reservedSlugs[slug]
	return ok
}

// AddReservedSlugs extends the reserved-word set with deployment-specific
// entries from the config file. Call before serving; the set is not safe
// to grow concurrently with lookups.
func AddReservedSlugs(slugs ...string) {
	for _, s := range slugs {
		reservedSlugs[NormalizeSlug(s)] = struct{}{}
	}
}

// ValidateURL checks if a URL is valid and uses an allowed scheme (http/https only).
// This prevents javascript:, data:, vbscript:, and other dangerous URL schemes.
func ValidateURL(urlStr string) (bool, string) {
	if urlStr == "" {
		return false, "URL is required"
	}

	u, err := url.Parse(urlStr)
	if err != nil {
		return false, "Invalid URL format"
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return false, "URL must use http:// or https:// scheme"
	}

	if u.Host == "" {
		return false, "URL must have a valid host"
	}

	return true, ""
}

// ValidateTitle checks a human-facing title: 1-64 characters after trimming.
func ValidateTitle(title string) (bool, string) {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return false, "title is required"
	}
	if len([]rune(trimmed)) > 64 {
		return false, "title must be at most 64 characters"
	}
	return true, ""
}

// ValidateIdentityDomain checks that a verified-identity domain looks like a
// resolvable public hostname: non-empty, contains a dot, no scheme or path.
func ValidateIdentityDomain(domain string) bool {
	if domain == "" || len(domain) > 253 {
		return false
	}
	if strings.ContainsAny(domain, "/@:?# ") {
		return false
	}
	return strings.Contains(domain, ".")
}

// IsPrivateIP checks if an IP address is in a private/reserved range.
// Used to prevent SSRF against internal networks when resolving verified
// identities on user-supplied domains.
func IsPrivateIP(ip net.IP) bool {
	if ip == nil {
		return false
	}

	if ip.IsLoopback() {
		return true
	}

	if ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}

	if ip.IsPrivate() {
		return true
	}

	if ip.IsUnspecified() {
		return true
	}

	// Cloud metadata endpoints (AWS/GCP/Azure standard, plus Azure's 168.63.129.16)
	if ip.Equal(net.ParseIP("169.254.169.254")) || ip.Equal(net.ParseIP("168.63.129.16")) {
		return true
	}

	return false
}

// IsPrivateHost checks if a hostname resolves to a private IP address.
// Returns true if the host is private/blocked, false if it's safe to access.
func IsPrivateHost(host string) (bool, error) {
	hostname := host
	if h, _, err := net.SplitHostPort(host); err == nil {
		hostname = h
	}

	ips, err := net.LookupIP(hostname)
	if err != nil {
		// If we can't resolve, be conservative and block
		return true, err
	}

	for _, ip := range ips {
		if IsPrivateIP(ip) {
			return true, nil
		}
	}

	return false, nil
}

// Package blocklist holds the domains and applications a session restricts.
// A Store is built once from configuration and is read-only afterwards.
package blocklist

import (
	"net"
	"sort"
	"strings"
)

// DefaultDistractions is the deny list used in allow-list mode on top of the
// configured block list.
var DefaultDistractions = []string{
	"facebook.com", "www.facebook.com",
	"twitter.com", "www.twitter.com",
	"x.com", "www.x.com",
	"instagram.com", "www.instagram.com",
	"youtube.com", "www.youtube.com",
	"reddit.com", "www.reddit.com",
	"tiktok.com", "www.tiktok.com",
}

// DefaultDomains is used when the config file has no block_list.
var DefaultDomains = []string{
	"facebook.com", "www.facebook.com",
	"twitter.com", "www.twitter.com",
	"instagram.com", "www.instagram.com",
	"youtube.com", "www.youtube.com",
}

// DefaultApps is used when the config file has no app_block_list.
var DefaultApps = []string{"slack", "discord"}

// Store is an immutable, normalised set of block list entries.
type Store struct {
	domains   []string
	apps      []string
	allowList []string
}

// New normalises the raw entries and returns a Store.
// Domain entries may be bare domains or full hosts lines ("127.0.0.1 x.com").
func New(domains, apps, allowList []string) *Store {
	return &Store{
		domains:   normaliseDomains(domains),
		apps:      normaliseApps(apps),
		allowList: normaliseDomains(allowList),
	}
}

// Domains returns a copy of the domains to redirect.
func (s *Store) Domains() []string {
	return append([]string(nil), s.domains...)
}

// Apps returns a copy of the application names to sweep.
func (s *Store) Apps() []string {
	return append([]string(nil), s.apps...)
}

// AllowList returns a copy of the allow-listed domains.
func (s *Store) AllowList() []string {
	return append([]string(nil), s.allowList...)
}

// Allowed reports whether domain, or its bare form without "www.", is on
// the allow list.
func (s *Store) Allowed(domain string) bool {
	return IsAllowed(domain, s.allowList)
}

// IsAllowed is the allow-list match used by the hosts guard.
func IsAllowed(domain string, allowList []string) bool {
	d := strings.TrimPrefix(NormaliseDomain(domain), "www.")
	for _, a := range allowList {
		if strings.TrimPrefix(a, "www.") == d {
			return true
		}
	}
	return false
}

// NormaliseDomain lowercases the entry and strips a leading redirect address
// and any trailing comment. It returns "" for entries with no domain.
func NormaliseDomain(entry string) string {
	if i := strings.IndexByte(entry, '#'); i >= 0 {
		entry = entry[:i]
	}
	fields := strings.Fields(strings.ToLower(entry))
	if len(fields) == 0 {
		return ""
	}
	if net.ParseIP(fields[0]) != nil {
		if len(fields) < 2 {
			return ""
		}
		return strings.TrimSuffix(fields[1], ".")
	}
	return strings.TrimSuffix(fields[0], ".")
}

// AppKey is the comparison form of a process or application name:
// lowercased with any ".exe" suffix removed.
func AppKey(name string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(name)), ".exe")
}

func normaliseDomains(entries []string) []string {
	seen := make(map[string]struct{}, len(entries))
	result := make([]string, 0, len(entries))
	for _, e := range entries {
		d := NormaliseDomain(e)
		if d == "" {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		result = append(result, d)
	}
	return result
}

func normaliseApps(entries []string) []string {
	seen := make(map[string]struct{}, len(entries))
	result := make([]string, 0, len(entries))
	for _, e := range entries {
		name := strings.TrimSpace(e)
		key := AppKey(name)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

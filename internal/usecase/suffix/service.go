// Package suffix composes the static and per-caller filter-query fragments
// conjoined to every content query.
package suffix

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
	"sync"

	"github.com/biblios/discovery/internal/domain"
	"github.com/biblios/discovery/internal/domain/security"
)

// Config holds the static inputs of suffix composition.
type Config struct {
	DocstructWhitelist  []string
	CollectionBlacklist []string
	DiscriminatorField  string
	DiscriminatorValue  string
}

// Service builds filter-query suffixes. The static suffixes are memoized for
// the service lifetime; call Invalidate after a configuration change. The
// personal filter is recomputed per call because it depends on the caller's
// user and IP.
type Service struct {
	cfg     Config
	catalog Catalog

	mu            sync.RWMutex
	whitelist     *string
	blacklist     *string
	discriminator *string
}

// New creates a suffix composer.
func New(cfg Config, catalog Catalog) *Service {
	return &Service{cfg: cfg, catalog: catalog}
}

// Invalidate drops the memoized static suffixes.
func (s *Service) Invalidate() {
	s.mu.Lock()
	s.whitelist = nil
	s.blacklist = nil
	s.discriminator = nil
	s.mu.Unlock()
}

// DocstructWhitelist returns the suffix restricting results to known
// top-level structure types. Without a configured whitelist, top-level
// records are selected via ISWORK.
func (s *Service) DocstructWhitelist() string {
	return s.memoized(&s.whitelist, s.buildWhitelist)
}

func (s *Service) buildWhitelist() string {
	if len(s.cfg.DocstructWhitelist) == 0 {
		return fmt.Sprintf(" AND %s:true", domain.FieldIsWork)
	}
	clauses := make([]string, len(s.cfg.DocstructWhitelist))
	for i, ds := range s.cfg.DocstructWhitelist {
		clauses[i] = fmt.Sprintf("%s:\"%s\"", domain.FieldDocstruct, ds)
	}
	return " AND (" + strings.Join(clauses, " OR ") + ")"
}

// CollectionBlacklist returns the suffix excluding blacklisted collection
// values, empty when none are configured.
func (s *Service) CollectionBlacklist() string {
	return s.memoized(&s.blacklist, s.buildBlacklist)
}

func (s *Service) buildBlacklist() string {
	var sb strings.Builder
	for _, dc := range s.cfg.CollectionBlacklist {
		fmt.Fprintf(&sb, " AND -%s:\"%s\"", domain.FieldCollection, dc)
	}
	return sb.String()
}

// DiscriminatorClause returns the theme discriminator equality clause, empty
// when no discriminator is configured.
func (s *Service) DiscriminatorClause() string {
	return s.memoized(&s.discriminator, s.buildDiscriminator)
}

func (s *Service) buildDiscriminator() string {
	if s.cfg.DiscriminatorField == "" || s.cfg.DiscriminatorValue == "" {
		return ""
	}
	return fmt.Sprintf(" AND %s:\"%s\"", s.cfg.DiscriminatorField, s.cfg.DiscriminatorValue)
}

// memoized returns the cached value behind slot, computing it under the lock
// on first use.
func (s *Service) memoized(slot **string, build func() string) string {
	s.mu.RLock()
	v := *slot
	s.mu.RUnlock()
	if v != nil {
		return *v
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if *slot == nil {
		computed := build()
		*slot = &computed
	}
	return **slot
}

// PersonalFilter returns the negated access-condition clauses for every
// non-open license type the caller cannot already list by default. Never
// cached: it changes with the user and IP.
func (s *Service) PersonalFilter(ctx context.Context, user *security.User, ip string) (string, error) {
	licenseTypes, err := s.catalog.NonOpenAccessLicenseTypes(ctx)
	if err != nil {
		return "", fmt.Errorf("load license types: %w", err)
	}
	if len(licenseTypes) == 0 {
		return "", nil
	}

	ranges, err := s.catalog.AllIPRanges(ctx)
	if err != nil {
		return "", fmt.Errorf("load ip ranges: %w", err)
	}

	addr, hasAddr := parseAddr(ip)

	var sb strings.Builder
	for i := range licenseTypes {
		lt := &licenseTypes[i]
		if canList(lt, user, ranges, addr, hasAddr) {
			continue
		}
		fmt.Fprintf(&sb, " -%s:\"%s\"", domain.FieldAccessCondition, lt.Name)
	}
	return sb.String(), nil
}

// canList reports whether the caller may list records under the license type
// without an explicit access check.
func canList(lt *security.LicenseType, user *security.User, ranges []security.IPRange, addr netip.Addr, hasAddr bool) bool {
	if lt.GrantsByDefault(security.PrivList) {
		return true
	}
	if hasAddr {
		for i := range ranges {
			if ranges[i].Matches(addr) && ranges[i].Satisfies([]string{lt.Name}, security.PrivList) {
				return true
			}
		}
	}
	if user != nil && !lt.Static && user.Satisfies([]string{lt.Name}, security.PrivList) {
		return true
	}
	return false
}

// AllSuffixes concatenates every applicable suffix for one query.
func (s *Service) AllSuffixes(
	ctx context.Context, user *security.User, ip string,
	includeBlacklist, includeDiscriminator bool,
) (string, error) {
	var sb strings.Builder
	sb.WriteString(s.DocstructWhitelist())
	if includeBlacklist {
		sb.WriteString(s.CollectionBlacklist())
	}
	if includeDiscriminator {
		sb.WriteString(s.DiscriminatorClause())
	}

	personal, err := s.PersonalFilter(ctx, user, ip)
	if err != nil {
		return "", err
	}
	sb.WriteString(personal)
	return sb.String(), nil
}

func parseAddr(ip string) (netip.Addr, bool) {
	if ip == "" {
		return netip.Addr{}, false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr, true
}

// Package access decides whether a caller may exercise a privilege on a
// resource, based on the resource's access conditions and the license-type,
// IP-range, and user-entitlement catalog.
package access

import (
	"context"
	"errors"
	"fmt"
	"net/netip"

	"go.uber.org/zap"

	"github.com/biblios/discovery/internal/domain"
	"github.com/biblios/discovery/internal/domain/security"
	"github.com/biblios/discovery/internal/logger"
)

// Evaluator runs the access decision procedure. It is stateless; per-session
// memoization lives in SessionCache.
type Evaluator struct {
	catalog Catalog
	index   Index
}

// NewEvaluator creates an access evaluator.
func NewEvaluator(catalog Catalog, index Index) *Evaluator {
	return &Evaluator{catalog: catalog, index: index}
}

// CheckAccess decides whether the caller may exercise the privilege on a
// resource carrying the given access conditions. resourceQuery identifies the
// resource in the index; it scopes license-type condition sub-queries to the
// resource's records.
//
// The procedure fails open on absent configuration: no conditions, no
// catalog, or no requested privilege all allow. A catalog outage is a hard
// error, never a silent allow or deny.
func (e *Evaluator) CheckAccess(
	ctx context.Context, conditions []string, privilege string,
	user *security.User, ip, resourceQuery string,
) (bool, error) {
	if openAccessOnly(conditions) {
		return true, nil
	}
	if privilege == "" {
		return true, nil
	}

	licenseTypes, err := e.catalog.NonOpenAccessLicenseTypes(ctx)
	if err != nil {
		return false, fmt.Errorf("load license types: %w", err)
	}
	if len(licenseTypes) == 0 {
		return true, nil
	}

	relevant, err := e.relevantLicenseTypes(ctx, licenseTypes, conditions, resourceQuery)
	if err != nil {
		return false, err
	}
	if len(relevant) == 0 {
		return true, nil
	}

	if allGrantByDefault(relevant, privilege) {
		return true, nil
	}

	names := licenseTypeNames(relevant)

	if addr, err := netip.ParseAddr(ip); err == nil {
		ranges, err := e.catalog.AllIPRanges(ctx)
		if err != nil {
			return false, fmt.Errorf("load ip ranges: %w", err)
		}
		for i := range ranges {
			if ranges[i].Matches(addr) && ranges[i].Satisfies(names, privilege) {
				return true, nil
			}
		}
	}

	if user != nil && userSatisfies(user, relevant, privilege) {
		return true, nil
	}
	return false, nil
}

// CheckAccessByIdentifier loads a record's access conditions from the index
// first, then runs the decision procedure against them.
func (e *Evaluator) CheckAccessByIdentifier(
	ctx context.Context, pi, privilege string, user *security.User, ip string,
) (bool, error) {
	resourceQuery := fmt.Sprintf("+%s:\"%s\"", domain.FieldPI, pi)
	doc, err := e.index.FirstDoc(ctx, resourceQuery, []string{domain.FieldAccessCondition})
	if errors.Is(err, domain.ErrNotFound) {
		return false, err
	}
	if err != nil {
		return false, fmt.Errorf("load access conditions: %w", err)
	}
	return e.CheckAccess(ctx, doc.Values(domain.FieldAccessCondition), privilege, user, ip, resourceQuery)
}

// CheckFileAccess answers repeated per-file access lookups within one
// session. The session's decision cache is consulted first; a fresh decision
// runs the full procedure and is memoized for later lookups on the same
// record.
func (e *Evaluator) CheckFileAccess(
	ctx context.Context, cache *SessionCache, pi, fileName, privilege string,
	user *security.User, ip string,
) (bool, error) {
	if allowed, ok := cache.Get(privilege, pi, fileName); ok {
		return allowed, nil
	}
	allowed, err := e.CheckAccessByIdentifier(ctx, pi, privilege, user, ip)
	if err != nil {
		return false, err
	}
	cache.Put(privilege, pi, fileName, allowed)
	return allowed, nil
}

// relevantLicenseTypes filters the catalog to license types whose name is
// among the required conditions and whose condition sub-query, conjoined
// with the resource query, still matches at least one record. A sub-query
// the index rejects as malformed means the license type does not apply.
func (e *Evaluator) relevantLicenseTypes(
	ctx context.Context, licenseTypes []security.LicenseType,
	conditions []string, resourceQuery string,
) ([]security.LicenseType, error) {
	required := map[string]struct{}{}
	for _, c := range conditions {
		required[c] = struct{}{}
	}

	var relevant []security.LicenseType
	for _, lt := range licenseTypes {
		if _, ok := required[lt.Name]; !ok {
			continue
		}
		if lt.Condition != "" {
			applies, err := e.conditionApplies(ctx, lt, resourceQuery)
			if err != nil {
				return nil, err
			}
			if !applies {
				continue
			}
		}
		relevant = append(relevant, lt)
	}
	return relevant, nil
}

// conditionApplies runs the license type's condition sub-query scoped to the
// resource. A malformed sub-query is a configuration mistake, not a caller
// error: it is logged and the license type is treated as not applying.
func (e *Evaluator) conditionApplies(ctx context.Context, lt security.LicenseType, resourceQuery string) (bool, error) {
	q := lt.Condition
	if resourceQuery != "" {
		q = resourceQuery + " +(" + lt.Condition + ")"
	}
	n, err := e.index.Count(ctx, q, nil)
	if errors.Is(err, domain.ErrMalformedQuery) {
		logger.FromContext(ctx).Warn("license type condition query rejected",
			zap.String("licenseType", lt.Name),
			zap.String("condition", lt.Condition),
			zap.Error(err))
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("license type %q condition: %w", lt.Name, err)
	}
	return n > 0, nil
}

func allGrantByDefault(licenseTypes []security.LicenseType, privilege string) bool {
	for i := range licenseTypes {
		if !licenseTypes[i].GrantsByDefault(privilege) {
			return false
		}
	}
	return true
}

// userSatisfies checks the user against the remaining conditions, excluding
// static license types, which user entitlements can never satisfy.
func userSatisfies(user *security.User, licenseTypes []security.LicenseType, privilege string) bool {
	names := make([]string, 0, len(licenseTypes))
	for i := range licenseTypes {
		if licenseTypes[i].Static {
			return false
		}
		names = append(names, licenseTypes[i].Name)
	}
	return user.Satisfies(names, privilege)
}

func licenseTypeNames(licenseTypes []security.LicenseType) []string {
	names := make([]string, len(licenseTypes))
	for i := range licenseTypes {
		names[i] = licenseTypes[i].Name
	}
	return names
}

// openAccessOnly reports whether the conditions demand nothing: empty, or
// only the open-access sentinel.
func openAccessOnly(conditions []string) bool {
	for _, c := range conditions {
		if c != "" && c != domain.OpenAccessCondition {
			return false
		}
	}
	return true
}

// Package security holds the read-only entities consumed by access
// evaluation: license types, IP ranges, and users. The catalog store supplies
// them; the evaluator never mutates them.
package security

import "net/netip"

// Privileges a license type or entitlement can grant.
const (
	PrivList         = "LIST"
	PrivViewImages   = "VIEW_IMAGES"
	PrivViewFulltext = "VIEW_FULLTEXT"
	PrivDownloadPDF  = "DOWNLOAD_PDF"
)

// LicenseType is a named access condition with a default privilege set. A
// non-empty Condition restricts the license type to the subset of records
// matching that sub-query. Static license types cannot be satisfied by user
// entitlements.
type LicenseType struct {
	Name              string
	Description       string
	Condition         string
	OpenAccess        bool
	Static            bool
	DefaultPrivileges map[string]bool
}

// GrantsByDefault reports whether the license type grants the privilege to
// everyone.
func (lt *LicenseType) GrantsByDefault(privilege string) bool {
	return lt.DefaultPrivileges[privilege]
}

// Entitlement grants privileges for one license type.
type Entitlement struct {
	LicenseType string
	Privileges  map[string]bool
}

// Grants reports whether the entitlement covers the given condition and
// privilege.
func (e *Entitlement) Grants(condition, privilege string) bool {
	return e.LicenseType == condition && e.Privileges[privilege]
}

// IPRange is a subnet with an entitlement set.
type IPRange struct {
	Name         string
	Subnet       netip.Prefix
	Entitlements []Entitlement
}

// Matches reports whether the address falls inside the range.
func (r *IPRange) Matches(addr netip.Addr) bool {
	return r.Subnet.Contains(addr.Unmap())
}

// Satisfies reports whether the range's entitlements grant the privilege for
// every given condition.
func (r *IPRange) Satisfies(conditions []string, privilege string) bool {
	return entitlementsSatisfy(r.Entitlements, conditions, privilege)
}

// User is an authenticated caller with an entitlement set.
type User struct {
	ID           int64
	Email        string
	Superuser    bool
	Suspended    bool
	Entitlements []Entitlement
}

// Satisfies reports whether the user's entitlements grant the privilege for
// every given condition. Superusers satisfy everything; suspended accounts
// nothing.
func (u *User) Satisfies(conditions []string, privilege string) bool {
	if u.Suspended {
		return false
	}
	if u.Superuser {
		return true
	}
	return entitlementsSatisfy(u.Entitlements, conditions, privilege)
}

func entitlementsSatisfy(entitlements []Entitlement, conditions []string, privilege string) bool {
	if len(conditions) == 0 {
		return true
	}
	for _, condition := range conditions {
		granted := false
		for i := range entitlements {
			if entitlements[i].Grants(condition, privilege) {
				granted = true
				break
			}
		}
		if !granted {
			return false
		}
	}
	return true
}

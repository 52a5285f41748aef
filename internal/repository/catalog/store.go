// Package catalog is the persistence collaborator for users, license types,
// and IP ranges, backed by sqlite. Access evaluation reads it; nothing here
// is mutated by the search path.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/netip"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/biblios/discovery/internal/domain"
	"github.com/biblios/discovery/internal/domain/security"
)

const schema = `
CREATE TABLE IF NOT EXISTS license_types (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	condition_query TEXT NOT NULL DEFAULT '',
	open_access INTEGER NOT NULL DEFAULT 0,
	static INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS license_type_privileges (
	license_type_id INTEGER NOT NULL REFERENCES license_types(id),
	privilege TEXT NOT NULL,
	PRIMARY KEY (license_type_id, privilege)
);
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	email TEXT NOT NULL UNIQUE,
	superuser INTEGER NOT NULL DEFAULT 0,
	suspended INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS ip_ranges (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	subnet TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS entitlements (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER REFERENCES users(id),
	ip_range_id INTEGER REFERENCES ip_ranges(id),
	license_type TEXT NOT NULL,
	privilege TEXT NOT NULL
);
`

// Store reads the catalog from sqlite.
type Store struct {
	db *sql.DB
}

// NewStore opens the catalog database and ensures the schema exists.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening catalog database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 30000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing catalog schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// NonOpenAccessLicenseTypes returns all license types except the open-access
// ones, with their default privilege sets.
func (s *Store) NonOpenAccessLicenseTypes(ctx context.Context) ([]security.LicenseType, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, condition_query, static
		FROM license_types WHERE open_access = 0 ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("%w: query license types: %w", domain.ErrPersistence, err)
	}
	defer rows.Close()

	var types []security.LicenseType
	var ids []int64
	for rows.Next() {
		var id int64
		var lt security.LicenseType
		if err := rows.Scan(&id, &lt.Name, &lt.Description, &lt.Condition, &lt.Static); err != nil {
			return nil, fmt.Errorf("%w: scan license type: %w", domain.ErrPersistence, err)
		}
		lt.DefaultPrivileges = map[string]bool{}
		types = append(types, lt)
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate license types: %w", domain.ErrPersistence, err)
	}

	for i, id := range ids {
		if err := s.loadPrivileges(ctx, id, types[i].DefaultPrivileges); err != nil {
			return nil, err
		}
	}
	return types, nil
}

func (s *Store) loadPrivileges(ctx context.Context, licenseTypeID int64, into map[string]bool) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT privilege FROM license_type_privileges WHERE license_type_id = ?`, licenseTypeID)
	if err != nil {
		return fmt.Errorf("%w: query privileges: %w", domain.ErrPersistence, err)
	}
	defer rows.Close()

	for rows.Next() {
		var priv string
		if err := rows.Scan(&priv); err != nil {
			return fmt.Errorf("%w: scan privilege: %w", domain.ErrPersistence, err)
		}
		into[priv] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: iterate privileges: %w", domain.ErrPersistence, err)
	}
	return nil
}

// User loads a user with entitlements by email. Returns ErrNotFound for
// unknown users.
func (s *Store) User(ctx context.Context, email string) (*security.User, error) {
	var u security.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, superuser, suspended FROM users WHERE email = ?`, email).
		Scan(&u.ID, &u.Email, &u.Superuser, &u.Suspended)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %q", domain.ErrNotFound, email)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: query user: %w", domain.ErrPersistence, err)
	}

	u.Entitlements, err = s.loadEntitlements(ctx, "user_id", u.ID)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// AllIPRanges returns every configured IP range with entitlements. Rows with
// an unparseable subnet are skipped.
func (s *Store) AllIPRanges(ctx context.Context) ([]security.IPRange, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, subnet FROM ip_ranges ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%w: query ip ranges: %w", domain.ErrPersistence, err)
	}
	defer rows.Close()

	type rawRange struct {
		id     int64
		name   string
		subnet string
	}
	var raws []rawRange
	for rows.Next() {
		var rr rawRange
		if err := rows.Scan(&rr.id, &rr.name, &rr.subnet); err != nil {
			return nil, fmt.Errorf("%w: scan ip range: %w", domain.ErrPersistence, err)
		}
		raws = append(raws, rr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate ip ranges: %w", domain.ErrPersistence, err)
	}

	var ranges []security.IPRange
	for _, rr := range raws {
		prefix, err := netip.ParsePrefix(rr.subnet)
		if err != nil {
			continue
		}
		ents, err := s.loadEntitlements(ctx, "ip_range_id", rr.id)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, security.IPRange{Name: rr.name, Subnet: prefix, Entitlements: ents})
	}
	return ranges, nil
}

func (s *Store) loadEntitlements(ctx context.Context, ownerColumn string, ownerID int64) ([]security.Entitlement, error) {
	//nolint:gosec // ownerColumn is one of two compile-time constants.
	query := fmt.Sprintf(
		`SELECT license_type, privilege FROM entitlements WHERE %s = ? ORDER BY license_type`, ownerColumn)
	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: query entitlements: %w", domain.ErrPersistence, err)
	}
	defer rows.Close()

	byType := map[string]*security.Entitlement{}
	var order []string
	for rows.Next() {
		var licenseType, privilege string
		if err := rows.Scan(&licenseType, &privilege); err != nil {
			return nil, fmt.Errorf("%w: scan entitlement: %w", domain.ErrPersistence, err)
		}
		ent, ok := byType[licenseType]
		if !ok {
			ent = &security.Entitlement{LicenseType: licenseType, Privileges: map[string]bool{}}
			byType[licenseType] = ent
			order = append(order, licenseType)
		}
		ent.Privileges[privilege] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate entitlements: %w", domain.ErrPersistence, err)
	}

	ents := make([]security.Entitlement, 0, len(order))
	for _, lt := range order {
		ents = append(ents, *byType[lt])
	}
	return ents, nil
}

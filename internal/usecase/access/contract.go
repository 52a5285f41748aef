package access

import (
	"context"

	"github.com/biblios/discovery/internal/domain"
	"github.com/biblios/discovery/internal/domain/security"
)

// Catalog supplies license types and IP ranges.
type Catalog interface {
	NonOpenAccessLicenseTypes(ctx context.Context) ([]security.LicenseType, error)
	AllIPRanges(ctx context.Context) ([]security.IPRange, error)
}

// Index answers condition sub-query relevance checks and loads a record's
// access conditions.
type Index interface {
	Count(ctx context.Context, query string, filterQueries []string) (int64, error)
	FirstDoc(ctx context.Context, query string, fields []string) (domain.Document, error)
}

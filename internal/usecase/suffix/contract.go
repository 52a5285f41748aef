package suffix

import (
	"context"

	"github.com/biblios/discovery/internal/domain/security"
)

// Catalog supplies license types and IP ranges for personal filter
// composition.
type Catalog interface {
	NonOpenAccessLicenseTypes(ctx context.Context) ([]security.LicenseType, error)
	AllIPRanges(ctx context.Context) ([]security.IPRange, error)
}

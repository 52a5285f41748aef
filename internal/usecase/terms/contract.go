package terms

import (
	"context"

	"github.com/biblios/discovery/internal/repository/index"
)

// Index runs the term-collection query against the inverted-index service.
type Index interface {
	Search(ctx context.Context, spec *index.Spec) (*index.Result, error)
}

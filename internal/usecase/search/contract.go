package search

import (
	"context"

	"github.com/biblios/discovery/internal/domain"
	"github.com/biblios/discovery/internal/domain/security"
	"github.com/biblios/discovery/internal/repository/index"
)

// Index runs queries against the external inverted-index service.
type Index interface {
	Search(ctx context.Context, spec *index.Spec) (*index.Result, error)
	FirstDoc(ctx context.Context, query string, fields []string) (domain.Document, error)
}

// SuffixComposer contributes the filter-query suffixes conjoined to every
// content query.
type SuffixComposer interface {
	AllSuffixes(
		ctx context.Context, user *security.User, ip string,
		includeBlacklist, includeDiscriminator bool,
	) (string, error)
}

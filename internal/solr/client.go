// Package solr is a thin HTTP JSON client for the external inverted-index
// service. Timeouts live on the http.Client; callers cancel via context.
package solr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/biblios/discovery/internal/domain"
)

const defaultTimeout = 30 * time.Second

// Config holds client settings.
type Config struct {
	// BaseURL points at the Solr core, e.g. http://localhost:8983/solr/records.
	BaseURL string
	Timeout time.Duration
}

// Client talks to one Solr core.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Solr client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("solr: base URL required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// Request describes one select query.
type Request struct {
	Query         string
	FilterQueries []string
	Fields        []string
	Sort          string
	Start         int
	Rows          int
	FacetFields   []string
	FacetMinCount int
	FacetLimit    int
	// ExpandField enables result expansion grouped by the given field; the
	// expanded section of the response then carries child documents per
	// group key.
	ExpandField string
	ExpandQuery string
	ExpandRows  int
}

// ValueCount is one facet bucket, in index arrival order.
type ValueCount struct {
	Value string
	Count int64
}

// Response is a parsed select response.
type Response struct {
	NumFound int64
	Docs     []domain.Document
	Facets   map[string][]ValueCount
	Expanded map[string][]domain.Document
}

// Search executes a select query.
func (c *Client) Search(ctx context.Context, req *Request) (*Response, error) {
	params := url.Values{}
	params.Set("q", req.Query)
	params.Set("wt", "json")
	params.Set("start", strconv.Itoa(req.Start))
	params.Set("rows", strconv.Itoa(req.Rows))
	for _, fq := range req.FilterQueries {
		params.Add("fq", fq)
	}
	if len(req.Fields) > 0 {
		params.Set("fl", strings.Join(req.Fields, ","))
	}
	if req.Sort != "" {
		params.Set("sort", req.Sort)
	}
	if len(req.FacetFields) > 0 {
		params.Set("facet", "true")
		params.Set("facet.mincount", strconv.Itoa(max(req.FacetMinCount, 1)))
		if req.FacetLimit != 0 {
			params.Set("facet.limit", strconv.Itoa(req.FacetLimit))
		}
		for _, f := range req.FacetFields {
			params.Add("facet.field", f)
		}
	}
	if req.ExpandField != "" {
		params.Set("expand", "true")
		params.Set("expand.field", req.ExpandField)
		if req.ExpandQuery != "" {
			params.Set("expand.q", req.ExpandQuery)
		}
		if req.ExpandRows > 0 {
			params.Set("expand.rows", strconv.Itoa(req.ExpandRows))
		}
	}

	raw, err := c.post(ctx, params)
	if err != nil {
		return nil, err
	}
	return parseResponse(raw)
}

// Count returns the number of documents matching the query.
func (c *Client) Count(ctx context.Context, query string, filterQueries []string) (int64, error) {
	resp, err := c.Search(ctx, &Request{Query: query, FilterQueries: filterQueries, Rows: 0})
	if err != nil {
		return 0, err
	}
	return resp.NumFound, nil
}

func (c *Client) post(ctx context.Context, params url.Values) (*rawResponse, error) {
	endpoint := c.baseURL + "/select"
	httpReq, err := http.NewRequestWithContext(
		ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()),
	)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return nil, fmt.Errorf("%w: index rejected query", domain.ErrMalformedQuery)
	case resp.StatusCode != http.StatusOK:
		return nil, domain.NewIndexStatus(resp.StatusCode)
	}

	var raw rawResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", domain.ErrIndexUnavailable, err)
	}
	return &raw, nil
}

type rawResponse struct {
	Response struct {
		NumFound int64             `json:"numFound"`
		Docs     []json.RawMessage `json:"docs"`
	} `json:"response"`
	FacetCounts struct {
		FacetFields map[string][]json.RawMessage `json:"facet_fields"`
	} `json:"facet_counts"`
	Expanded map[string]struct {
		Docs []json.RawMessage `json:"docs"`
	} `json:"expanded"`
}

func parseResponse(raw *rawResponse) (*Response, error) {
	out := &Response{NumFound: raw.Response.NumFound}

	docs, err := parseDocs(raw.Response.Docs)
	if err != nil {
		return nil, err
	}
	out.Docs = docs

	if len(raw.FacetCounts.FacetFields) > 0 {
		out.Facets = map[string][]ValueCount{}
		for field, flat := range raw.FacetCounts.FacetFields {
			buckets, err := parseFacetBuckets(flat)
			if err != nil {
				return nil, fmt.Errorf("%w: facet field %s: %w", domain.ErrIndexUnavailable, field, err)
			}
			out.Facets[field] = buckets
		}
	}

	if len(raw.Expanded) > 0 {
		out.Expanded = map[string][]domain.Document{}
		for key, group := range raw.Expanded {
			groupDocs, err := parseDocs(group.Docs)
			if err != nil {
				return nil, err
			}
			out.Expanded[key] = groupDocs
		}
	}
	return out, nil
}

func parseDocs(rawDocs []json.RawMessage) ([]domain.Document, error) {
	docs := make([]domain.Document, 0, len(rawDocs))
	for _, rd := range rawDocs {
		var fields map[string]any
		if err := json.Unmarshal(rd, &fields); err != nil {
			return nil, fmt.Errorf("%w: decode document: %w", domain.ErrIndexUnavailable, err)
		}
		doc := domain.Document{}
		for name, value := range fields {
			doc[name] = stringValues(value)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Facet buckets arrive as a flat array alternating value and count.
func parseFacetBuckets(flat []json.RawMessage) ([]ValueCount, error) {
	if len(flat)%2 != 0 {
		return nil, fmt.Errorf("odd facet array length %d", len(flat))
	}
	buckets := make([]ValueCount, 0, len(flat)/2)
	for i := 0; i < len(flat); i += 2 {
		var value string
		if err := json.Unmarshal(flat[i], &value); err != nil {
			return nil, fmt.Errorf("facet value: %w", err)
		}
		var count int64
		if err := json.Unmarshal(flat[i+1], &count); err != nil {
			return nil, fmt.Errorf("facet count: %w", err)
		}
		buckets = append(buckets, ValueCount{Value: value, Count: count})
	}
	return buckets, nil
}

// stringValues flattens a JSON field value into string form. Index fields
// are either scalars or arrays of scalars.
func stringValues(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			out = append(out, scalarString(e))
		}
		return out
	default:
		return []string{scalarString(t)}
	}
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

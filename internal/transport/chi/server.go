// Package chi exposes the search, term-browsing, and access services over a
// thin JSON HTTP API.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/biblios/discovery/internal/domain"
	"github.com/biblios/discovery/internal/domain/facet"
	"github.com/biblios/discovery/internal/domain/hit"
	"github.com/biblios/discovery/internal/domain/security"
	"github.com/biblios/discovery/internal/logger"
	"github.com/biblios/discovery/internal/metrics"
	"github.com/biblios/discovery/internal/repository/termcache"
	"github.com/biblios/discovery/internal/usecase/access"
	"github.com/biblios/discovery/internal/usecase/facets"
	searchuc "github.com/biblios/discovery/internal/usecase/search"
	termsuc "github.com/biblios/discovery/internal/usecase/terms"
)

// Index answers the health probe.
type Index interface {
	Count(ctx context.Context, query string, filterQueries []string) (int64, error)
}

// Invalidator drops memoized derived state after configuration or index
// updates.
type Invalidator interface {
	Invalidate()
}

// Users resolves an authenticated caller's identity to their entitlements.
type Users interface {
	User(ctx context.Context, email string) (*security.User, error)
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the HTTP handlers.
type Server struct {
	search        *searchuc.Service
	terms         *termsuc.Service
	evaluator     *access.Evaluator
	engine        *facets.Engine
	index         Index
	users         Users
	suffixes      Invalidator
	cache         termcache.Cache
	logger        *zap.Logger
	errorHandlers []errorHandler

	sessionMu sync.Mutex
	sessions  map[string]*access.SessionCache
}

// NewServer creates an HTTP API server. cache may be nil when no value-list
// cache is configured.
func NewServer(
	search *searchuc.Service,
	terms *termsuc.Service,
	evaluator *access.Evaluator,
	engine *facets.Engine,
	index Index,
	users Users,
	suffixes Invalidator,
	cache termcache.Cache,
	logger *zap.Logger,
) *Server {
	s := &Server{
		search:    search,
		terms:     terms,
		evaluator: evaluator,
		engine:    engine,
		index:     index,
		users:     users,
		suffixes:  suffixes,
		cache:     cache,
		logger:    logger,
		sessions:  map[string]*access.SessionCache{},
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrMalformedQuery, http.StatusBadRequest, "malformed_query"),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, "not_found"),
		sentinelHandler(domain.ErrIndexUnavailable, http.StatusBadGateway, "index_unavailable"),
		sentinelHandler(domain.ErrPersistence, http.StatusServiceUnavailable, "catalog_unavailable"),
	}
	return s
}

// Routes builds the router with the standard middleware stack.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.loggerMiddleware)
	r.Use(metrics.Middleware())

	r.Get("/healthz", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", s.Search)
		r.Get("/terms", s.Terms)
		r.Post("/access", s.Access)
		r.Post("/admin/invalidate", s.InvalidateCaches)
	})
	return r
}

type searchRequest struct {
	Query      string `json:"query"`
	Facets     string `json:"facets,omitempty"`
	Page       int    `json:"page,omitempty"`
	SortField  string `json:"sortField,omitempty"`
	Locale     string `json:"locale,omitempty"`
	Aggregated bool   `json:"aggregated,omitempty"`
	// User is the authenticated caller's email, resolved to entitlements for
	// the personal listing filter.
	User string `json:"user,omitempty"`
}

type facetItem struct {
	Field           string `json:"field"`
	Value           string `json:"value"`
	Label           string `json:"label"`
	TranslatedLabel string `json:"translatedLabel,omitempty"`
	Link            string `json:"link"`
	Count           int64  `json:"count"`
}

type searchResponse struct {
	HitCount int64                  `json:"hitCount"`
	Hits     []*hit.Hit             `json:"hits"`
	Facets   map[string][]facetItem `json:"facets,omitempty"`
	Selected string                 `json:"selected"`
}

// Search handles POST /api/v1/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "Query is required")
		return
	}

	user, err := s.resolveUser(r.Context(), req.User)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	q := searchuc.NewQuery(req.Query)
	q.Page = req.Page
	q.Sort = req.SortField
	q.Locale = req.Locale
	q.Aggregated = req.Aggregated
	s.engine.ParseCurrent(q.Facets, req.Facets)

	aggregated := strconv.FormatBool(req.Aggregated)
	start := time.Now()
	err = s.search.Execute(r.Context(), q, user, clientIP(r))
	metrics.SearchQueryDuration.WithLabelValues(aggregated).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SearchQueriesTotal.WithLabelValues(aggregated, "error").Inc()
		s.handleDomainError(w, err)
		return
	}
	metrics.SearchQueriesTotal.WithLabelValues(aggregated, "ok").Inc()

	out := searchResponse{
		HitCount: q.HitCount(),
		Hits:     q.Hits,
		Selected: s.engine.SerializeCurrent(q.Facets),
	}
	if fields := s.engine.Fields(); len(fields) > 0 {
		out.Facets = map[string][]facetItem{}
		for _, field := range fields {
			out.Facets[field] = facetItems(s.engine.LimitedAvailable(q.Facets, field))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// Terms handles GET /api/v1/terms.
func (s *Server) Terms(w http.ResponseWriter, r *http.Request) {
	field := r.URL.Query().Get("field")
	if field == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "Query parameter field is required")
		return
	}
	fc := termsuc.FieldConfig{
		Field:     field,
		SortField: r.URL.Query().Get("sortField"),
	}

	list, err := s.terms.FilteredTerms(r.Context(), fc, r.URL.Query().Get("startsWith"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"terms": list})
}

type accessRequest struct {
	PI         string   `json:"pi"`
	FileName   string   `json:"fileName,omitempty"`
	Privilege  string   `json:"privilege"`
	Conditions []string `json:"conditions,omitempty"`
	IP         string   `json:"ip,omitempty"`
	User       string   `json:"user,omitempty"`
	// Session keys the per-session decision cache; callers without one share
	// a cache per client address.
	Session string `json:"session,omitempty"`
}

// Access handles POST /api/v1/access. With explicit conditions the decision
// runs directly; otherwise the record's conditions are loaded from the index
// first and the decision is memoized in the caller's session cache.
func (s *Server) Access(w http.ResponseWriter, r *http.Request) {
	var req accessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	if req.PI == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "Record identifier is required")
		return
	}
	ip := req.IP
	if ip == "" {
		ip = clientIP(r)
	}
	user, err := s.resolveUser(r.Context(), req.User)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	var allowed bool
	if len(req.Conditions) > 0 {
		resourceQuery := "+" + domain.FieldPI + ":\"" + req.PI + "\""
		allowed, err = s.evaluator.CheckAccess(r.Context(), req.Conditions, req.Privilege, user, ip, resourceQuery)
	} else {
		cache := s.sessionCache(sessionKey(req, clientIP(r)))
		allowed, err = s.evaluator.CheckFileAccess(r.Context(), cache, req.PI, req.FileName, req.Privilege, user, ip)
	}
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	decision := "deny"
	if allowed {
		decision = "allow"
	}
	metrics.AccessDecisionsTotal.WithLabelValues(req.Privilege, decision).Inc()
	writeJSON(w, http.StatusOK, map[string]bool{"allowed": allowed})
}

// InvalidateCaches handles POST /api/v1/admin/invalidate, dropping the
// memoized suffixes and the cached term value lists after a configuration or
// index update.
func (s *Server) InvalidateCaches(w http.ResponseWriter, r *http.Request) {
	s.suffixes.Invalidate()
	if s.cache != nil {
		s.cache.Invalidate(r.Context())
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

// HealthCheck handles GET /healthz, probing the index service.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	httpStatus := http.StatusOK
	if _, err := s.index.Count(ctx, "*:*", nil); err != nil {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, map[string]string{"status": status, "index": status})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func facetItems(items []*facet.Item) []facetItem {
	out := make([]facetItem, len(items))
	for i, it := range items {
		out[i] = facetItem{
			Field:           it.Field(),
			Value:           it.Value(),
			Label:           it.Label(),
			TranslatedLabel: it.TranslatedLabel(),
			Link:            it.Link(),
			Count:           it.Count(),
		}
	}
	return out
}

// resolveUser loads the caller's entitlements by email. An empty email is an
// anonymous caller.
func (s *Server) resolveUser(ctx context.Context, email string) (*security.User, error) {
	if email == "" {
		return nil, nil
	}
	return s.users.User(ctx, email)
}

// sessionCache returns the decision cache for a session key, creating it on
// first sight.
func (s *Server) sessionCache(key string) *access.SessionCache {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	cache, ok := s.sessions[key]
	if !ok {
		cache = access.NewSessionCache()
		s.sessions[key] = cache
	}
	return cache
}

func sessionKey(req accessRequest, clientAddr string) string {
	if req.Session != "" {
		return req.Session
	}
	return clientAddr
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"code": code, "message": message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrMalformedQuery,
		domain.ErrNotFound,
		domain.ErrIndexUnavailable,
		domain.ErrPersistence,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// loggerMiddleware carries the server logger in the request context so the
// services can log without holding a logger themselves.
func (s *Server) loggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(logger.ContextWithLogger(r.Context(), s.logger)))
	})
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	writeError(w, http.StatusInternalServerError, "internal_error", msg)
}

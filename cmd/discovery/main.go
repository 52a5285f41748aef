package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/biblios/discovery/internal/config"
	logpkg "github.com/biblios/discovery/internal/logger"
	"github.com/biblios/discovery/internal/metrics"
	catalogrepo "github.com/biblios/discovery/internal/repository/catalog"
	indexrepo "github.com/biblios/discovery/internal/repository/index"
	"github.com/biblios/discovery/internal/repository/termcache"
	"github.com/biblios/discovery/internal/solr"
	chiTransport "github.com/biblios/discovery/internal/transport/chi"
	"github.com/biblios/discovery/internal/translate"
	accessuc "github.com/biblios/discovery/internal/usecase/access"
	facetsuc "github.com/biblios/discovery/internal/usecase/facets"
	searchuc "github.com/biblios/discovery/internal/usecase/search"
	suffixuc "github.com/biblios/discovery/internal/usecase/suffix"
	termsuc "github.com/biblios/discovery/internal/usecase/terms"
	"github.com/biblios/discovery/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting discovery API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("index_url", cfg.Index.URL),
		zap.String("cache_driver", cfg.Cache.Driver),
	)

	solrClient, err := solr.NewClient(solr.Config{
		BaseURL: cfg.Index.URL,
		Timeout: time.Duration(cfg.Index.TimeoutSec) * time.Second,
	})
	if err != nil {
		logger.Fatal("Failed to create index client", zap.Error(err))
	}

	catalog, err := catalogrepo.NewStore(cfg.Catalog.Path)
	if err != nil {
		logger.Fatal("Failed to open catalog store", zap.Error(err))
	}
	defer func() { _ = catalog.Close() }()

	// Term/facet value-list cache
	var cache termcache.Cache
	switch cfg.Cache.Driver {
	case "redis":
		cache, err = termcache.NewRedis(cfg.Cache.Addrs, cfg.Cache.Password, cfg.Cache.KeyPrefix)
		if err != nil {
			logger.Fatal("Failed to connect to redis cache", zap.Error(err))
		}
	default:
		cache = termcache.NewMemory()
	}
	cache = termcache.NewInstrumented(cache)

	labels, err := translate.New(cfg.Labels)
	if err != nil {
		logger.Fatal("Failed to build label registry", zap.Error(err))
	}

	// Register search metrics explicitly (no init())
	metrics.RegisterSearchMetrics()

	idx := indexrepo.New(solrClient)

	suffixSvc := suffixuc.New(suffixuc.Config{
		DocstructWhitelist:  cfg.Search.DocstructWhitelist,
		CollectionBlacklist: cfg.Search.CollectionBlacklist,
		DiscriminatorField:  cfg.Search.DiscriminatorField,
		DiscriminatorValue:  cfg.Search.DiscriminatorValue,
	}, catalog)

	engine := facetsuc.New(facetsuc.Config{
		Fields:              cfg.Facets.Fields,
		HierarchicalFields:  cfg.Facets.HierarchicalFields,
		RangeFields:         cfg.Facets.RangeFields,
		SortOrder:           cfg.Facets.SortOrder,
		PriorityValues:      cfg.Facets.PriorityValues,
		InitialElementCount: cfg.Facets.InitialElementCount,
		GroupAnyOperator:    cfg.Facets.GroupAnyOperator,
	}, labels)

	searchSvc := searchuc.New(searchuc.Config{
		PageSize:           cfg.Search.PageSize,
		ChildPageSize:      cfg.Search.ChildPageSize,
		ExpandRows:         cfg.Search.ExpandRows,
		FragmentLength:     cfg.Search.FragmentLength,
		Stopwords:          cfg.Search.Stopwords,
		DiscriminatorValue: cfg.Search.DiscriminatorValue,
		BoostedFields:      cfg.Search.BoostedFields,
	}, idx, suffixSvc, engine, labels)

	termsSvc := termsuc.New(termsuc.Config{
		Aggregated: cfg.Search.Aggregated,
		CacheTTL:   time.Duration(cfg.Cache.TTLSec) * time.Second,
	}, idx, cache)

	evaluator := accessuc.NewEvaluator(catalog, idx)

	server := chiTransport.NewServer(searchSvc, termsSvc, evaluator, engine, idx, catalog, suffixSvc, cache, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Routes(),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}
	logger.Info("Server stopped")
}

package config

import "testing"

func validConfig() Config {
	cfg := Config{
		HTTP:    HTTPConfig{Port: 8080},
		Index:   IndexConfig{URL: "http://localhost:8983/solr/records"},
		Catalog: CatalogConfig{Path: "catalog.db"},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_Valid(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingIndexURL(t *testing.T) {
	cfg := validConfig()
	cfg.Index.URL = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing index url")
	}
}

func TestValidate_MissingCatalogPath(t *testing.T) {
	cfg := validConfig()
	cfg.Catalog.Path = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing catalog path")
	}
}

func TestValidate_RedisDriverRequiresAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Cache.Driver = "redis"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for redis driver without addrs")
	}

	cfg.Cache.Addrs = []string{"localhost:6379"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error with addrs set: %v", err)
	}
}

func TestValidate_UnknownCacheDriver(t *testing.T) {
	cfg := validConfig()
	cfg.Cache.Driver = "memcached"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown cache driver")
	}
}

func TestValidate_FacetSortOrder(t *testing.T) {
	valid := []string{
		"count", "numerical", "numerical_asc", "numerical_desc",
		"alphabetical", "alphabetical_asc", "alphabetical_desc",
	}
	for _, order := range valid {
		t.Run("order="+order, func(t *testing.T) {
			cfg := validConfig()
			cfg.Facets.SortOrder = map[string]string{"DC": order}
			if err := cfg.Validate(); err != nil {
				t.Fatalf("unexpected error for valid sort order %q: %v", order, err)
			}
		})
	}

	cfg := validConfig()
	cfg.Facets.SortOrder = map[string]string{"DC": "random"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown sort order")
	}
}

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	if cfg.Cache.Driver != "memory" {
		t.Errorf("cache driver default = %q, want memory", cfg.Cache.Driver)
	}
	if cfg.Search.PageSize != 10 {
		t.Errorf("page size default = %d, want 10", cfg.Search.PageSize)
	}
	if cfg.Search.FragmentLength != 200 {
		t.Errorf("fragment length default = %d, want 200", cfg.Search.FragmentLength)
	}
	if cfg.Facets.InitialElementCount != 10 {
		t.Errorf("initial element count default = %d, want 10", cfg.Facets.InitialElementCount)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("DISCOVERY_TEST_URL", "http://solr:8983/solr/records")

	got := string(expandEnvVars([]byte("url: ${DISCOVERY_TEST_URL}")))
	if got != "url: http://solr:8983/solr/records" {
		t.Errorf("expandEnvVars = %q", got)
	}

	got = string(expandEnvVars([]byte("path: ${DISCOVERY_TEST_MISSING:-catalog.db}")))
	if got != "path: catalog.db" {
		t.Errorf("expandEnvVars with default = %q", got)
	}
}

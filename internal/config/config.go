package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the discovery API configuration.
type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Index   IndexConfig   `yaml:"index"`
	Catalog CatalogConfig `yaml:"catalog"`
	Cache   CacheConfig   `yaml:"cache"`
	Search  SearchConfig  `yaml:"search"`
	Facets  FacetsConfig  `yaml:"facets"`
	// Labels maps locale -> stored value -> display label.
	Labels  map[string]map[string]string `yaml:"labels"`
	Logging LoggingConfig                `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// IndexConfig holds the connection to the external inverted-index service.
type IndexConfig struct {
	URL        string `yaml:"url"` // Solr core URL
	TimeoutSec int    `yaml:"timeout_sec"`
}

// CatalogConfig holds the license/user/IP catalog store settings.
type CatalogConfig struct {
	Path string `yaml:"path"` // sqlite database file
}

// CacheConfig holds the term/facet value-list cache settings.
type CacheConfig struct {
	Driver    string   `yaml:"driver"` // memory, redis (default: memory)
	Addrs     []string `yaml:"addrs"`
	Password  string   `yaml:"password"`
	KeyPrefix string   `yaml:"key_prefix"`
	TTLSec    int      `yaml:"ttl_sec"`
}

// SearchConfig holds query composition and hit assembly settings.
type SearchConfig struct {
	PageSize            int      `yaml:"page_size"`
	Aggregated          bool     `yaml:"aggregated"`
	ExpandRows          int      `yaml:"expand_rows"`
	ChildPageSize       int      `yaml:"child_page_size"`
	FragmentLength      int      `yaml:"fragment_length"`
	DocstructWhitelist  []string `yaml:"docstruct_whitelist"`
	CollectionBlacklist []string `yaml:"collection_blacklist"`
	DiscriminatorField  string   `yaml:"discriminator_field"`
	DiscriminatorValue  string   `yaml:"discriminator_value"`
	Stopwords           []string `yaml:"stopwords"`
	BoostedFields       []string `yaml:"boosted_fields"`
}

// FacetsConfig holds drill-down settings.
type FacetsConfig struct {
	Fields              []string            `yaml:"fields"`
	HierarchicalFields  []string            `yaml:"hierarchical_fields"`
	RangeFields         []string            `yaml:"range_fields"`
	SortOrder           map[string]string   `yaml:"sort_order"` // numerical[_asc|_desc], alphabetical[_asc|_desc], count
	PriorityValues      map[string][]string `yaml:"priority_values"`
	InitialElementCount int                 `yaml:"initial_element_count"`
	GroupAnyOperator    bool                `yaml:"group_any_operator"` // OR-join hierarchical facet groups
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Index.TimeoutSec <= 0 {
		c.Index.TimeoutSec = 30
	}
	if c.Cache.Driver == "" {
		c.Cache.Driver = "memory"
	}
	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = "discovery:"
	}
	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 300
	}
	if c.Search.PageSize <= 0 {
		c.Search.PageSize = 10
	}
	if c.Search.ExpandRows <= 0 {
		c.Search.ExpandRows = 100
	}
	if c.Search.ChildPageSize <= 0 {
		c.Search.ChildPageSize = 5
	}
	if c.Search.FragmentLength <= 0 {
		c.Search.FragmentLength = 200
	}
	if c.Facets.InitialElementCount <= 0 {
		c.Facets.InitialElementCount = 10
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Index.URL == "" {
		return fmt.Errorf("index.url is required")
	}
	if c.Catalog.Path == "" {
		return fmt.Errorf("catalog.path is required")
	}
	switch c.Cache.Driver {
	case "memory":
	case "redis":
		if len(c.Cache.Addrs) == 0 {
			return fmt.Errorf("cache.addrs is required for the redis driver")
		}
	default:
		return fmt.Errorf("cache.driver must be \"memory\" or \"redis\", got %q", c.Cache.Driver)
	}
	for field, order := range c.Facets.SortOrder {
		switch order {
		case "count", "numerical", "numerical_asc", "numerical_desc",
			"alphabetical", "alphabetical_asc", "alphabetical_desc":
		default:
			return fmt.Errorf("facets.sort_order.%s: unknown sort order %q", field, order)
		}
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}

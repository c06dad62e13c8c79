// Package config loads the gateway configuration from environment variables
// and an optional YAML file.
//
// Environment variables:
//
//	GRAPHQL_ENV                    development | production | test (default development)
//	GRAPHQL_ENDPOINT               upstream GraphQL endpoint
//	GRAPHQL_MAX_QUERY_DEPTH        maximum selection nesting (default 10)
//	GRAPHQL_MAX_QUERY_COMPLEXITY   maximum weighted field count (default 1000)
//	GRAPHQL_REQUEST_TIMEOUT_MS     transport timeout in milliseconds (default 10000)
//	GRAPHQL_RATE_LIMIT_REQUESTS    requests per window (default 60)
//	GRAPHQL_RATE_LIMIT_WINDOW_MS   window length in milliseconds (default 60000)
//
// An unparseable depth or complexity limit becomes NaN, which disables the
// corresponding check. Unparseable timeout and rate limit settings fall back
// to their defaults and are reported in Config.Warnings.
package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/llehouerou/go-graphql-guard/pkg/analyzer"
	"github.com/llehouerou/go-graphql-guard/pkg/masking"
	"github.com/llehouerou/go-graphql-guard/pkg/ratelimit"
	"github.com/llehouerou/go-graphql-guard/types"
)

// Environment variable names.
const (
	EnvEnvironment        = "GRAPHQL_ENV"
	EnvEndpoint           = "GRAPHQL_ENDPOINT"
	EnvMaxQueryDepth      = "GRAPHQL_MAX_QUERY_DEPTH"
	EnvMaxQueryComplexity = "GRAPHQL_MAX_QUERY_COMPLEXITY"
	EnvRequestTimeoutMs   = "GRAPHQL_REQUEST_TIMEOUT_MS"
	EnvRateLimitRequests  = "GRAPHQL_RATE_LIMIT_REQUESTS"
	EnvRateLimitWindowMs  = "GRAPHQL_RATE_LIMIT_WINDOW_MS"
)

// DefaultRequestTimeout is the transport timeout used when none is configured.
const DefaultRequestTimeout = 10 * time.Second

// Environment is the deployment environment. It selects masking defaults and
// audit verbosity.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
	Test        Environment = "test"
)

// ParseEnvironment maps a string to an Environment. Unknown values map to
// Development.
func ParseEnvironment(s string) Environment {
	switch Environment(strings.ToLower(strings.TrimSpace(s))) {
	case Production, "prod":
		return Production
	case Test, "testing":
		return Test
	default:
		return Development
	}
}

// Config holds every setting of the gateway.
type Config struct {
	Environment        Environment
	Endpoint           string
	MaxQueryDepth      float64
	MaxQueryComplexity float64
	RequestTimeout     time.Duration
	RateLimitRequests  int
	RateLimitWindow    time.Duration

	// MaskingOverrides are applied on top of the environment defaults by
	// Masking.
	MaskingOverrides MaskingOverrides

	// Warnings lists settings that could not be parsed and were replaced.
	Warnings []string
}

// MaskingOverrides are optional masking settings read from a config file.
// Nil fields keep the environment defaults.
type MaskingOverrides struct {
	EnableMasking        *bool    `yaml:"enable_masking"`
	MaskSensitiveFields  *bool    `yaml:"mask_sensitive_fields"`
	LogSafeMode          *bool    `yaml:"log_safe_mode"`
	MaskingPattern       string   `yaml:"masking_pattern"`
	SensitiveFields      []string `yaml:"sensitive_fields"`
	PartialMaskingFields []string `yaml:"partial_masking_fields"`
}

// Default returns the built-in defaults for the development environment.
func Default() Config {
	return Config{
		Environment:        Development,
		Endpoint:           types.DefaultEndpoint,
		MaxQueryDepth:      analyzer.DefaultMaxDepth,
		MaxQueryComplexity: analyzer.DefaultMaxComplexity,
		RequestTimeout:     DefaultRequestTimeout,
		RateLimitRequests:  ratelimit.DefaultLimit,
		RateLimitWindow:    ratelimit.DefaultWindow,
	}
}

// FromEnv reads the configuration from the process environment.
func FromEnv() Config {
	return FromLookup(os.LookupEnv)
}

// FromLookup reads the configuration through lookup, which has the
// signature of os.LookupEnv.
func FromLookup(lookup func(string) (string, bool)) Config {
	cfg := Default()
	lookup = nonEmpty(lookup)

	if v, ok := lookup(EnvEnvironment); ok {
		cfg.Environment = ParseEnvironment(v)
	}
	if v, ok := lookup(EnvEndpoint); ok {
		cfg.Endpoint = v
	}
	if v, ok := lookup(EnvMaxQueryDepth); ok {
		cfg.MaxQueryDepth = parseLimit(v)
	}
	if v, ok := lookup(EnvMaxQueryComplexity); ok {
		cfg.MaxQueryComplexity = parseLimit(v)
	}
	if v, ok := lookup(EnvRequestTimeoutMs); ok {
		if ms, err := parsePositiveInt(v); err == nil {
			cfg.RequestTimeout = time.Duration(ms) * time.Millisecond
		} else {
			cfg.warnf("%s=%q: %v, using %s", EnvRequestTimeoutMs, v, err, cfg.RequestTimeout)
		}
	}
	if v, ok := lookup(EnvRateLimitRequests); ok {
		if n, err := parsePositiveInt(v); err == nil {
			cfg.RateLimitRequests = n
		} else {
			cfg.warnf("%s=%q: %v, using %d", EnvRateLimitRequests, v, err, cfg.RateLimitRequests)
		}
	}
	if v, ok := lookup(EnvRateLimitWindowMs); ok {
		if ms, err := parsePositiveInt(v); err == nil {
			cfg.RateLimitWindow = time.Duration(ms) * time.Millisecond
		} else {
			cfg.warnf("%s=%q: %v, using %s", EnvRateLimitWindowMs, v, err, cfg.RateLimitWindow)
		}
	}
	return cfg
}

// nonEmpty wraps lookup so that variables set to blank strings count as
// unset. Values are trimmed.
func nonEmpty(lookup func(string) (string, bool)) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
}

func (c *Config) warnf(format string, args ...any) {
	c.Warnings = append(c.Warnings, fmt.Sprintf(format, args...))
}

// parseLimit parses an integer limit. Anything that is not an integer yields
// NaN.
func parseLimit(s string) float64 {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return math.NaN()
	}
	return float64(n)
}

func parsePositiveInt(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("not an integer")
	}
	if n <= 0 {
		return 0, fmt.Errorf("must be positive")
	}
	return n, nil
}

// Development reports whether the configuration targets development.
func (c Config) Development() bool {
	return c.Environment == Development
}

// Masking returns the masking configuration: the environment defaults with
// any file overrides applied.
func (c Config) Masking() masking.Config {
	mc := masking.DefaultConfig(c.Development())
	o := c.MaskingOverrides
	if o.EnableMasking != nil {
		mc.EnableMasking = *o.EnableMasking
	}
	if o.MaskSensitiveFields != nil {
		mc.MaskSensitiveFields = *o.MaskSensitiveFields
	}
	if o.LogSafeMode != nil {
		mc.LogSafeMode = *o.LogSafeMode
	}
	if o.MaskingPattern != "" {
		mc.MaskingPattern = o.MaskingPattern
	}
	if o.SensitiveFields != nil {
		mc.SensitiveFields = append([]string(nil), o.SensitiveFields...)
	}
	if o.PartialMaskingFields != nil {
		mc.PartialMaskingFields = append([]string(nil), o.PartialMaskingFields...)
	}
	return mc
}

// fileConfig mirrors the YAML file layout. Pointer fields distinguish
// "absent" from zero values.
type fileConfig struct {
	Environment string `yaml:"environment"`
	Endpoint    string `yaml:"endpoint"`
	Limits      struct {
		MaxQueryDepth      *int `yaml:"max_query_depth"`
		MaxQueryComplexity *int `yaml:"max_query_complexity"`
		RequestTimeoutMs   *int `yaml:"request_timeout_ms"`
	} `yaml:"limits"`
	RateLimit struct {
		Requests *int `yaml:"requests"`
		WindowMs *int `yaml:"window_ms"`
	} `yaml:"rate_limit"`
	Masking MaskingOverrides `yaml:"masking"`
}

// Load reads the environment configuration and overlays the YAML file at
// path on top of it. An empty path returns the environment configuration.
func Load(path string) (Config, error) {
	cfg := FromEnv()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := cfg.apply(data); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// apply overlays YAML data on c.
func (c *Config) apply(data []byte) error {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return err
	}

	if fc.Environment != "" {
		c.Environment = ParseEnvironment(fc.Environment)
	}
	if fc.Endpoint != "" {
		c.Endpoint = fc.Endpoint
	}
	if fc.Limits.MaxQueryDepth != nil {
		c.MaxQueryDepth = float64(*fc.Limits.MaxQueryDepth)
	}
	if fc.Limits.MaxQueryComplexity != nil {
		c.MaxQueryComplexity = float64(*fc.Limits.MaxQueryComplexity)
	}
	if fc.Limits.RequestTimeoutMs != nil {
		if *fc.Limits.RequestTimeoutMs <= 0 {
			return fmt.Errorf("limits.request_timeout_ms must be positive, got %d", *fc.Limits.RequestTimeoutMs)
		}
		c.RequestTimeout = time.Duration(*fc.Limits.RequestTimeoutMs) * time.Millisecond
	}
	if fc.RateLimit.Requests != nil {
		if *fc.RateLimit.Requests <= 0 {
			return fmt.Errorf("rate_limit.requests must be positive, got %d", *fc.RateLimit.Requests)
		}
		c.RateLimitRequests = *fc.RateLimit.Requests
	}
	if fc.RateLimit.WindowMs != nil {
		if *fc.RateLimit.WindowMs <= 0 {
			return fmt.Errorf("rate_limit.window_ms must be positive, got %d", *fc.RateLimit.WindowMs)
		}
		c.RateLimitWindow = time.Duration(*fc.RateLimit.WindowMs) * time.Millisecond
	}
	c.MaskingOverrides = fc.Masking
	return nil
}

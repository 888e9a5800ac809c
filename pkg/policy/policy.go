// Package policy maps named use cases to cache TTLs.
//
// A Policy is built once at startup from the environment and an optional
// YAML file, validated, and then only read.
package policy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Sternrassler/go-cachekit/pkg/cache"
)

// FallbackTTLSeconds is used when no default TTL is configured.
const FallbackTTLSeconds = 300

const (
	envDefaultTTL      = "DEFAULT_TTL_SECONDS"
	envCacheDefaultTTL = "CACHE_DEFAULT_TTL_SECONDS"
	envTTLSuffix       = "_TTL_SECONDS"
)

// CachePolicy is the resolved policy for one use case.
type CachePolicy struct {
	TTLSeconds int
}

// SetOptions converts the policy into options for cache.Client.Set.
func (p CachePolicy) SetOptions() cache.SetOptions {
	return cache.SetOptions{TTLSeconds: p.TTLSeconds}
}

// Policy resolves use cases to TTLs. It is safe for concurrent reads.
type Policy struct {
	defaultTTL int
	// explicit is false when defaultTTL came from FallbackTTLSeconds
	explicit  bool
	overrides map[string]int
}

// New validates the configuration and returns a Policy.
// A defaultTTL of 0 selects FallbackTTLSeconds.
func New(defaultTTL int, overrides map[string]int) (*Policy, error) {
	p := &Policy{
		defaultTTL: defaultTTL,
		explicit:   defaultTTL != 0,
		overrides:  make(map[string]int, len(overrides)),
	}

	if defaultTTL < 0 {
		return nil, &cache.ConfigurationError{
			Field:   "default_ttl_seconds",
			Message: fmt.Sprintf("must be positive, got %d", defaultTTL),
		}
	}
	if defaultTTL == 0 {
		p.defaultTTL = FallbackTTLSeconds
	}

	for name, ttl := range overrides {
		useCase := Normalize(name)
		if useCase == "" {
			return nil, &cache.ConfigurationError{Field: "use_cases", Message: "empty use case name"}
		}
		if ttl <= 0 {
			return nil, &cache.ConfigurationError{
				Field:   useCase,
				Message: fmt.Sprintf("ttl must be positive, got %d", ttl),
			}
		}
		p.overrides[useCase] = ttl
	}

	return p, nil
}

// Default returns a Policy with only FallbackTTLSeconds.
func Default() *Policy {
	return &Policy{defaultTTL: FallbackTTLSeconds, overrides: map[string]int{}}
}

// Get returns the override for useCase, or the default TTL.
func (p *Policy) Get(useCase string) CachePolicy {
	if ttl, ok := p.overrides[Normalize(useCase)]; ok {
		return CachePolicy{TTLSeconds: ttl}
	}
	return CachePolicy{TTLSeconds: p.defaultTTL}
}

// DefaultTTL returns the TTL used for use cases without an override.
func (p *Policy) DefaultTTL() int {
	return p.defaultTTL
}

// Overrides returns a copy of the per-use-case TTLs.
func (p *Policy) Overrides() map[string]int {
	out := make(map[string]int, len(p.overrides))
	for k, v := range p.overrides {
		out[k] = v
	}
	return out
}

// UseCases returns the overridden use-case names, sorted.
func (p *Policy) UseCases() []string {
	names := make([]string, 0, len(p.overrides))
	for k := range p.overrides {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Normalize canonicalizes a use-case name: trimmed, lower case, with '-',
// '.' and spaces replaced by '_'. "Search-Results" and "SEARCH_RESULTS"
// name the same use case.
func Normalize(useCase string) string {
	s := strings.ToLower(strings.TrimSpace(useCase))
	return strings.Map(func(r rune) rune {
		switch r {
		case '-', '.', ' ':
			return '_'
		}
		return r
	}, s)
}

// Merge overlays over on base: an explicit default and every override in
// over win. Either argument may be nil.
func Merge(base, over *Policy) *Policy {
	if base == nil {
		base = Default()
	}
	if over == nil {
		over = Default()
	}

	merged := &Policy{
		defaultTTL: base.defaultTTL,
		explicit:   base.explicit,
		overrides:  base.Overrides(),
	}
	if over.explicit {
		merged.defaultTTL = over.defaultTTL
		merged.explicit = true
	}
	for k, v := range over.overrides {
		merged.overrides[k] = v
	}
	return merged
}

// FromEnviron builds a Policy from KEY=VALUE pairs as returned by os.Environ.
//
// DEFAULT_TTL_SECONDS (or CACHE_DEFAULT_TTL_SECONDS) sets the default and
// every other <USE_CASE>_TTL_SECONDS variable sets an override.
func FromEnviron(env []string) (*Policy, error) {
	defaultTTL := 0
	overrides := make(map[string]int)

	var aliasTTL *int
	for _, kv := range env {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasSuffix(key, envTTLSuffix) {
			continue
		}

		switch key {
		case envDefaultTTL, envCacheDefaultTTL:
			n, err := parseSeconds(key, value)
			if err != nil {
				return nil, err
			}
			if key == envDefaultTTL {
				defaultTTL = n
			} else {
				aliasTTL = &n
			}
			continue
		}

		useCase := strings.TrimSuffix(key, envTTLSuffix)
		if useCase == "" {
			continue
		}
		n, err := parseSeconds(key, value)
		if err != nil {
			return nil, err
		}
		overrides[Normalize(useCase)] = n
	}

	if defaultTTL == 0 && aliasTTL != nil {
		defaultTTL = *aliasTTL
	}
	return New(defaultTTL, overrides)
}

// fileConfig is the YAML policy file layout.
type fileConfig struct {
	DefaultTTLSeconds int            `yaml:"default_ttl_seconds"`
	UseCases          map[string]int `yaml:"use_cases"`
}

// LoadFile reads a YAML policy file:
//
//	default_ttl_seconds: 300
//	use_cases:
//	  search_results: 30
//	  controls: 3600
func LoadFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("policy file %s: %w", path, err)
	}
	return p, nil
}

// Parse decodes a YAML policy document. Unknown fields are rejected.
func Parse(data []byte) (*Policy, error) {
	var cfg fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, &cache.ConfigurationError{Field: "policy", Message: "invalid yaml", Err: err}
	}
	return New(cfg.DefaultTTLSeconds, cfg.UseCases)
}

func parseSeconds(key, value string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, &cache.ConfigurationError{
			Field:   key,
			Message: fmt.Sprintf("not an integer: %q", value),
			Err:     err,
		}
	}
	return n, nil
}

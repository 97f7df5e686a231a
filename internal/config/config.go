package config

import (
	"bytes"
	"fmt"
	"maps"
	"os"
	"regexp"
	"slices"
	"time"

	"github.com/dnswlt/apicsync/internal/api"
	"github.com/dnswlt/apicsync/internal/apic"
	"gopkg.in/yaml.v3"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 10.0
)

// Provider configures one API Connect instance to ingest from.
type Provider struct {
	BaseURL      string `yaml:"baseUrl"`
	Realm        string `yaml:"realm"`
	ClientID     string `yaml:"clientId"`
	ClientSecret string `yaml:"clientSecret"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	// Interval between ingestion runs in serve mode. Zero disables scheduled runs.
	Schedule           time.Duration `yaml:"schedule"`
	Timeout            time.Duration `yaml:"timeout"`
	InsecureSkipVerify bool          `yaml:"insecureSkipVerify"`
	// Whether to fetch the OpenAPI documents of APIs. Defaults to true.
	FetchDocuments *bool `yaml:"fetchDocuments"`
	// Optional CEL expression selecting the catalogs to ingest.
	CatalogFilter string  `yaml:"catalogFilter"`
	RateLimit     float64 `yaml:"rateLimit"`
}

// ShouldFetchDocuments reports whether API documents should be fetched.
func (p *Provider) ShouldFetchDocuments() bool {
	return p.FetchDocuments == nil || *p.FetchDocuments
}

// ClientConfig returns the client configuration for the provider with the given id.
func (p *Provider) ClientConfig(id string) apic.ClientConfig {
	return apic.ClientConfig{
		ProviderID:         id,
		BaseURL:            p.BaseURL,
		Realm:              p.Realm,
		ClientID:           p.ClientID,
		ClientSecret:       p.ClientSecret,
		Username:           p.Username,
		Password:           p.Password,
		Timeout:            p.Timeout,
		InsecureSkipVerify: p.InsecureSkipVerify,
		RateLimit:          p.RateLimit,
	}
}

// Sink configures where emitted entities are written.
type Sink struct {
	// Directory that receives one YAML file per entity.
	// If empty, entities are only logged.
	Dir string `yaml:"dir"`
	// Commit the directory to git after each run.
	GitCommit bool `yaml:"gitCommit"`
}

// Bundle is the umbrella struct for the serialized application configuration YAML.
type Bundle struct {
	Providers map[string]*Provider `yaml:"providers"`
	Sink      Sink                 `yaml:"sink"`
}

// ProviderIDs returns the sorted ids of all configured providers.
func (b *Bundle) ProviderIDs() []string {
	return slices.Sorted(maps.Keys(b.Providers))
}

func (b *Bundle) setDefaults() {
	for _, p := range b.Providers {
		if p.Realm == "" {
			p.Realm = apic.DefaultRealm
		}
		if p.Timeout == 0 {
			p.Timeout = DefaultTimeout
		}
		if p.RateLimit == 0 {
			p.RateLimit = DefaultRateLimit
		}
	}
}

// Validate checks the configuration for missing and inconsistent settings.
func (b *Bundle) Validate() error {
	if len(b.Providers) == 0 {
		return fmt.Errorf("no providers configured")
	}
	for _, id := range b.ProviderIDs() {
		p := b.Providers[id]
		if !api.IsValidName(id) {
			return fmt.Errorf("invalid provider id %q", id)
		}
		if p == nil {
			return fmt.Errorf("provider %s: empty configuration", id)
		}
		if p.BaseURL == "" {
			return fmt.Errorf("provider %s: baseUrl is required", id)
		}
		if (p.ClientID == "") != (p.ClientSecret == "") {
			return fmt.Errorf("provider %s: clientId and clientSecret must be set together", id)
		}
		if (p.Username == "") != (p.Password == "") {
			return fmt.Errorf("provider %s: username and password must be set together", id)
		}
		if p.Schedule < 0 || p.Timeout < 0 || p.RateLimit < 0 {
			return fmt.Errorf("provider %s: schedule, timeout, and rateLimit must not be negative", id)
		}
	}
	if b.Sink.GitCommit && b.Sink.Dir == "" {
		return fmt.Errorf("sink: gitCommit requires dir")
	}
	return nil
}

// envRefRE matches ${NAME} references to environment variables.
// Other uses of $ are left alone.
var envRefRE = regexp.MustCompile(`\$\{[A-Za-z_][A-Za-z0-9_]*\}`)

// Parse parses and validates the configuration YAML in bs.
// ${NAME} references are replaced by the values of environment variables.
func Parse(bs []byte) (*Bundle, error) {
	expanded := envRefRE.ReplaceAllFunc(bs, func(m []byte) []byte {
		return []byte(os.Getenv(string(m[2 : len(m)-1])))
	})
	dec := yaml.NewDecoder(bytes.NewReader(expanded))
	dec.KnownFields(true)
	var bundle Bundle
	if err := dec.Decode(&bundle); err != nil {
		return nil, fmt.Errorf("invalid configuration YAML: %v", err)
	}
	bundle.setDefaults()
	if err := bundle.Validate(); err != nil {
		return nil, err
	}
	return &bundle, nil
}

// Load reads the configuration from configPath.
func Load(configPath string) (*Bundle, error) {
	bs, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("could not read config %q: %v", configPath, err)
	}
	bundle, err := Parse(bs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", configPath, err)
	}
	return bundle, nil
}

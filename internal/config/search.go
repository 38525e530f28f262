package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/kailas-cloud/docsync/internal/domain"
	"github.com/kailas-cloud/docsync/internal/domain/endpoint"
)

// Search option defaults.
const (
	DefaultProtocol = "http"
	DefaultHost     = "localhost"
	DefaultPort     = 9200
	DefaultIndex    = "default"
	DefaultType     = "default"
)

// SearchOptions is the user-facing search engine configuration. Zero values mean "unset".
// URL is an alternative to Protocol/Host/Port; when both are given they must agree.
type SearchOptions struct {
	Protocol string `yaml:"protocol"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	URL      string `yaml:"url"`
	Prefix   string `yaml:"prefix"`
	Index    string `yaml:"index"`
	Type     string `yaml:"type"`
}

// url must carry host and port; the scheme is optional.
var urlRegex = regexp.MustCompile(`^(?:(https?)://)?(.+):([0-9]+)/?$`)

// Merge applies defaults to o and resolves URL against the discrete fields.
// Conflicts between them are reported as *domain.ConfigurationError.
func Merge(o SearchOptions) (endpoint.Options, error) {
	merged := endpoint.Options{
		Protocol: o.Protocol,
		Host:     o.Host,
		Port:     o.Port,
		Prefix:   o.Prefix,
		Index:    o.Index,
		Type:     o.Type,
	}

	if o.URL != "" {
		m := urlRegex.FindStringSubmatch(o.URL)
		if m == nil {
			return endpoint.Options{}, domain.NewConfigurationError("url",
				fmt.Sprintf("must contain host and port, got %q", o.URL))
		}
		scheme, host, portStr := m[1], strings.TrimSuffix(strings.TrimPrefix(m[2], "["), "]"), m[3]

		if scheme != "" && o.Protocol != "" && scheme != o.Protocol {
			return endpoint.Options{}, domain.NewConfigurationError("protocol",
				fmt.Sprintf("url specifies %q but protocol is %q; pick one", scheme, o.Protocol))
		}
		if scheme != "" {
			merged.Protocol = scheme
		}

		if o.Host != "" && host != o.Host {
			return endpoint.Options{}, domain.NewConfigurationError("host",
				fmt.Sprintf("url specifies %q but host is %q; pick one", host, o.Host))
		}
		merged.Host = host

		port, err := strconv.Atoi(portStr)
		if err != nil {
			return endpoint.Options{}, domain.NewConfigurationError("url", "port is not a number")
		}
		if o.Port != 0 && port != o.Port {
			return endpoint.Options{}, domain.NewConfigurationError("port",
				fmt.Sprintf("url specifies %d but port is %d; pick one", port, o.Port))
		}
		merged.Port = port
	}

	if merged.Protocol == "" {
		merged.Protocol = DefaultProtocol
	}
	if merged.Host == "" {
		merged.Host = DefaultHost
	}
	if merged.Port == 0 {
		merged.Port = DefaultPort
	}
	if merged.Index == "" {
		merged.Index = DefaultIndex
	}
	if merged.Type == "" {
		merged.Type = DefaultType
	}

	if merged.Protocol != "http" && merged.Protocol != "https" {
		return endpoint.Options{}, domain.NewConfigurationError("protocol",
			fmt.Sprintf("must be http or https, got %q", merged.Protocol))
	}
	if merged.Port < 1 || merged.Port > 65535 {
		return endpoint.Options{}, domain.NewConfigurationError("port",
			fmt.Sprintf("must be between 1 and 65535, got %d", merged.Port))
	}
	return merged, nil
}

// Overlay returns base with every field set in override taking precedence.
// An override URL describes the whole endpoint, so base's connection fields are dropped.
func Overlay(base, override SearchOptions) SearchOptions {
	out := base
	if override.URL != "" {
		out.Protocol, out.Host, out.Port = "", "", 0
		out.URL = override.URL
	}
	if override.Protocol != "" {
		out.Protocol = override.Protocol
	}
	if override.Host != "" {
		out.Host = override.Host
	}
	if override.Port != 0 {
		out.Port = override.Port
	}
	if override.Prefix != "" {
		out.Prefix = override.Prefix
	}
	if override.Index != "" {
		out.Index = override.Index
	}
	if override.Type != "" {
		out.Type = override.Type
	}
	return out
}

// Resolver produces the effective options for a collection: its overrides merged over the
// global options. When neither sets an index, the collection name is used so collections
// never share (and resync over) each other's index. Results are cached and immutable.
type Resolver struct {
	global      SearchOptions
	collections map[string]SearchOptions

	mu    sync.RWMutex
	cache map[string]endpoint.Options
}

// NewResolver creates a Resolver.
func NewResolver(global SearchOptions, collections map[string]SearchOptions) *Resolver {
	return &Resolver{
		global:      global,
		collections: collections,
		cache:       make(map[string]endpoint.Options),
	}
}

// Resolve returns the effective options for collection.
func (r *Resolver) Resolve(collection string) (endpoint.Options, error) {
	r.mu.RLock()
	opts, ok := r.cache[collection]
	r.mu.RUnlock()
	if ok {
		return opts, nil
	}

	effective := Overlay(r.global, r.collections[collection])
	if effective.Index == "" {
		effective.Index = collection
	}
	opts, err := Merge(effective)
	if err != nil {
		return endpoint.Options{}, fmt.Errorf("collection %q: %w", collection, err)
	}

	r.mu.Lock()
	r.cache[collection] = opts
	r.mu.Unlock()
	return opts, nil
}

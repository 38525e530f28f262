// Package endpoint derives search-engine URIs from connection options.
//
// Every function is pure: the same Options (and id) always produce the same URI.
// The chain is domain -> index -> type -> document; alias and bulk endpoints hang
// off the domain.
package endpoint

import (
	"net"
	"net/url"
	"strconv"
)

// Options identifies one search-engine index and document type.
// Treat as immutable once merged; copy before modifying.
type Options struct {
	Protocol string
	Host     string
	Port     int
	Prefix   string
	Index    string
	Type     string
}

// FullIndexName is prefix + "-" + index when a prefix is set, the index alone otherwise.
func (o Options) FullIndexName() string {
	if o.Prefix != "" {
		return o.Prefix + "-" + o.Index
	}
	return o.Index
}

// WithIndex returns a copy addressing the concrete index name, prefix already applied.
func (o Options) WithIndex(name string) Options {
	o.Prefix = ""
	o.Index = name
	return o
}

// Domain returns scheme://host:port.
func Domain(o Options) string {
	u := url.URL{Scheme: o.Protocol, Host: net.JoinHostPort(o.Host, strconv.Itoa(o.Port))}
	return u.String()
}

// Index returns the URI of the full index name.
func Index(o Options) string {
	return Domain(o) + "/" + url.PathEscape(o.FullIndexName())
}

// Type returns the URI of the document type inside the index.
func Type(o Options) string {
	return Index(o) + "/" + url.PathEscape(o.Type)
}

// Document returns the URI of a single document.
func Document(o Options, id string) string {
	return Type(o) + "/" + url.PathEscape(id)
}

// Aliases returns the alias management endpoint.
func Aliases(o Options) string {
	return Domain(o) + "/_aliases"
}

// AliasLookup returns the endpoint that resolves an alias to its indices.
func AliasLookup(o Options, alias string) string {
	return Domain(o) + "/_alias/" + url.PathEscape(alias)
}

// Bulk returns the bulk-load endpoint of o.Index. The prefix is not applied: bulk loads
// target a concrete generation, addressed through WithIndex.
func Bulk(o Options) string {
	return Domain(o) + "/" + url.PathEscape(o.Index) + "/_bulk"
}

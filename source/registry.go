package source

import (
	"fmt"
	"net/url"
	"sync"

	"github.com/charmbracelet/log"
)

// EndpointDef is an unparsed registry entry.
type EndpointDef struct {
	URL     string
	Decoder Decoder
}

// Endpoint is a known external IP service and the way to read its reply.
type Endpoint struct {
	URL     *url.URL
	Decoder Decoder
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s, (%s)", e.URL, e.Decoder)
}

// DefaultEndpoints are the services queried when no endpoints file is given.
var DefaultEndpoints = []EndpointDef{
	{URL: "https://icanhazip.com/"},
	{URL: "https://myexternalip.com/raw"},
	{URL: "https://ifconfig.io/ip"},
	{URL: "https://ipecho.net/plain"},
	{URL: "https://checkip.amazonaws.com/"},
	{URL: "http://whatismyip.akamai.com/"},
	{URL: "https://myip.dnsomatic.com/"},
	{URL: "https://diagnostic.opendns.com/myip"},
	{URL: "https://v4.ident.me/"},
	{URL: "https://v6.ident.me/"},
	{URL: "https://api4.ipify.org/"},
	{URL: "https://api6.ipify.org/"},
	{URL: "https://ipv4.wtfismyip.com/text"},
	{URL: "https://ipv6.wtfismyip.com/text"},
	{URL: "https://api64.ipify.org/?format=json", Decoder: JSONDecoder("ip")},
	{URL: "https://ifconfig.co/json", Decoder: JSONDecoder("ip")},
}

// Registry is an immutable, ordered list of endpoints. It is safe to share.
type Registry struct {
	endpoints []Endpoint
}

// NewRegistry parses every definition. Entries that fail to parse, are not
// absolute or use a scheme other than http(s) are logged and skipped.
func NewRegistry(defs []EndpointDef, logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.Default()
	}
	endpoints := make([]Endpoint, 0, len(defs))
	for _, def := range defs {
		u, err := parseEndpointURL(def.URL)
		if err != nil {
			logger.Warn("Failed to parse endpoint for HTTP source", "url", def.URL, "err", err)
			continue
		}
		endpoints = append(endpoints, Endpoint{URL: u, Decoder: def.Decoder})
	}
	return &Registry{endpoints: endpoints}
}

func parseEndpointURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("not an absolute url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	return u, nil
}

// Endpoints returns a copy of the registry entries in their configured order.
func (r *Registry) Endpoints() []Endpoint {
	out := make([]Endpoint, len(r.endpoints))
	copy(out, r.endpoints)
	return out
}

// Len returns the number of usable endpoints.
func (r *Registry) Len() int {
	return len(r.endpoints)
}

// DefaultRegistry returns the process-wide registry built from DefaultEndpoints.
var DefaultRegistry = sync.OnceValue(func() *Registry {
	return NewRegistry(DefaultEndpoints, nil)
})

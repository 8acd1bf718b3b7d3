package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultTimeout     = 2 * time.Second
	DefaultConcurrency = 10
	DefaultUserAgent   = "external-ip/1.0"

	maxBodySize = 1 << 20
)

// Options configures the HTTP source. Zero values select the defaults.
type Options struct {
	// Timeout bounds every single request.
	Timeout time.Duration
	// Concurrency caps the number of requests in flight.
	Concurrency int
	// Proxy routes all requests through an http, https or socks5 proxy.
	Proxy     string
	UserAgent string
	// Client replaces the internally built client. Proxy is ignored when set.
	Client *http.Client
	Logger *log.Logger
}

// HTTP queries every endpoint of a registry.
type HTTP struct {
	registry    *Registry
	client      *http.Client
	timeout     time.Duration
	concurrency int
	userAgent   string
	logger      *log.Logger
}

// NewHTTP builds the HTTP client. Its error is the only one that aborts a
// lookup; failures of individual endpoints are absorbed later.
func NewHTTP(registry *Registry, opts Options) (*HTTP, error) {
	h := &HTTP{
		registry:    registry,
		client:      opts.Client,
		timeout:     opts.Timeout,
		concurrency: opts.Concurrency,
		userAgent:   opts.UserAgent,
		logger:      opts.Logger,
	}
	if h.timeout <= 0 {
		h.timeout = DefaultTimeout
	}
	if h.concurrency <= 0 {
		h.concurrency = DefaultConcurrency
	}
	if h.userAgent == "" {
		h.userAgent = DefaultUserAgent
	}
	if h.logger == nil {
		h.logger = log.Default()
	}
	if h.client == nil {
		client, err := newClient(opts.Proxy, h.timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to build http client: %w", err)
		}
		h.client = client
	}
	return h, nil
}

func newClient(proxy string, timeout time.Duration) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url: %w", err)
		}
		switch proxyURL.Scheme {
		case "http", "https", "socks5":
		default:
			return nil, fmt.Errorf("unsupported proxy scheme %q", proxyURL.Scheme)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}, nil
}

// FetchAll queries all endpoints concurrently and returns the addresses that
// were both fetched and decoded. The order of the result is unspecified.
func (h *HTTP) FetchAll(ctx context.Context) []netip.Addr {
	endpoints := h.registry.Endpoints()
	results := make([]netip.Addr, len(endpoints))

	var g errgroup.Group
	g.SetLimit(h.concurrency)
	for i, endpoint := range endpoints {
		g.Go(func() error {
			addr, err := h.Fetch(ctx, endpoint)
			if err != nil {
				h.logger.Debug("Failed to retrieve IP", "source", endpoint, "err", err)
				return nil
			}
			results[i] = addr
			return nil
		})
	}
	_ = g.Wait()

	addrs := make([]netip.Addr, 0, len(results))
	for _, addr := range results {
		if addr.IsValid() {
			addrs = append(addrs, addr)
		}
	}
	return addrs
}

// Fetch queries a single endpoint.
func (h *HTTP) Fetch(ctx context.Context, endpoint Endpoint) (netip.Addr, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.URL.String(), nil)
	if err != nil {
		return netip.Addr{}, err
	}
	req.Header.Set("User-Agent", h.userAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return netip.Addr{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return netip.Addr{}, &StatusError{URL: endpoint.URL.String(), Code: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("failed to read response: %w", err)
	}
	return endpoint.Decoder.Decode(body)
}

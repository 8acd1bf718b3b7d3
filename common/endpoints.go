package common

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	singJson "github.com/sagernet/sing/common/json"
	"github.com/sagernet/sing/common/json/badoption"

	"github.com/getlantern/external-ip/source"
)

// EndpointsFile is the on-disk replacement for the built-in endpoint list.
// Comments are allowed.
//
//	{
//	  "timeout": "3s",
//	  "concurrency": 8,
//	  "endpoints": [
//	    {"url": "https://icanhazip.com/"},
//	    // JSON replies name the field holding the address
//	    {"url": "https://ifconfig.co/json", "json_field": "ip"}
//	  ]
//	}
type EndpointsFile struct {
	Timeout     badoption.Duration `json:"timeout,omitempty"`
	Concurrency int                `json:"concurrency,omitempty"`
	Endpoints   []EndpointEntry    `json:"endpoints"`
}

type EndpointEntry struct {
	URL       string `json:"url"`
	JSONField string `json:"json_field,omitempty"`
}

func ReadEndpointsFile(filename string) (*EndpointsFile, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return ParseEndpointsFile(data)
}

func ParseEndpointsFile(data []byte) (*EndpointsFile, error) {
	file, err := singJson.UnmarshalExtendedContext[EndpointsFile](context.Background(), data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse endpoints file: %w", err)
	}
	if len(file.Endpoints) == 0 {
		return nil, fmt.Errorf("endpoints file lists no endpoints")
	}
	return &file, nil
}

func (f *EndpointsFile) Defs() []source.EndpointDef {
	defs := make([]source.EndpointDef, 0, len(f.Endpoints))
	for _, e := range f.Endpoints {
		decoder := source.PlainDecoder()
		if e.JSONField != "" {
			decoder = source.JSONDecoder(e.JSONField)
		}
		defs = append(defs, source.EndpointDef{URL: e.URL, Decoder: decoder})
	}
	return defs
}

// LoadSources returns the registry and options for a lookup. With no
// endpoints file the shared default registry is used; otherwise the file's
// endpoints replace it and its timeout and concurrency fill in whatever opts
// leaves unset.
func LoadSources(endpointsFile string, opts source.Options) (*source.Registry, source.Options, error) {
	if endpointsFile == "" {
		return source.DefaultRegistry(), opts, nil
	}
	file, err := ReadEndpointsFile(endpointsFile)
	if err != nil {
		return nil, opts, err
	}
	if opts.Timeout == 0 {
		opts.Timeout = time.Duration(file.Timeout)
	}
	if opts.Concurrency == 0 {
		opts.Concurrency = file.Concurrency
	}
	registry := source.NewRegistry(file.Defs(), opts.Logger)
	log.Debug("Loaded endpoints file", "path", endpointsFile, "endpoints", registry.Len())
	return registry, opts, nil
}

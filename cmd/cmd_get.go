package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/netip"
	"os"

	"github.com/mdp/qrterminal/v3"
	"golang.org/x/sync/errgroup"

	"github.com/getlantern/external-ip/consensus"
	"github.com/getlantern/external-ip/source"
)

type GetCmd struct {
	JSON           bool `arg:"--json" help:"print the result as JSON"`
	QR             bool `arg:"--qr" help:"also render the preferred address as a QR code"`
	Require        bool `arg:"--require" help:"fail when no address could be determined"`
	EndpointReport bool `arg:"--endpoint-report" help:"print what every endpoint answered before the vote"`
}

func (c *GetCmd) Run() error {
	registry, opts, err := lookupSources()
	if err != nil {
		return err
	}
	var result consensus.Consensus
	if c.EndpointReport {
		addrs, err := endpointReport(context.Background(), os.Stdout, registry, opts)
		if err != nil {
			return err
		}
		result = consensus.FromAddrs(addrs)
	} else if result, err = consensus.Get(context.Background(), registry, opts); err != nil {
		return err
	}
	if c.Require && result.Empty() {
		return fmt.Errorf("no external address found using %d endpoints", registry.Len())
	}
	return c.print(os.Stdout, result)
}

func (c *GetCmd) print(w io.Writer, result consensus.Consensus) error {
	if c.JSON {
		data, err := json.Marshal(result)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
	if v4, ok := result.V4(); ok {
		fmt.Fprintf(w, "IPv4: %s\n", v4)
	} else {
		fmt.Fprintln(w, "IPv4: none")
	}
	if v6, ok := result.V6(); ok {
		fmt.Fprintf(w, "IPv6: %s\n", v6)
	} else {
		fmt.Fprintln(w, "IPv6: none")
	}
	if addr, ok := result.Preferred(); ok && c.QR {
		qrterminal.Generate(addr.String(), qrterminal.L, w)
	}
	return nil
}

// endpointReport queries every endpoint, writes one "endpoint -> result" line
// per endpoint in registry order and returns the addresses that decoded.
func endpointReport(ctx context.Context, w io.Writer, registry *source.Registry, opts source.Options) ([]netip.Addr, error) {
	httpSource, err := source.NewHTTP(registry, opts)
	if err != nil {
		return nil, err
	}
	endpoints := registry.Endpoints()
	addrs := make([]netip.Addr, len(endpoints))
	errs := make([]error, len(endpoints))

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = source.DefaultConcurrency
	}
	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, endpoint := range endpoints {
		g.Go(func() error {
			addrs[i], errs[i] = httpSource.Fetch(ctx, endpoint)
			return nil
		})
	}
	_ = g.Wait()

	var found []netip.Addr
	for i, endpoint := range endpoints {
		if errs[i] != nil {
			fmt.Fprintf(w, "%s -> error: %v\n", endpoint, errs[i])
			continue
		}
		fmt.Fprintf(w, "%s -> %s\n", endpoint, addrs[i])
		found = append(found, addrs[i])
	}
	return found, nil
}

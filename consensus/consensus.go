// Package consensus elects the external IPv4 and IPv6 address of the host
// from the replies of many external IP services.
//
//	c, err := consensus.GetDefault(ctx)
//	if err != nil {
//		return err
//	}
//	if v4, ok := c.V4(); ok {
//		fmt.Println(v4)
//	}
package consensus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/netip"
	"strings"

	"github.com/getlantern/external-ip/source"
)

// Consensus is the elected external address per family. Either may be absent.
type Consensus struct {
	v4 netip.Addr
	v6 netip.Addr
}

// Tally counts votes per distinct address.
type Tally map[netip.Addr]int

func (t Tally) Add(addr netip.Addr) {
	t[addr]++
}

// Winner returns the address with the most votes. Ties go to the address that
// sorts first, so the result does not depend on map iteration order.
func (t Tally) Winner() (netip.Addr, bool) {
	var best netip.Addr
	bestVotes := 0
	for addr, votes := range t {
		if votes > bestVotes || (votes == bestVotes && addr.Less(best)) {
			best, bestVotes = addr, votes
		}
	}
	return best, bestVotes > 0
}

// FromAddrs builds the consensus from a multiset of candidate addresses.
func FromAddrs(addrs []netip.Addr) Consensus {
	votesV4, votesV6 := Tally{}, Tally{}
	for _, addr := range addrs {
		addr = addr.Unmap()
		switch {
		case addr.Is4():
			votesV4.Add(addr)
		case addr.Is6():
			votesV6.Add(addr)
		}
	}
	var c Consensus
	c.v4, _ = votesV4.Winner()
	c.v6, _ = votesV6.Winner()
	return c
}

// Get queries every endpoint of registry and votes on the replies. The only
// error it returns is a failure to set up the HTTP client.
func Get(ctx context.Context, registry *source.Registry, opts source.Options) (Consensus, error) {
	httpSource, err := source.NewHTTP(registry, opts)
	if err != nil {
		return Consensus{}, err
	}
	return FromAddrs(httpSource.FetchAll(ctx)), nil
}

// GetDefault runs Get against the built-in endpoints with default options.
func GetDefault(ctx context.Context) (Consensus, error) {
	return Get(ctx, source.DefaultRegistry(), source.Options{})
}

func (c Consensus) V4() (netip.Addr, bool) {
	return c.v4, c.v4.IsValid()
}

func (c Consensus) V6() (netip.Addr, bool) {
	return c.v6, c.v6.IsValid()
}

// Preferred returns the IPv4 address if there is one, the IPv6 address otherwise.
func (c Consensus) Preferred() (netip.Addr, bool) {
	if c.v4.IsValid() {
		return c.v4, true
	}
	return c.v6, c.v6.IsValid()
}

func (c Consensus) Empty() bool {
	return !c.v4.IsValid() && !c.v6.IsValid()
}

func (c Consensus) Equal(other Consensus) bool {
	return c.v4 == other.v4 && c.v6 == other.v6
}

func (c Consensus) String() string {
	var parts []string
	if v4, ok := c.V4(); ok {
		parts = append(parts, "v4="+v4.String())
	}
	if v6, ok := c.V6(); ok {
		parts = append(parts, "v6="+v6.String())
	}
	if len(parts) == 0 {
		return "<none>"
	}
	return strings.Join(parts, " ")
}

type consensusJSON struct {
	IPv4 string `json:"ipv4,omitempty"`
	IPv6 string `json:"ipv6,omitempty"`
}

func (c Consensus) MarshalJSON() ([]byte, error) {
	var out consensusJSON
	if v4, ok := c.V4(); ok {
		out.IPv4 = v4.String()
	}
	if v6, ok := c.V6(); ok {
		out.IPv6 = v6.String()
	}
	return json.Marshal(out)
}

func (c *Consensus) UnmarshalJSON(data []byte) error {
	var in consensusJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	var parsed Consensus
	if in.IPv4 != "" {
		addr, err := netip.ParseAddr(in.IPv4)
		if err != nil || !addr.Is4() {
			return fmt.Errorf("invalid ipv4 %q", in.IPv4)
		}
		parsed.v4 = addr
	}
	if in.IPv6 != "" {
		addr, err := netip.ParseAddr(in.IPv6)
		if err != nil || !addr.Is6() {
			return fmt.Errorf("invalid ipv6 %q", in.IPv6)
		}
		parsed.v6 = addr
	}
	*c = parsed
	return nil
}

package common

import (
	"context"
	"errors"

	"github.com/getlantern/external-ip/consensus"
	"github.com/getlantern/external-ip/source"
)

var ErrNoPublicIP = errors.New("no public IP found")

// GetPublicIP returns the elected external address, preferring IPv4.
// It fails when no endpoint produced a usable reply.
func GetPublicIP(ctx context.Context, registry *source.Registry, opts source.Options) (string, error) {
	c, err := consensus.Get(ctx, registry, opts)
	if err != nil {
		return "", err
	}
	addr, ok := c.Preferred()
	if !ok {
		return "", ErrNoPublicIP
	}
	return addr.String(), nil
}

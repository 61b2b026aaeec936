package plugin

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/projecteru2/yavtep/internal/rpc"
)

// PortEndpoint is a compute host with the MACs of one network resident
// on it.
type PortEndpoint struct {
	Host string
	MACs []rpc.MacArg
}

// TenantLookup resolves overlay metadata owned by the control plane.
type TenantLookup interface {
	// VxlanSegment returns the single vxlan segmentation id of the
	// network, possibly a segment of a multi-segment network. A
	// network of any other type is a typed error.
	VxlanSegment(ctx context.Context, networkID string) (int, error)
	// NetworkEndpoints enumerates the compute hosts carrying ports of
	// the network, with their MACs and IPs.
	NetworkEndpoints(ctx context.Context, networkID string) ([]PortEndpoint, error)
}

// EndpointResolver maps compute hosts to their vxlan tunnel endpoints.
type EndpointResolver interface {
	TunnelIP(ctx context.Context, host string) (string, error)
	// HostByTunnelIP is the reverse lookup used to recognize locator
	// deletions that point at a known compute agent.
	HostByTunnelIP(ctx context.Context, tunnelIP string) (string, bool)
}

// CachedResolver decorates an EndpointResolver with an expiring cache;
// host to tunnel endpoint bindings change rarely.
type CachedResolver struct {
	under EndpointResolver
	fwd   *cache.Cache
	rev   *cache.Cache
}

// NewCachedResolver .
func NewCachedResolver(under EndpointResolver, ttl time.Duration) *CachedResolver {
	return &CachedResolver{
		under: under,
		fwd:   cache.New(ttl, ttl*2),
		rev:   cache.New(ttl, ttl*2),
	}
}

// TunnelIP .
func (r *CachedResolver) TunnelIP(ctx context.Context, host string) (string, error) {
	if v, ok := r.fwd.Get(host); ok {
		return v.(string), nil
	}

	ip, err := r.under.TunnelIP(ctx, host)
	if err != nil {
		return "", err
	}

	r.fwd.SetDefault(host, ip)
	r.rev.SetDefault(ip, host)
	return ip, nil
}

// HostByTunnelIP .
func (r *CachedResolver) HostByTunnelIP(ctx context.Context, tunnelIP string) (string, bool) {
	if v, ok := r.rev.Get(tunnelIP); ok {
		return v.(string), true
	}
	return r.under.HostByTunnelIP(ctx, tunnelIP)
}

package plugin

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/projecteru2/yavtep/internal/models"
	"github.com/projecteru2/yavtep/internal/rpc"
	"github.com/projecteru2/yavtep/pkg/terrors"
)

// StoreTenantLookup serves tenant network metadata out of the metadata
// store; an external orchestrator keeps the records current.
type StoreTenantLookup struct{}

// VxlanSegment .
func (StoreTenantLookup) VxlanSegment(_ context.Context, networkID string) (int, error) {
	net, err := models.LoadTenantNetwork(networkID)
	if err != nil {
		return 0, err
	}
	if net.NetworkType != "vxlan" {
		return 0, errors.Wrapf(terrors.ErrNotVxlanNetwork, "%s is %s", networkID, net.NetworkType)
	}
	return net.SegmentID, nil
}

// NetworkEndpoints .
func (StoreTenantLookup) NetworkEndpoints(_ context.Context, networkID string) ([]PortEndpoint, error) {
	net, err := models.LoadTenantNetwork(networkID)
	if err != nil {
		return nil, err
	}

	byHost := map[string]*PortEndpoint{}
	var order []string
	for _, ep := range net.Endpoints {
		pe, ok := byHost[ep.Host]
		if !ok {
			pe = &PortEndpoint{Host: ep.Host}
			byHost[ep.Host] = pe
			order = append(order, ep.Host)
		}
		pe.MACs = append(pe.MACs, rpc.MacArg{MAC: ep.MAC, IPAddr: ep.IPAddr})
	}

	out := make([]PortEndpoint, 0, len(order))
	for _, host := range order {
		out = append(out, *byHost[host])
	}
	return out, nil
}

// StoreEndpointResolver resolves compute hosts through ComputeNode
// records.
type StoreEndpointResolver struct{}

// TunnelIP .
func (StoreEndpointResolver) TunnelIP(_ context.Context, host string) (string, error) {
	node, err := models.LoadComputeNode(host)
	if err != nil {
		return "", err
	}
	return node.TunnelIP, nil
}

// HostByTunnelIP .
func (StoreEndpointResolver) HostByTunnelIP(_ context.Context, tunnelIP string) (string, bool) {
	nodes, err := models.ListComputeNodes()
	if err != nil {
		return "", false
	}
	for _, node := range nodes {
		if node.TunnelIP == tunnelIP {
			return node.Hostname, true
		}
	}
	return "", false
}

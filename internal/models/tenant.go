package models

import (
	"github.com/projecteru2/yavtep/internal/meta"
)

// NetworkEndpoint is one MAC of a tenant network resident on a compute
// host.
type NetworkEndpoint struct {
	Host   string `json:"host"`
	MAC    string `json:"mac"`
	IPAddr string `json:"ip_address,omitempty"`
}

// TenantNetwork mirrors the control plane's view of one overlay
// network: its vxlan segment and where its ports live.
type TenantNetwork struct {
	*meta.Ver `json:"-"`

	NetworkID   string            `json:"network_id"`
	NetworkType string            `json:"network_type"`
	SegmentID   int               `json:"segment_id"`
	Endpoints   []NetworkEndpoint `json:"endpoints,omitempty"`
}

// NewTenantNetwork .
func NewTenantNetwork(networkID string) *TenantNetwork {
	return &TenantNetwork{Ver: meta.NewVer(), NetworkID: networkID, NetworkType: "vxlan"}
}

// MetaKey .
func (n *TenantNetwork) MetaKey() string {
	return meta.NetworkKey(n.NetworkID)
}

// Save .
func (n *TenantNetwork) Save() error {
	return meta.Upsert(meta.Resources{n})
}

// Delete .
func (n *TenantNetwork) Delete() error {
	return meta.Delete(meta.Resources{n})
}

// LoadTenantNetwork .
func LoadTenantNetwork(networkID string) (*TenantNetwork, error) {
	return load(NewTenantNetwork(networkID))
}

// ComputeNode binds a compute hostname to its vxlan tunnel endpoint.
type ComputeNode struct {
	*meta.Ver `json:"-"`

	Hostname string `json:"hostname"`
	TunnelIP string `json:"tunnel_ip"`
}

// NewComputeNode .
func NewComputeNode(hostname string) *ComputeNode {
	return &ComputeNode{Ver: meta.NewVer(), Hostname: hostname}
}

// MetaKey .
func (c *ComputeNode) MetaKey() string {
	return meta.ComputeKey(c.Hostname)
}

// Save .
func (c *ComputeNode) Save() error {
	return meta.Upsert(meta.Resources{c})
}

// Delete .
func (c *ComputeNode) Delete() error {
	return meta.Delete(meta.Resources{c})
}

// LoadComputeNode .
func LoadComputeNode(hostname string) (*ComputeNode, error) {
	return load(NewComputeNode(hostname))
}

// ListComputeNodes .
func ListComputeNodes() ([]*ComputeNode, error) {
	return listPrefix(meta.ComputesPrefix(), func() *ComputeNode {
		return &ComputeNode{Ver: meta.NewVer()}
	})
}

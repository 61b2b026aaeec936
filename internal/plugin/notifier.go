package plugin

import (
	"context"
)

// FDBEntry is one (mac, ip) pair a compute agent should program.
type FDBEntry struct {
	MAC string `json:"mac"`
	IP  string `json:"ip"`
}

// FDBNetwork describes one overlay network's forwarding entries keyed
// by tunnel endpoint.
type FDBNetwork struct {
	SegmentID   int                   `json:"segment_id"`
	NetworkType string                `json:"network_type"`
	Ports       map[string][]FDBEntry `json:"ports"`
}

// FDB maps network id to its forwarding database fragment.
type FDB map[string]FDBNetwork

// flooding destination every network fragment carries
var floodingEntry = FDBEntry{MAC: "00:00:00:00:00:00", IP: "0.0.0.0"}

// Notifier pushes VTEP topology changes into the tenant overlay.
type Notifier interface {
	// TunnelSync announces a VTEP tunnel endpoint so compute agents
	// build a path to it.
	TunnelSync(ctx context.Context, tunnelIP string) error
	// AddFDBEntries distributes newly learned MACs.
	AddFDBEntries(ctx context.Context, fdb FDB) error
	// RemoveFDBEntries withdraws MACs; host narrows the removal to a
	// single compute node when set.
	RemoveFDBEntries(ctx context.Context, fdb FDB, host string) error
}

// NopNotifier satisfies Notifier for deployments without an L2-pop
// driver.
type NopNotifier struct{}

// TunnelSync .
func (NopNotifier) TunnelSync(context.Context, string) error { return nil }

// AddFDBEntries .
func (NopNotifier) AddFDBEntries(context.Context, FDB) error { return nil }

// RemoveFDBEntries .
func (NopNotifier) RemoveFDBEntries(context.Context, FDB, string) error { return nil }

func fdbFragment(networkID string, segmentID int, tunnelIP string, entries []FDBEntry) FDB {
	return FDB{
		networkID: {
			SegmentID:   segmentID,
			NetworkType: "vxlan",
			Ports: map[string][]FDBEntry{
				tunnelIP: append([]FDBEntry{floodingEntry}, entries...),
			},
		},
	}
}

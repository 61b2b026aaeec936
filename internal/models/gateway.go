package models

import (
	"github.com/projecteru2/yavtep/internal/meta"
	"github.com/projecteru2/yavtep/pkg/terrors"
)

// L2GatewayDevice names a physical switch and the interfaces on it that
// the gateway bridges.
type L2GatewayDevice struct {
	DeviceName string   `json:"device_name"`
	Interfaces []string `json:"interfaces"`
}

// L2Gateway groups gateway devices under one logical gateway.
type L2Gateway struct {
	*meta.Ver `json:"-"`

	UUID    string            `json:"uuid"`
	Name    string            `json:"name"`
	Devices []L2GatewayDevice `json:"devices"`
}

// NewL2Gateway .
func NewL2Gateway(uuid string) *L2Gateway {
	return &L2Gateway{Ver: meta.NewVer(), UUID: uuid}
}

// MetaKey .
func (g *L2Gateway) MetaKey() string {
	return meta.GatewayKey(g.UUID)
}

// Save .
func (g *L2Gateway) Save() error {
	return meta.Upsert(meta.Resources{g})
}

// Delete .
func (g *L2Gateway) Delete() error {
	return meta.Delete(meta.Resources{g})
}

// HasInterface reports whether any device of the gateway bridges the
// named interface on the named switch.
func (g *L2Gateway) HasInterface(switchName, portName string) bool {
	for _, dev := range g.Devices {
		if dev.DeviceName != switchName {
			continue
		}
		for _, itf := range dev.Interfaces {
			if itf == portName {
				return true
			}
		}
	}
	return false
}

// LoadL2Gateway .
func LoadL2Gateway(uuid string) (*L2Gateway, error) {
	return load(NewL2Gateway(uuid))
}

// ListL2Gateways .
func ListL2Gateways() ([]*L2Gateway, error) {
	return listPrefix(meta.GatewaysPrefix(), func() *L2Gateway {
		return &L2Gateway{Ver: meta.NewVer()}
	})
}

// L2GatewayConnection binds an overlay network to an L2Gateway with a
// VLAN segmentation id.
type L2GatewayConnection struct {
	*meta.Ver `json:"-"`

	UUID           string `json:"uuid"`
	L2GatewayID    string `json:"l2_gateway_id"`
	NetworkID      string `json:"network_id"`
	SegmentationID int    `json:"segmentation_id"`
	OvsdbID        string `json:"ovsdb_identifier"`
}

// NewL2GatewayConnection .
func NewL2GatewayConnection(uuid string) *L2GatewayConnection {
	return &L2GatewayConnection{Ver: meta.NewVer(), UUID: uuid}
}

// MetaKey .
func (c *L2GatewayConnection) MetaKey() string {
	return meta.ConnectionKey(c.UUID)
}

// Save .
func (c *L2GatewayConnection) Save() error {
	return meta.Upsert(meta.Resources{c})
}

// Delete .
func (c *L2GatewayConnection) Delete() error {
	return meta.Delete(meta.Resources{c})
}

// LoadL2GatewayConnection .
func LoadL2GatewayConnection(uuid string) (*L2GatewayConnection, error) {
	return load(NewL2GatewayConnection(uuid))
}

// ListL2GatewayConnections .
func ListL2GatewayConnections() ([]*L2GatewayConnection, error) {
	return listPrefix(meta.ConnectionsPrefix(), func() *L2GatewayConnection {
		return &L2GatewayConnection{Ver: meta.NewVer()}
	})
}

// ConnectionsReferencingPort returns the connections whose gateway
// bridges the named interface on the named switch.
func ConnectionsReferencingPort(switchName, portName string) ([]*L2GatewayConnection, error) {
	conns, err := ListL2GatewayConnections()
	if err != nil {
		return nil, err
	}

	var out []*L2GatewayConnection
	for _, conn := range conns {
		gw, err := LoadL2Gateway(conn.L2GatewayID)
		switch {
		case terrors.IsKeyNotExistsErr(err):
			continue
		case err != nil:
			return nil, err
		}
		if gw.HasInterface(switchName, portName) {
			out = append(out, conn)
		}
	}
	return out, nil
}

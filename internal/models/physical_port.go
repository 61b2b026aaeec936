package models

import (
	"github.com/projecteru2/yavtep/internal/meta"
)

// PhysicalPort is owned by exactly one PhysicalSwitch.
type PhysicalPort struct {
	*meta.Ver `json:"-"`

	UUID             string `json:"uuid"`
	OvsdbID          string `json:"ovsdb_identifier"`
	Name             string `json:"name"`
	PhysicalSwitchID string `json:"physical_switch_id,omitempty"`
	FaultStatus      string `json:"fault_status,omitempty"`
}

// NewPhysicalPort .
func NewPhysicalPort(ovsdbID, uuid string) *PhysicalPort {
	return &PhysicalPort{Ver: meta.NewVer(), UUID: uuid, OvsdbID: ovsdbID}
}

// MetaKey .
func (p *PhysicalPort) MetaKey() string {
	return meta.PhysicalPortKey(p.OvsdbID, p.UUID)
}

// Save .
func (p *PhysicalPort) Save() error {
	return meta.Upsert(meta.Resources{p})
}

// Delete .
func (p *PhysicalPort) Delete() error {
	return meta.Delete(meta.Resources{p})
}

// LoadPhysicalPort .
func LoadPhysicalPort(ovsdbID, uuid string) (*PhysicalPort, error) {
	return load(NewPhysicalPort(ovsdbID, uuid))
}

// ListPhysicalPorts .
func ListPhysicalPorts(ovsdbID string) ([]*PhysicalPort, error) {
	return listPrefix(meta.PhysicalPortsPrefix(ovsdbID), func() *PhysicalPort {
		return NewPhysicalPort(ovsdbID, "")
	})
}

// GetPhysicalPortByName finds a port by (switch name, port name).
func GetPhysicalPortByName(ovsdbID, switchName, portName string) (*PhysicalPort, error) {
	sw, err := GetPhysicalSwitchByName(ovsdbID, switchName)
	if err != nil || sw == nil {
		return nil, err
	}

	ports, err := ListPhysicalPorts(ovsdbID)
	if err != nil {
		return nil, err
	}

	for _, p := range ports {
		if p.Name == portName && p.PhysicalSwitchID == sw.UUID {
			return p, nil
		}
	}

	return nil, nil
}

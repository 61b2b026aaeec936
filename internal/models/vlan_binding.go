package models

import (
	"github.com/projecteru2/yavtep/internal/meta"
)

// VlanBinding maps frames tagged with a vlan on a physical port into a
// logical switch. All four columns form the primary key.
type VlanBinding struct {
	*meta.Ver `json:"-"`

	PortUUID          string `json:"port_uuid"`
	Vlan              int    `json:"vlan"`
	LogicalSwitchUUID string `json:"logical_switch_uuid"`
	OvsdbID           string `json:"ovsdb_identifier"`
}

// NewVlanBinding .
func NewVlanBinding(ovsdbID, portUUID string, vlan int, lsUUID string) *VlanBinding {
	return &VlanBinding{
		Ver:               meta.NewVer(),
		PortUUID:          portUUID,
		Vlan:              vlan,
		LogicalSwitchUUID: lsUUID,
		OvsdbID:           ovsdbID,
	}
}

// MetaKey .
func (b *VlanBinding) MetaKey() string {
	return meta.VlanBindingKey(b.OvsdbID, b.PortUUID, b.Vlan)
}

// Save upserts; re-adding the same tuple is a no-op.
func (b *VlanBinding) Save() error {
	return meta.Upsert(meta.Resources{b})
}

// Delete .
func (b *VlanBinding) Delete() error {
	return meta.Delete(meta.Resources{b})
}

// ListVlanBindings .
func ListVlanBindings(ovsdbID string) ([]*VlanBinding, error) {
	return listPrefix(meta.VlanBindingsPrefix(ovsdbID), func() *VlanBinding {
		return &VlanBinding{Ver: meta.NewVer(), OvsdbID: ovsdbID}
	})
}

// ListVlanBindingsByPort .
func ListVlanBindingsByPort(ovsdbID, portUUID string) ([]*VlanBinding, error) {
	all, err := ListVlanBindings(ovsdbID)
	if err != nil {
		return nil, err
	}

	var out []*VlanBinding
	for _, b := range all {
		if b.PortUUID == portUUID {
			out = append(out, b)
		}
	}

	return out, nil
}

// ListVlanBindingsByLogicalSwitch .
func ListVlanBindingsByLogicalSwitch(ovsdbID, lsUUID string) ([]*VlanBinding, error) {
	all, err := ListVlanBindings(ovsdbID)
	if err != nil {
		return nil, err
	}

	var out []*VlanBinding
	for _, b := range all {
		if b.LogicalSwitchUUID == lsUUID {
			out = append(out, b)
		}
	}

	return out, nil
}

package models

import (
	"github.com/projecteru2/yavtep/internal/meta"
)

// LogicalSwitch names a tenant network on the VTEP; its tunnel_key is the
// network's VXLAN VNI. Created only by the writer engine, then observed back
// through the monitor stream.
type LogicalSwitch struct {
	*meta.Ver `json:"-"`

	UUID        string `json:"uuid"`
	OvsdbID     string `json:"ovsdb_identifier"`
	Name        string `json:"name"`
	TunnelKey   int    `json:"tunnel_key"`
	Description string `json:"description,omitempty"`
}

// NewLogicalSwitch .
func NewLogicalSwitch(ovsdbID, uuid string) *LogicalSwitch {
	return &LogicalSwitch{Ver: meta.NewVer(), UUID: uuid, OvsdbID: ovsdbID}
}

// MetaKey .
func (ls *LogicalSwitch) MetaKey() string {
	return meta.LogicalSwitchKey(ls.OvsdbID, ls.UUID)
}

// Save .
func (ls *LogicalSwitch) Save() error {
	return meta.Upsert(meta.Resources{ls})
}

// Delete .
func (ls *LogicalSwitch) Delete() error {
	return meta.Delete(meta.Resources{ls})
}

// LoadLogicalSwitch .
func LoadLogicalSwitch(ovsdbID, uuid string) (*LogicalSwitch, error) {
	return load(NewLogicalSwitch(ovsdbID, uuid))
}

// ListLogicalSwitches .
func ListLogicalSwitches(ovsdbID string) ([]*LogicalSwitch, error) {
	return listPrefix(meta.LogicalSwitchesPrefix(ovsdbID), func() *LogicalSwitch {
		return NewLogicalSwitch(ovsdbID, "")
	})
}

// GetLogicalSwitchByName .
func GetLogicalSwitchByName(ovsdbID, name string) (*LogicalSwitch, error) {
	switches, err := ListLogicalSwitches(ovsdbID)
	if err != nil {
		return nil, err
	}

	for _, ls := range switches {
		if ls.Name == name {
			return ls, nil
		}
	}

	return nil, nil
}

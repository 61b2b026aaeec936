package models

import (
	"github.com/cockroachdb/errors"

	"github.com/projecteru2/yavtep/internal/meta"
	"github.com/projecteru2/yavtep/pkg/terrors"
)

// PhysicalSwitch is one hardware VTEP observed through the monitor stream.
// Uniqueness is scoped by the ovsdb_identifier; the same uuid may appear in
// two different OVSDBs.
type PhysicalSwitch struct {
	*meta.Ver `json:"-"`

	UUID        string `json:"uuid"`
	OvsdbID     string `json:"ovsdb_identifier"`
	Name        string `json:"name"`
	TunnelIP    string `json:"tunnel_ip"`
	FaultStatus string `json:"fault_status,omitempty"`
}

// NewPhysicalSwitch .
func NewPhysicalSwitch(ovsdbID, uuid string) *PhysicalSwitch {
	return &PhysicalSwitch{Ver: meta.NewVer(), UUID: uuid, OvsdbID: ovsdbID}
}

// MetaKey .
func (s *PhysicalSwitch) MetaKey() string {
	return meta.PhysicalSwitchKey(s.OvsdbID, s.UUID)
}

// Save .
func (s *PhysicalSwitch) Save() error {
	return meta.Upsert(meta.Resources{s})
}

// Delete .
func (s *PhysicalSwitch) Delete() error {
	return meta.Delete(meta.Resources{s})
}

// LoadPhysicalSwitch .
func LoadPhysicalSwitch(ovsdbID, uuid string) (*PhysicalSwitch, error) {
	return load(NewPhysicalSwitch(ovsdbID, uuid))
}

// ListPhysicalSwitches .
func ListPhysicalSwitches(ovsdbID string) ([]*PhysicalSwitch, error) {
	return listPrefix(meta.PhysicalSwitchesPrefix(ovsdbID), func() *PhysicalSwitch {
		return NewPhysicalSwitch(ovsdbID, "")
	})
}

// GetPhysicalSwitchByName .
func GetPhysicalSwitchByName(ovsdbID, name string) (*PhysicalSwitch, error) {
	switches, err := ListPhysicalSwitches(ovsdbID)
	if err != nil {
		return nil, err
	}

	for _, s := range switches {
		if s.Name == name {
			return s, nil
		}
	}

	return nil, nil
}

// FindPhysicalSwitchByName searches every known ovsdb identifier for a
// switch with the given name and returns the identifier it lives under.
func FindPhysicalSwitchByName(name string) (string, *PhysicalSwitch, error) {
	switches, err := listSwitchRecords(meta.OVSDBRootPrefix())
	if err != nil {
		return "", nil, err
	}

	for _, s := range switches {
		if s.Name == name {
			return s.OvsdbID, s, nil
		}
	}
	return "", nil, errors.Wrap(terrors.ErrPhysicalSwitchNotExists, name)
}

package models

import (
	"github.com/projecteru2/yavtep/internal/meta"
)

// UcastMacLocal is a MAC learned on the switch itself, observed read-only.
type UcastMacLocal struct {
	*meta.Ver `json:"-"`

	UUID              string `json:"uuid"`
	OvsdbID           string `json:"ovsdb_identifier"`
	MAC               string `json:"mac"`
	LogicalSwitchUUID string `json:"logical_switch_uuid,omitempty"`
	LocatorUUID       string `json:"physical_locator_uuid,omitempty"`
	IPAddr            string `json:"ip_address,omitempty"`
}

// NewUcastMacLocal .
func NewUcastMacLocal(ovsdbID, uuid string) *UcastMacLocal {
	return &UcastMacLocal{Ver: meta.NewVer(), UUID: uuid, OvsdbID: ovsdbID}
}

// MetaKey .
func (m *UcastMacLocal) MetaKey() string {
	return meta.UcastMacLocalKey(m.OvsdbID, m.UUID)
}

// Save .
func (m *UcastMacLocal) Save() error {
	return meta.Upsert(meta.Resources{m})
}

// Delete .
func (m *UcastMacLocal) Delete() error {
	return meta.Delete(meta.Resources{m})
}

// ListUcastMacsLocal .
func ListUcastMacsLocal(ovsdbID string) ([]*UcastMacLocal, error) {
	return listPrefix(meta.UcastMacsLocalPrefix(ovsdbID), func() *UcastMacLocal {
		return NewUcastMacLocal(ovsdbID, "")
	})
}

// UcastMacRemote is a MAC the writer engine programmed into the switch so
// unicast frames are tunneled to the right locator.
type UcastMacRemote struct {
	*meta.Ver `json:"-"`

	UUID              string `json:"uuid"`
	OvsdbID           string `json:"ovsdb_identifier"`
	MAC               string `json:"mac"`
	LogicalSwitchUUID string `json:"logical_switch_uuid,omitempty"`
	LocatorUUID       string `json:"physical_locator_uuid,omitempty"`
	IPAddr            string `json:"ip_address,omitempty"`
}

// NewUcastMacRemote .
func NewUcastMacRemote(ovsdbID, uuid string) *UcastMacRemote {
	return &UcastMacRemote{Ver: meta.NewVer(), UUID: uuid, OvsdbID: ovsdbID}
}

// MetaKey .
func (m *UcastMacRemote) MetaKey() string {
	return meta.UcastMacRemoteKey(m.OvsdbID, m.UUID)
}

// Save .
func (m *UcastMacRemote) Save() error {
	return meta.Upsert(meta.Resources{m})
}

// Delete .
func (m *UcastMacRemote) Delete() error {
	return meta.Delete(meta.Resources{m})
}

// LoadUcastMacRemote .
func LoadUcastMacRemote(ovsdbID, uuid string) (*UcastMacRemote, error) {
	return load(NewUcastMacRemote(ovsdbID, uuid))
}

// ListUcastMacsRemote .
func ListUcastMacsRemote(ovsdbID string) ([]*UcastMacRemote, error) {
	return listPrefix(meta.UcastMacsRemotePrefix(ovsdbID), func() *UcastMacRemote {
		return NewUcastMacRemote(ovsdbID, "")
	})
}

// GetUcastMacRemote returns the row for (ovsdb_identifier, logical switch,
// mac). There is at most one; a second write intent is an update.
func GetUcastMacRemote(ovsdbID, lsUUID, mac string) (*UcastMacRemote, error) {
	macs, err := ListUcastMacsRemote(ovsdbID)
	if err != nil {
		return nil, err
	}

	for _, m := range macs {
		if m.LogicalSwitchUUID == lsUUID && m.MAC == mac {
			return m, nil
		}
	}

	return nil, nil
}

// ListUcastMacsRemoteByLogicalSwitch .
func ListUcastMacsRemoteByLogicalSwitch(ovsdbID, lsUUID string) ([]*UcastMacRemote, error) {
	macs, err := ListUcastMacsRemote(ovsdbID)
	if err != nil {
		return nil, err
	}

	var out []*UcastMacRemote
	for _, m := range macs {
		if m.LogicalSwitchUUID == lsUUID {
			out = append(out, m)
		}
	}

	return out, nil
}

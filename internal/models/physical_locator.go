package models

import (
	"github.com/projecteru2/yavtep/internal/meta"
)

// PhysicalLocator is a VXLAN tunnel endpoint IP, shared by many MAC rows.
type PhysicalLocator struct {
	*meta.Ver `json:"-"`

	UUID    string `json:"uuid"`
	OvsdbID string `json:"ovsdb_identifier"`
	DstIP   string `json:"dst_ip"`
}

// NewPhysicalLocator .
func NewPhysicalLocator(ovsdbID, uuid string) *PhysicalLocator {
	return &PhysicalLocator{Ver: meta.NewVer(), UUID: uuid, OvsdbID: ovsdbID}
}

// MetaKey .
func (l *PhysicalLocator) MetaKey() string {
	return meta.PhysicalLocatorKey(l.OvsdbID, l.UUID)
}

// Save .
func (l *PhysicalLocator) Save() error {
	return meta.Upsert(meta.Resources{l})
}

// Delete .
func (l *PhysicalLocator) Delete() error {
	return meta.Delete(meta.Resources{l})
}

// LoadPhysicalLocator .
func LoadPhysicalLocator(ovsdbID, uuid string) (*PhysicalLocator, error) {
	return load(NewPhysicalLocator(ovsdbID, uuid))
}

// ListPhysicalLocators .
func ListPhysicalLocators(ovsdbID string) ([]*PhysicalLocator, error) {
	return listPrefix(meta.PhysicalLocatorsPrefix(ovsdbID), func() *PhysicalLocator {
		return NewPhysicalLocator(ovsdbID, "")
	})
}

// GetPhysicalLocatorByDstIP .
func GetPhysicalLocatorByDstIP(ovsdbID, dstIP string) (*PhysicalLocator, error) {
	locators, err := ListPhysicalLocators(ovsdbID)
	if err != nil {
		return nil, err
	}

	for _, l := range locators {
		if l.DstIP == dstIP {
			return l, nil
		}
	}

	return nil, nil
}

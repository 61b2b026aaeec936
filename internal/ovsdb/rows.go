package ovsdb

import (
	"github.com/ovn-org/libovsdb/ovsdb"

	"github.com/projecteru2/yavtep/internal/models"
)

// hardware_vtep tables the monitor registers for. Global is not needed.
const (
	TableLogicalSwitch      = "Logical_Switch"
	TablePhysicalSwitch     = "Physical_Switch"
	TablePhysicalPort       = "Physical_Port"
	TablePhysicalLocator    = "Physical_Locator"
	TablePhysicalLocatorSet = "Physical_Locator_Set"
	TableUcastMacsLocal     = "Ucast_Macs_Local"
	TableUcastMacsRemote    = "Ucast_Macs_Remote"
	TableMcastMacsLocal     = "Mcast_Macs_Local"
)

// flattenUUIDs accepts either a single uuid reference or a set of them
// and returns the plain uuid strings.
func flattenUUIDs(v any) []string {
	switch ref := v.(type) {
	case ovsdb.UUID:
		return []string{ref.GoUUID}
	case ovsdb.OvsSet:
		out := make([]string, 0, len(ref.GoSet))
		for _, elem := range ref.GoSet {
			if u, ok := elem.(ovsdb.UUID); ok {
				out = append(out, u.GoUUID)
			}
		}
		return out
	default:
		return nil
	}
}

// oneUUID .
func oneUUID(v any) string {
	if ids := flattenUUIDs(v); len(ids) > 0 {
		return ids[0]
	}
	return ""
}

// oneString normalizes a column that is either a concrete string or a
// set; an empty set becomes the empty string.
func oneString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case ovsdb.OvsSet:
		for _, elem := range val.GoSet {
			if s, ok := elem.(string); ok {
				return s
			}
		}
	}
	return ""
}

func oneInt(v any) int {
	switch val := v.(type) {
	case int:
		return val
	case float64:
		return int(val)
	case ovsdb.OvsSet:
		for _, elem := range val.GoSet {
			if n := oneInt(elem); n != 0 {
				return n
			}
		}
	}
	return 0
}

// vlanMap unpacks a vlan_bindings column, either a map literal or a
// set-wrapped one, into vlan → logical switch uuid.
func vlanMap(v any) map[int]string {
	m, ok := v.(ovsdb.OvsMap)
	if !ok {
		return nil
	}

	out := make(map[int]string, len(m.GoMap))
	for k, val := range m.GoMap {
		if ls, ok := val.(ovsdb.UUID); ok {
			out[oneInt(k)] = ls.GoUUID
		}
	}
	return out
}

func parseLogicalSwitch(ovsdbID, uuid string, row ovsdb.Row) *models.LogicalSwitch {
	ls := models.NewLogicalSwitch(ovsdbID, uuid)
	ls.Name = oneString(row["name"])
	ls.Description = oneString(row["description"])
	ls.TunnelKey = oneInt(row["tunnel_key"])
	return ls
}

// parsePhysicalSwitch also returns the uuids of the switch's ports so
// the caller can back-patch port ownership.
func parsePhysicalSwitch(ovsdbID, uuid string, row ovsdb.Row) (*models.PhysicalSwitch, []string) {
	ps := models.NewPhysicalSwitch(ovsdbID, uuid)
	ps.Name = oneString(row["name"])
	ps.TunnelIP = oneString(row["tunnel_ips"])
	ps.FaultStatus = oneString(row["switch_fault_status"])
	return ps, flattenUUIDs(row["ports"])
}

// PortRecord carries a port together with the vlan bindings that arrive
// on the same row.
type PortRecord struct {
	*models.PhysicalPort
	VlanBindings map[int]string `json:"vlan_bindings,omitempty"`
}

func parsePhysicalPort(ovsdbID, uuid string, row ovsdb.Row) *PortRecord {
	port := models.NewPhysicalPort(ovsdbID, uuid)
	port.Name = oneString(row["name"])
	port.FaultStatus = oneString(row["port_fault_status"])
	return &PortRecord{
		PhysicalPort: port,
		VlanBindings: vlanMap(row["vlan_bindings"]),
	}
}

func parsePhysicalLocator(ovsdbID, uuid string, row ovsdb.Row) *models.PhysicalLocator {
	loc := models.NewPhysicalLocator(ovsdbID, uuid)
	loc.DstIP = oneString(row["dst_ip"])
	return loc
}

func parseUcastMacLocal(ovsdbID, uuid string, row ovsdb.Row) *models.UcastMacLocal {
	mac := models.NewUcastMacLocal(ovsdbID, uuid)
	mac.MAC = oneString(row["MAC"])
	mac.LogicalSwitchUUID = oneUUID(row["logical_switch"])
	mac.LocatorUUID = oneUUID(row["locator"])
	mac.IPAddr = oneString(row["ipaddr"])
	return mac
}

func parseUcastMacRemote(ovsdbID, uuid string, row ovsdb.Row) *models.UcastMacRemote {
	mac := models.NewUcastMacRemote(ovsdbID, uuid)
	mac.MAC = oneString(row["MAC"])
	mac.LogicalSwitchUUID = oneUUID(row["logical_switch"])
	mac.LocatorUUID = oneUUID(row["locator"])
	mac.IPAddr = oneString(row["ipaddr"])
	return mac
}

// McastMacLocal is read-only telemetry; it is observed but never
// persisted or written back.
type McastMacLocal struct {
	UUID              string
	OvsdbID           string
	MAC               string
	LogicalSwitchUUID string
	LocatorSetUUID    string
}

func parseMcastMacLocal(ovsdbID, uuid string, row ovsdb.Row) *McastMacLocal {
	return &McastMacLocal{
		UUID:              uuid,
		OvsdbID:           ovsdbID,
		MAC:               oneString(row["MAC"]),
		LogicalSwitchUUID: oneUUID(row["logical_switch"]),
		LocatorSetUUID:    oneUUID(row["locator_set"]),
	}
}

// PhysicalLocatorSet is read-only telemetry, like McastMacLocal.
type PhysicalLocatorSet struct {
	UUID     string
	OvsdbID  string
	Locators []string
}

func parsePhysicalLocatorSet(ovsdbID, uuid string, row ovsdb.Row) *PhysicalLocatorSet {
	return &PhysicalLocatorSet{
		UUID:     uuid,
		OvsdbID:  ovsdbID,
		Locators: flattenUUIDs(row["locators"]),
	}
}

package ovsdb

import (
	"encoding/json"
	"testing"

	"github.com/ovn-org/libovsdb/ovsdb"

	"github.com/projecteru2/yavtep/pkg/test/assert"
)

func parseRaw(t *testing.T, raw string) *TableEvent {
	t.Helper()
	var updates ovsdb.TableUpdates
	assert.NilErr(t, json.Unmarshal([]byte(raw), &updates))
	return ParseTableUpdates("ovsdb1", updates)
}

func TestParseInitialSnapshot(t *testing.T) {
	ev := parseRaw(t, `{
		"Physical_Switch": {"uuid-ps1": {"new": {
			"name": "tor-1",
			"tunnel_ips": "9.0.0.1",
			"ports": ["set", [["uuid", "uuid-p1"]]]
		}}},
		"Physical_Port": {"uuid-p1": {"new": {
			"name": "eth3",
			"vlan_bindings": ["map", [[100, ["uuid", "uuid-ls1"]]]]
		}}},
		"Logical_Switch": {"uuid-ls1": {"new": {
			"name": "net1",
			"tunnel_key": 777
		}}}
	}`)

	assert.Equal(t, 1, len(ev.NewPhysicalSwitches))
	assert.Equal(t, "tor-1", ev.NewPhysicalSwitches[0].Name)
	assert.Equal(t, "9.0.0.1", ev.NewPhysicalSwitches[0].TunnelIP)

	assert.Equal(t, 1, len(ev.NewPhysicalPorts))
	port := ev.NewPhysicalPorts[0]
	assert.Equal(t, "eth3", port.Name)
	assert.Equal(t, "uuid-ps1", port.PhysicalSwitchID)
	assert.Equal(t, "uuid-ls1", port.VlanBindings[100])

	assert.Equal(t, 1, len(ev.NewLogicalSwitches))
	assert.Equal(t, 777, ev.NewLogicalSwitches[0].TunnelKey)
	assert.Equal(t, "ovsdb1", ev.NewLogicalSwitches[0].OvsdbID)
}

func TestParseClassifiesUpdateKinds(t *testing.T) {
	ev := parseRaw(t, `{
		"Logical_Switch": {
			"uuid-a": {"new": {"name": "created"}},
			"uuid-b": {"new": {"name": "after"}, "old": {"name": "before"}},
			"uuid-c": {"old": {"name": "gone"}}
		}
	}`)

	assert.Equal(t, 1, len(ev.NewLogicalSwitches))
	assert.Equal(t, "created", ev.NewLogicalSwitches[0].Name)
	assert.Equal(t, 1, len(ev.ModifiedLogicalSwitches))
	assert.Equal(t, "after", ev.ModifiedLogicalSwitches[0].Name)
	assert.Equal(t, 1, len(ev.DeletedLogicalSwitches))
	assert.Equal(t, "uuid-c", ev.DeletedLogicalSwitches[0].UUID)
}

func TestParseSingletonUUIDShapes(t *testing.T) {
	// a one-element set arrives as a bare ["uuid", x]
	ev := parseRaw(t, `{
		"Physical_Switch": {"uuid-ps1": {"new": {
			"name": "tor-1",
			"ports": ["uuid", "uuid-p1"]
		}}},
		"Physical_Port": {"uuid-p1": {"new": {"name": "eth0"}}},
		"Physical_Locator_Set": {"uuid-set1": {"new": {
			"locators": ["uuid", "uuid-loc1"]
		}}}
	}`)

	assert.Equal(t, "uuid-ps1", ev.NewPhysicalPorts[0].PhysicalSwitchID)
	assert.Equal(t, 1, len(ev.NewPhysicalLocatorSets))
	assert.Equal(t, []string{"uuid-loc1"}, ev.NewPhysicalLocatorSets[0].Locators)
}

func TestParseEmptySetFaultStatus(t *testing.T) {
	ev := parseRaw(t, `{
		"Physical_Switch": {"uuid-ps1": {"new": {
			"name": "tor-1",
			"switch_fault_status": ["set", []]
		}}},
		"Physical_Port": {"uuid-p1": {"new": {
			"name": "eth0",
			"port_fault_status": "unsupported_vlan"
		}}}
	}`)

	assert.Equal(t, "", ev.NewPhysicalSwitches[0].FaultStatus)
	assert.Equal(t, "unsupported_vlan", ev.NewPhysicalPorts[0].FaultStatus)
}

func TestParseUcastMacs(t *testing.T) {
	ev := parseRaw(t, `{
		"Ucast_Macs_Remote": {"uuid-m1": {"new": {
			"MAC": "aa:bb:cc:dd:ee:ff",
			"logical_switch": ["uuid", "uuid-ls1"],
			"locator": ["uuid", "uuid-loc1"],
			"ipaddr": "192.168.0.5"
		}}},
		"Mcast_Macs_Local": {"uuid-mm1": {"new": {
			"MAC": "unknown-dst",
			"logical_switch": ["uuid", "uuid-ls1"],
			"locator_set": ["uuid", "uuid-set1"]
		}}}
	}`)

	assert.Equal(t, 1, len(ev.NewUcastMacsRemote))
	mac := ev.NewUcastMacsRemote[0]
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", mac.MAC)
	assert.Equal(t, "uuid-ls1", mac.LogicalSwitchUUID)
	assert.Equal(t, "uuid-loc1", mac.LocatorUUID)
	assert.Equal(t, "192.168.0.5", mac.IPAddr)

	assert.Equal(t, 1, len(ev.NewMcastMacsLocal))
	assert.Equal(t, "uuid-set1", ev.NewMcastMacsLocal[0].LocatorSetUUID)
}

package meta

import (
	"fmt"
	"path/filepath"

	"github.com/projecteru2/yavtep/configs"
)

const (
	ovsdbPrefix      = "/ovsdb"
	agentPrefix      = "/agents"
	gatewayPrefix    = "/gateways"
	connectionPrefix = "/connections"
	networkPrefix    = "/networks"
	computePrefix    = "/computes"
)

// OVSDBPrefix /<prefix>/ovsdb/<identifier>/, everything monitored from one OVSDB.
func OVSDBPrefix(ovsdbID string) string {
	return filepath.Join(configs.Conf.Etcd.Prefix, ovsdbPrefix, ovsdbID) + "/"
}

// OVSDBRootPrefix /<prefix>/ovsdb/, every identifier's subtree.
func OVSDBRootPrefix() string {
	return filepath.Join(configs.Conf.Etcd.Prefix, ovsdbPrefix) + "/"
}

// PhysicalSwitchKey /<prefix>/ovsdb/<identifier>/switches/<uuid>
func PhysicalSwitchKey(ovsdbID, uuid string) string {
	return filepath.Join(PhysicalSwitchesPrefix(ovsdbID), uuid)
}

// PhysicalSwitchesPrefix /<prefix>/ovsdb/<identifier>/switches/
func PhysicalSwitchesPrefix(ovsdbID string) string {
	return filepath.Join(OVSDBPrefix(ovsdbID), "switches") + "/"
}

// PhysicalPortKey /<prefix>/ovsdb/<identifier>/ports/<uuid>
func PhysicalPortKey(ovsdbID, uuid string) string {
	return filepath.Join(PhysicalPortsPrefix(ovsdbID), uuid)
}

// PhysicalPortsPrefix /<prefix>/ovsdb/<identifier>/ports/
func PhysicalPortsPrefix(ovsdbID string) string {
	return filepath.Join(OVSDBPrefix(ovsdbID), "ports") + "/"
}

// LogicalSwitchKey /<prefix>/ovsdb/<identifier>/lswitches/<uuid>
func LogicalSwitchKey(ovsdbID, uuid string) string {
	return filepath.Join(LogicalSwitchesPrefix(ovsdbID), uuid)
}

// LogicalSwitchesPrefix /<prefix>/ovsdb/<identifier>/lswitches/
func LogicalSwitchesPrefix(ovsdbID string) string {
	return filepath.Join(OVSDBPrefix(ovsdbID), "lswitches") + "/"
}

// PhysicalLocatorKey /<prefix>/ovsdb/<identifier>/locators/<uuid>
func PhysicalLocatorKey(ovsdbID, uuid string) string {
	return filepath.Join(PhysicalLocatorsPrefix(ovsdbID), uuid)
}

// PhysicalLocatorsPrefix /<prefix>/ovsdb/<identifier>/locators/
func PhysicalLocatorsPrefix(ovsdbID string) string {
	return filepath.Join(OVSDBPrefix(ovsdbID), "locators") + "/"
}

// UcastMacLocalKey /<prefix>/ovsdb/<identifier>/local-macs/<uuid>
func UcastMacLocalKey(ovsdbID, uuid string) string {
	return filepath.Join(UcastMacsLocalPrefix(ovsdbID), uuid)
}

// UcastMacsLocalPrefix /<prefix>/ovsdb/<identifier>/local-macs/
func UcastMacsLocalPrefix(ovsdbID string) string {
	return filepath.Join(OVSDBPrefix(ovsdbID), "local-macs") + "/"
}

// UcastMacRemoteKey /<prefix>/ovsdb/<identifier>/remote-macs/<uuid>
func UcastMacRemoteKey(ovsdbID, uuid string) string {
	return filepath.Join(UcastMacsRemotePrefix(ovsdbID), uuid)
}

// UcastMacsRemotePrefix /<prefix>/ovsdb/<identifier>/remote-macs/
func UcastMacsRemotePrefix(ovsdbID string) string {
	return filepath.Join(OVSDBPrefix(ovsdbID), "remote-macs") + "/"
}

// VlanBindingKey /<prefix>/ovsdb/<identifier>/vlan-bindings/<port uuid>:<vlan>
func VlanBindingKey(ovsdbID, portUUID string, vlan int) string {
	return filepath.Join(VlanBindingsPrefix(ovsdbID), fmt.Sprintf("%s:%d", portUUID, vlan))
}

// VlanBindingsPrefix /<prefix>/ovsdb/<identifier>/vlan-bindings/
func VlanBindingsPrefix(ovsdbID string) string {
	return filepath.Join(OVSDBPrefix(ovsdbID), "vlan-bindings") + "/"
}

// PendingKey /<prefix>/ovsdb/<identifier>/pending/<zero-padded seq>
// The padded sequence keeps lexical order equal to enqueue order.
func PendingKey(ovsdbID string, seq uint32) string {
	return filepath.Join(PendingPrefix(ovsdbID), fmt.Sprintf("%010d", seq))
}

// PendingPrefix /<prefix>/ovsdb/<identifier>/pending/
func PendingPrefix(ovsdbID string) string {
	return filepath.Join(OVSDBPrefix(ovsdbID), "pending") + "/"
}

// PendingCounterKey /<prefix>/ovsdb/<identifier>/pending:counter
func PendingCounterKey(ovsdbID string) string {
	return filepath.Join(configs.Conf.Etcd.Prefix, ovsdbPrefix, ovsdbID) + "/pending:counter"
}

// AgentKey /<prefix>/agents/<hostname>
func AgentKey(hostname string) string {
	return filepath.Join(AgentsPrefix(), hostname)
}

// AgentsPrefix /<prefix>/agents/
func AgentsPrefix() string {
	return filepath.Join(configs.Conf.Etcd.Prefix, agentPrefix) + "/"
}

// GatewayKey /<prefix>/gateways/<id>
func GatewayKey(id string) string {
	return filepath.Join(GatewaysPrefix(), id)
}

// GatewaysPrefix /<prefix>/gateways/
func GatewaysPrefix() string {
	return filepath.Join(configs.Conf.Etcd.Prefix, gatewayPrefix) + "/"
}

// NetworkKey /<prefix>/networks/<network id>
func NetworkKey(id string) string {
	return filepath.Join(NetworksPrefix(), id)
}

// NetworksPrefix /<prefix>/networks/
func NetworksPrefix() string {
	return filepath.Join(configs.Conf.Etcd.Prefix, networkPrefix) + "/"
}

// ComputeKey /<prefix>/computes/<hostname>
func ComputeKey(hostname string) string {
	return filepath.Join(ComputesPrefix(), hostname)
}

// ComputesPrefix /<prefix>/computes/
func ComputesPrefix() string {
	return filepath.Join(configs.Conf.Etcd.Prefix, computePrefix) + "/"
}

// ConnectionKey /<prefix>/connections/<id>
func ConnectionKey(id string) string {
	return filepath.Join(ConnectionsPrefix(), id)
}

// ConnectionsPrefix /<prefix>/connections/
func ConnectionsPrefix() string {
	return filepath.Join(configs.Conf.Etcd.Prefix, connectionPrefix) + "/"
}

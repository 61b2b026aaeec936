package rpc

import (
	"encoding/json"

	"github.com/cockroachdb/errors"

	"github.com/projecteru2/yavtep/pkg/jsonrpc"
)

// Topics. The plugin invokes agents on TopicAgent; agents call back on
// TopicPlugin.
const (
	TopicAgent  = "l2gateway_agent"
	TopicPlugin = "l2gateway_plugin"
)

// Methods served by the agent.
const (
	MethodDeleteNetwork             = "delete_network"
	MethodAddVifToGateway           = "add_vif_to_gateway"
	MethodUpdateVifToGateway        = "update_vif_to_gateway"
	MethodDeleteVifFromGateway      = "delete_vif_from_gateway"
	MethodUpdateConnectionToGateway = "update_connection_to_gateway"
	MethodSetMonitorAgent           = "set_monitor_agent"
)

// Methods served by the plugin.
const (
	MethodUpdateOvsdbChanges = "update_ovsdb_changes"
	MethodReportState        = "report_state"
)

// LogicalSwitchArg .
type LogicalSwitchArg struct {
	UUID        string `json:"uuid,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	TunnelKey   int    `json:"tunnel_key"`
}

// LocatorArg .
type LocatorArg struct {
	UUID  string `json:"uuid,omitempty"`
	DstIP string `json:"dst_ip"`
}

// MacArg .
type MacArg struct {
	UUID   string `json:"uuid,omitempty"`
	MAC    string `json:"mac"`
	IPAddr string `json:"ip_address,omitempty"`
}

// LocatorMacsArg .
type LocatorMacsArg struct {
	Locator LocatorArg `json:"locator"`
	MACs    []MacArg   `json:"macs"`
}

// DeleteNetworkArgs .
type DeleteNetworkArgs struct {
	OvsdbID           string `json:"ovsdb_identifier"`
	LogicalSwitchUUID string `json:"logical_switch_uuid"`
}

// VifArgs carries one MAC placement for add and update.
type VifArgs struct {
	OvsdbID       string           `json:"ovsdb_identifier"`
	LogicalSwitch LogicalSwitchArg `json:"logical_switch"`
	Locator       LocatorArg       `json:"locator"`
	Mac           MacArg           `json:"mac"`
}

// DeleteVifArgs .
type DeleteVifArgs struct {
	OvsdbID           string   `json:"ovsdb_identifier"`
	LogicalSwitchUUID string   `json:"logical_switch_uuid"`
	MACs              []string `json:"macs"`
}

// ConnectionArgs .
type ConnectionArgs struct {
	OvsdbID       string           `json:"ovsdb_identifier"`
	LogicalSwitch LogicalSwitchArg `json:"logical_switch"`
	Locators      []LocatorMacsArg `json:"locators,omitempty"`
	Ports         []string         `json:"ports"`
	Vlan          int              `json:"vlan"`
	Op            string           `json:"op"`
}

// SetMonitorAgentArgs .
type SetMonitorAgentArgs struct {
	OvsdbID  string `json:"ovsdb_identifier,omitempty"`
	Hostname string `json:"hostname"`
}

// ReportStateArgs .
type ReportStateArgs struct {
	Hostname  string `json:"hostname"`
	AgentType string `json:"agent_type"`
	StartedAt int64  `json:"started_at"`
	Role      string `json:"role,omitempty"`
}

// DecodeArgs unpacks the single-object params of an inbound request.
func DecodeArgs[T any](msg *jsonrpc.Message) (T, error) {
	var args T
	if err := json.Unmarshal(msg.Params, &args); err != nil {
		return args, errors.Wrapf(err, "malformed %s params", msg.Method)
	}
	return args, nil
}

package terrors

import "github.com/cockroachdb/errors"

var (
	// ErrInvalidValue indicates the value is invalid.
	ErrInvalidValue = errors.New("invalid value")

	// ErrKeyExists .
	ErrKeyExists = errors.New("key exists")
	// ErrKeyNotExists .
	ErrKeyNotExists = errors.New("key not exists")
	// ErrKeyBadVersion .
	ErrKeyBadVersion = errors.New("bad version")
	// ErrBatchOperate .
	ErrBatchOperate = errors.New("batch operate error")

	// ErrFramingBroken indicates the peer sent bytes that cannot frame a JSON object.
	ErrFramingBroken = errors.New("json-rpc framing broken")
	// ErrSessionClosed .
	ErrSessionClosed = errors.New("session closed")
	// ErrCallTimeout indicates no correlated reply arrived within the wait budget.
	ErrCallTimeout = errors.New("rpc call timed out")
	// ErrConnectFailed indicates the dial retry budget was exhausted.
	ErrConnectFailed = errors.New("connect failed")
	// ErrTLSMaterialIncomplete indicates only part of key/cert/ca is on disk.
	ErrTLSMaterialIncomplete = errors.New("incomplete TLS material")

	// ErrOVSDBError wraps a non-null error carried by an OVSDB reply.
	ErrOVSDBError = errors.New("ovsdb error")
	// ErrOVSDBTimeout .
	ErrOVSDBTimeout = errors.New("ovsdb transact timed out")
	// ErrOVSDBDisconnected .
	ErrOVSDBDisconnected = errors.New("ovsdb not connected")

	// ErrUnknownOVSDB indicates the ovsdb_identifier names no configured gateway.
	ErrUnknownOVSDB = errors.New("unknown ovsdb identifier")
	// ErrInvalidOpLabel .
	ErrInvalidOpLabel = errors.New("invalid connection op label")
	// ErrDuplicateSegmentation indicates the vlan is already bound on the port.
	ErrDuplicateSegmentation = errors.New("duplicate vlan binding on port")
	// ErrLogicalSwitchNotExists .
	ErrLogicalSwitchNotExists = errors.New("logical switch not exists")
	// ErrPhysicalPortNotExists .
	ErrPhysicalPortNotExists = errors.New("physical port not exists")
	// ErrPhysicalSwitchNotExists .
	ErrPhysicalSwitchNotExists = errors.New("physical switch not exists")
	// ErrSwitchInFaultStatus indicates the physical switch or port reports a fault.
	ErrSwitchInFaultStatus = errors.New("physical switch in fault status")
	// ErrInvalidSegmentationID .
	ErrInvalidSegmentationID = errors.New("segmentation id out of range")
	// ErrNotVxlanNetwork .
	ErrNotVxlanNetwork = errors.New("network is not vxlan")

	// ErrAgentNotConnected indicates no live RPC session for the agent.
	ErrAgentNotConnected = errors.New("agent not connected")
	// ErrNoLiveAgent .
	ErrNoLiveAgent = errors.New("no live l2 gateway agent")
)

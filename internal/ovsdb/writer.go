package ovsdb

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/ovn-org/libovsdb/ovsdb"
	"github.com/samber/lo"

	"github.com/projecteru2/yavtep/internal/models"
	"github.com/projecteru2/yavtep/pkg/jsonrpc"
	"github.com/projecteru2/yavtep/pkg/terrors"
	"github.com/projecteru2/yavtep/pkg/utils"
)

// Connection op labels.
const (
	OpConnectionCreate = "CREATE"
	OpConnectionDelete = "DELETE"
)

const encapVxlanOverIPv4 = "vxlan_over_ipv4"

// MacEntry is one MAC with its VM IP, to be programmed behind a
// locator.
type MacEntry struct {
	MAC    string
	IPAddr string
}

// LocatorMacs groups the MACs resident behind one tunnel endpoint.
type LocatorMacs struct {
	Locator *models.PhysicalLocator
	MACs    []MacEntry
}

// Writer composes multi-operation transact RPCs on one session. Every
// transaction ends with a durable commit; rows without a uuid yet get a
// named-uuid placeholder so later operations can reference them.
type Writer struct {
	sess *jsonrpc.Session
}

// NewWriter .
func NewWriter(sess *jsonrpc.Session) *Writer {
	return &Writer{sess: sess}
}

// OvsdbID .
func (w *Writer) OvsdbID() string {
	return w.sess.ID
}

// DeleteLogicalSwitch removes one Logical_Switch row by uuid.
func (w *Writer) DeleteLogicalSwitch(ctx context.Context, lsUUID string) error {
	return w.transact(ctx, []ovsdb.Operation{{
		Op:    ovsdb.OperationDelete,
		Table: TableLogicalSwitch,
		Where: []ovsdb.Condition{uuidEq(lsUUID)},
	}})
}

// InsertUcastMacRemote programs one remote MAC, inserting the logical
// switch and locator first when either does not exist on the remote
// yet.
func (w *Writer) InsertUcastMacRemote(ctx context.Context, ls *models.LogicalSwitch, locator *models.PhysicalLocator, mac, ipAddr string) error {
	var ops []ovsdb.Operation

	lsRef, lsOp := logicalSwitchRef(ls)
	if lsOp != nil {
		ops = append(ops, *lsOp)
	}

	locRef, locOp := locatorRef(locator)
	if locOp != nil {
		ops = append(ops, *locOp)
	}

	ops = append(ops, ovsdb.Operation{
		Op:    ovsdb.OperationInsert,
		Table: TableUcastMacsRemote,
		Row: ovsdb.Row{
			"MAC":            mac,
			"logical_switch": lsRef,
			"locator":        locRef,
			"ipaddr":         ipAddr,
		},
	})

	return w.transact(ctx, ops)
}

// UpdateUcastMacRemote repoints an existing remote MAC at a new
// locator, inserting the locator first if the remote does not know it.
// This is the VM migration path; only the locator column changes.
func (w *Writer) UpdateUcastMacRemote(ctx context.Context, mac *models.UcastMacRemote, locator *models.PhysicalLocator) error {
	if mac.UUID == "" {
		return errors.Wrapf(terrors.ErrInvalidValue, "mac %s has no uuid", mac.MAC)
	}

	var ops []ovsdb.Operation

	locRef, locOp := locatorRef(locator)
	if locOp != nil {
		ops = append(ops, *locOp)
	}

	ops = append(ops, ovsdb.Operation{
		Op:    ovsdb.OperationUpdate,
		Table: TableUcastMacsRemote,
		Row:   ovsdb.Row{"locator": locRef},
		Where: []ovsdb.Condition{uuidEq(mac.UUID)},
	})

	return w.transact(ctx, ops)
}

// DeleteUcastMacsRemote removes a batch of MACs under one logical
// switch, one delete operation per MAC, all in the same transaction.
func (w *Writer) DeleteUcastMacsRemote(ctx context.Context, lsUUID string, macs []string) error {
	if len(macs) == 0 {
		return nil
	}

	ops := make([]ovsdb.Operation, 0, len(macs))
	for _, mac := range macs {
		ops = append(ops, ovsdb.Operation{
			Op:    ovsdb.OperationDelete,
			Table: TableUcastMacsRemote,
			Where: []ovsdb.Condition{
				{Column: "logical_switch", Function: ovsdb.ConditionEqual, Value: ovsdb.UUID{GoUUID: lsUUID}},
				{Column: "MAC", Function: ovsdb.ConditionEqual, Value: mac},
			},
		})
	}

	return w.transact(ctx, ops)
}

// UpdateConnectionToGateway attaches or detaches a tenant network from
// a set of physical ports. For CREATE it composes the logical switch
// and locator/MAC inserts followed by a vlan_bindings insert mutate per
// port; for DELETE the mutate removes the pair instead.
func (w *Writer) UpdateConnectionToGateway(ctx context.Context, ls *models.LogicalSwitch, locators []LocatorMacs, ports []string, vlan int, op string) error {
	if op != OpConnectionCreate && op != OpConnectionDelete {
		return errors.Wrapf(terrors.ErrInvalidOpLabel, "%s", op)
	}

	if op == OpConnectionCreate {
		if err := w.checkCreatePreconditions(ls, ports, vlan); err != nil {
			return err
		}
	} else if ls.UUID == "" {
		return errors.Wrapf(terrors.ErrLogicalSwitchNotExists, "%s on %s", ls.Name, w.sess.ID)
	}

	var ops []ovsdb.Operation

	lsRef, lsOp := logicalSwitchRef(ls)
	if lsOp != nil {
		ops = append(ops, *lsOp)
	}

	for _, lm := range locators {
		locRef, locOp := locatorRef(lm.Locator)
		if locOp != nil {
			ops = append(ops, *locOp)
		}
		for _, entry := range lm.MACs {
			ops = append(ops, ovsdb.Operation{
				Op:    ovsdb.OperationInsert,
				Table: TableUcastMacsRemote,
				Row: ovsdb.Row{
					"MAC":            entry.MAC,
					"logical_switch": lsRef,
					"locator":        locRef,
					"ipaddr":         entry.IPAddr,
				},
			})
		}
	}

	mutator := ovsdb.MutateOperationInsert
	if op == OpConnectionDelete {
		mutator = ovsdb.MutateOperationDelete
	}

	bindings := ovsdb.OvsMap{GoMap: map[any]any{vlan: lsRef}}
	for _, portUUID := range ports {
		ops = append(ops, ovsdb.Operation{
			Op:    ovsdb.OperationMutate,
			Table: TablePhysicalPort,
			Mutations: []ovsdb.Mutation{
				{Column: "vlan_bindings", Mutator: mutator, Value: bindings},
			},
			Where: []ovsdb.Condition{uuidEq(portUUID)},
		})
	}

	if err := w.transact(ctx, ops); err != nil {
		if errors.Is(err, terrors.ErrCallTimeout) {
			return errors.Wrapf(terrors.ErrOVSDBTimeout, "update_connection_to_gateway on %s", w.sess.ID)
		}
		return err
	}
	return nil
}

// checkCreatePreconditions inspects the local store view only; a
// binding the remote accepted but the store has not yet seen via
// monitor slips through and is healed by the next event.
func (w *Writer) checkCreatePreconditions(ls *models.LogicalSwitch, ports []string, vlan int) error {
	for _, portUUID := range ports {
		port, err := models.LoadPhysicalPort(w.sess.ID, portUUID)
		if terrors.IsKeyNotExistsErr(err) {
			return errors.Wrapf(terrors.ErrPhysicalPortNotExists, "%s on %s", portUUID, w.sess.ID)
		} else if err != nil {
			return err
		}

		if port.FaultStatus != "" {
			return errors.Wrapf(terrors.ErrSwitchInFaultStatus, "port %s: %s", port.Name, port.FaultStatus)
		}
		if port.PhysicalSwitchID != "" {
			sw, err := models.LoadPhysicalSwitch(w.sess.ID, port.PhysicalSwitchID)
			if err == nil && sw.FaultStatus != "" {
				return errors.Wrapf(terrors.ErrSwitchInFaultStatus, "switch %s: %s", sw.Name, sw.FaultStatus)
			}
		}

		bindings, err := models.ListVlanBindingsByPort(w.sess.ID, portUUID)
		if err != nil {
			return err
		}
		for _, b := range bindings {
			if b.Vlan == vlan && b.LogicalSwitchUUID != ls.UUID {
				return errors.Wrapf(terrors.ErrDuplicateSegmentation,
					"vlan %d on port %s already bound to %s", vlan, port.Name, b.LogicalSwitchUUID)
			}
		}
	}
	return nil
}

// transact appends the durable commit, issues the RPC and surfaces the
// first per-op error verbatim.
func (w *Writer) transact(ctx context.Context, ops []ovsdb.Operation) error {
	ops = append(ops, ovsdb.Operation{
		Op:      ovsdb.OperationCommit,
		Durable: lo.ToPtr(true),
	})

	params := make([]any, 0, len(ops)+1)
	params = append(params, DB)
	for _, op := range ops {
		params = append(params, op)
	}

	resp, err := w.sess.Call(ctx, "transact", params)
	if err != nil {
		return err
	}

	var results []ovsdb.OperationResult
	if err := json.Unmarshal(resp.Result, &results); err != nil {
		return errors.Wrapf(err, "broken transact reply from %s", w.sess.ID)
	}

	for _, res := range results {
		if res.Error != "" {
			return errors.Wrapf(terrors.ErrOVSDBError, "%s: %s", res.Error, res.Details)
		}
	}

	return nil
}

func uuidEq(uuid string) ovsdb.Condition {
	return ovsdb.Condition{
		Column:   "_uuid",
		Function: ovsdb.ConditionEqual,
		Value:    ovsdb.UUID{GoUUID: uuid},
	}
}

// logicalSwitchRef returns the reference to use for the switch and, if
// it has no uuid yet, the insert operation that creates it under a
// named-uuid placeholder.
func logicalSwitchRef(ls *models.LogicalSwitch) (ovsdb.UUID, *ovsdb.Operation) {
	if ls.UUID != "" {
		return ovsdb.UUID{GoUUID: ls.UUID}, nil
	}

	named := utils.NamedUUID()
	return ovsdb.UUID{GoUUID: named}, &ovsdb.Operation{
		Op:    ovsdb.OperationInsert,
		Table: TableLogicalSwitch,
		Row: ovsdb.Row{
			"name":        ls.Name,
			"description": ls.Description,
			"tunnel_key":  ls.TunnelKey,
		},
		UUIDName: named,
	}
}

func locatorRef(loc *models.PhysicalLocator) (ovsdb.UUID, *ovsdb.Operation) {
	if loc.UUID != "" {
		return ovsdb.UUID{GoUUID: loc.UUID}, nil
	}

	named := utils.NamedUUID()
	return ovsdb.UUID{GoUUID: named}, &ovsdb.Operation{
		Op:    ovsdb.OperationInsert,
		Table: TablePhysicalLocator,
		Row: ovsdb.Row{
			"dst_ip":             loc.DstIP,
			"encapsulation_type": encapVxlanOverIPv4,
		},
		UUIDName: named,
	}
}

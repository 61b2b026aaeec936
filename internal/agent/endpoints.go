package agent

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/projecteru2/core/log"

	"github.com/projecteru2/yavtep/internal/metrics"
	"github.com/projecteru2/yavtep/internal/models"
	"github.com/projecteru2/yavtep/internal/ovsdb"
	"github.com/projecteru2/yavtep/internal/rpc"
	"github.com/projecteru2/yavtep/internal/utils"
	"github.com/projecteru2/yavtep/pkg/jsonrpc"
	"github.com/projecteru2/yavtep/pkg/terrors"
)

func (m *Manager) registerEndpoints(sess *jsonrpc.Session) {
	sess.Handle(rpc.MethodDeleteNetwork, m.handleDeleteNetwork)
	sess.Handle(rpc.MethodAddVifToGateway, m.handleAddVif)
	sess.Handle(rpc.MethodUpdateVifToGateway, m.handleUpdateVif)
	sess.Handle(rpc.MethodDeleteVifFromGateway, m.handleDeleteVif)
	sess.Handle(rpc.MethodUpdateConnectionToGateway, m.handleUpdateConnection)
	sess.Handle(rpc.MethodSetMonitorAgent, m.handleSetMonitorAgent)
}

// knownOvsdb reports whether the identifier names a configured gateway
// or, in manager mode, a currently accepted peer.
func (m *Manager) knownOvsdb(id string) bool {
	if _, ok := m.gateways[id]; ok {
		return true
	}
	_, ok := m.sessions.Get(id)
	return ok
}

// borrowWriter hands out a writer session for one RPC: the already
// accepted or monitored session when one is live, a fresh connect with
// its own retry budget otherwise.
func (m *Manager) borrowWriter(ctx context.Context, id string) (*ovsdb.Writer, func(), error) {
	if sess, ok := m.sessions.Get(id); ok && sess.Connected() {
		return ovsdb.NewWriter(sess), func() {}, nil
	}

	gw, ok := m.gateways[id]
	if !ok {
		return nil, nil, errors.Wrapf(terrors.ErrUnknownOVSDB, "%s", id)
	}

	conn, err := jsonrpc.Dial(ctx, gw)
	if err != nil {
		return nil, nil, err
	}

	sess := jsonrpc.NewSession(id, conn)
	sess.Start(ctx)

	return ovsdb.NewWriter(sess), sess.Close, nil
}

// serveWrite runs one writer endpoint off the reader goroutine and
// replies with either a null result or the error text.
func (m *Manager) serveWrite(ctx context.Context, sess *jsonrpc.Session, msg *jsonrpc.Message, ovsdbID, op string, f func(w *ovsdb.Writer) error) {
	logger := log.WithFunc("agent.serveWrite")

	if !m.knownOvsdb(ovsdbID) {
		logger.Warnf(ctx, "%s: unknown ovsdb_identifier %s", msg.Method, ovsdbID)
		sess.ReplyError(msg.ID, terrors.ErrUnknownOVSDB.Error()) //nolint
		return
	}

	id := msg.ID
	err := utils.Pool.Submit(func() {
		w, release, err := m.borrowWriter(ctx, ovsdbID)
		if err != nil {
			metrics.IncrError()
			sess.ReplyError(id, err.Error()) //nolint
			return
		}
		defer release()

		metrics.Incr(metrics.MetricTransactCount, map[string]string{"ovsdb": ovsdbID, "op": op}) //nolint

		if err := f(w); err != nil {
			logger.Errorf(ctx, err, "%s on %s failed", op, ovsdbID)
			sess.ReplyError(id, err.Error()) //nolint
			return
		}
		sess.Reply(id, nil) //nolint
	})
	if err != nil {
		sess.ReplyError(id, err.Error()) //nolint
	}
}

func (m *Manager) handleDeleteNetwork(ctx context.Context, sess *jsonrpc.Session, msg *jsonrpc.Message) {
	args, err := rpc.DecodeArgs[rpc.DeleteNetworkArgs](msg)
	if err != nil {
		sess.ReplyError(msg.ID, err.Error()) //nolint
		return
	}

	m.serveWrite(ctx, sess, msg, args.OvsdbID, "delete_network", func(w *ovsdb.Writer) error {
		return w.DeleteLogicalSwitch(ctx, args.LogicalSwitchUUID)
	})
}

func (m *Manager) handleAddVif(ctx context.Context, sess *jsonrpc.Session, msg *jsonrpc.Message) {
	args, err := rpc.DecodeArgs[rpc.VifArgs](msg)
	if err != nil {
		sess.ReplyError(msg.ID, err.Error()) //nolint
		return
	}

	m.serveWrite(ctx, sess, msg, args.OvsdbID, "add_vif", func(w *ovsdb.Writer) error {
		ls := logicalSwitchOf(args.OvsdbID, args.LogicalSwitch)
		loc := locatorOf(args.OvsdbID, args.Locator)
		return w.InsertUcastMacRemote(ctx, ls, loc, args.Mac.MAC, args.Mac.IPAddr)
	})
}

func (m *Manager) handleUpdateVif(ctx context.Context, sess *jsonrpc.Session, msg *jsonrpc.Message) {
	args, err := rpc.DecodeArgs[rpc.VifArgs](msg)
	if err != nil {
		sess.ReplyError(msg.ID, err.Error()) //nolint
		return
	}

	m.serveWrite(ctx, sess, msg, args.OvsdbID, "update_vif", func(w *ovsdb.Writer) error {
		mac := models.NewUcastMacRemote(args.OvsdbID, args.Mac.UUID)
		mac.MAC = args.Mac.MAC
		mac.LogicalSwitchUUID = args.LogicalSwitch.UUID

		if mac.UUID == "" {
			known, err := models.GetUcastMacRemote(args.OvsdbID, args.LogicalSwitch.UUID, args.Mac.MAC)
			if err != nil {
				return err
			}
			if known == nil {
				return errors.Wrapf(terrors.ErrInvalidValue, "mac %s unknown on %s", args.Mac.MAC, args.OvsdbID)
			}
			mac = known
		}

		return w.UpdateUcastMacRemote(ctx, mac, locatorOf(args.OvsdbID, args.Locator))
	})
}

func (m *Manager) handleDeleteVif(ctx context.Context, sess *jsonrpc.Session, msg *jsonrpc.Message) {
	args, err := rpc.DecodeArgs[rpc.DeleteVifArgs](msg)
	if err != nil {
		sess.ReplyError(msg.ID, err.Error()) //nolint
		return
	}

	m.serveWrite(ctx, sess, msg, args.OvsdbID, "delete_vif", func(w *ovsdb.Writer) error {
		return w.DeleteUcastMacsRemote(ctx, args.LogicalSwitchUUID, args.MACs)
	})
}

func (m *Manager) handleUpdateConnection(ctx context.Context, sess *jsonrpc.Session, msg *jsonrpc.Message) {
	args, err := rpc.DecodeArgs[rpc.ConnectionArgs](msg)
	if err != nil {
		sess.ReplyError(msg.ID, err.Error()) //nolint
		return
	}

	m.serveWrite(ctx, sess, msg, args.OvsdbID, "update_connection", func(w *ovsdb.Writer) error {
		ls := logicalSwitchOf(args.OvsdbID, args.LogicalSwitch)

		locators := make([]ovsdb.LocatorMacs, 0, len(args.Locators))
		for _, lm := range args.Locators {
			entry := ovsdb.LocatorMacs{Locator: locatorOf(args.OvsdbID, lm.Locator)}
			for _, mac := range lm.MACs {
				entry.MACs = append(entry.MACs, ovsdb.MacEntry{MAC: mac.MAC, IPAddr: mac.IPAddr})
			}
			locators = append(locators, entry)
		}

		return w.UpdateConnectionToGateway(ctx, ls, locators, args.Ports, args.Vlan, args.Op)
	})
}

// handleSetMonitorAgent is the scheduler fanout: every agent compares
// the carried hostname with its own and self-assigns the monitor role
// iff they match.
func (m *Manager) handleSetMonitorAgent(ctx context.Context, sess *jsonrpc.Session, msg *jsonrpc.Message) {
	logger := log.WithFunc("agent.handleSetMonitorAgent")

	args, err := rpc.DecodeArgs[rpc.SetMonitorAgentArgs](msg)
	if err != nil {
		sess.ReplyError(msg.ID, err.Error()) //nolint
		return
	}

	role := models.RoleTransact
	if args.Hostname == m.hostname {
		role = models.RoleMonitor
	}
	if role != m.Role() {
		logger.Infof(ctx, "agent %s role changes to %q", m.hostname, role)
	}
	m.SetRole(role)

	sess.Reply(msg.ID, role) //nolint
}

func logicalSwitchOf(ovsdbID string, arg rpc.LogicalSwitchArg) *models.LogicalSwitch {
	ls := models.NewLogicalSwitch(ovsdbID, arg.UUID)
	ls.Name = arg.Name
	ls.Description = arg.Description
	ls.TunnelKey = arg.TunnelKey
	return ls
}

func locatorOf(ovsdbID string, arg rpc.LocatorArg) *models.PhysicalLocator {
	loc := models.NewPhysicalLocator(ovsdbID, arg.UUID)
	loc.DstIP = arg.DstIP
	return loc
}

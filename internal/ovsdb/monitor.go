package ovsdb

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/ovn-org/libovsdb/ovsdb"
	"github.com/projecteru2/core/log"

	"github.com/projecteru2/yavtep/pkg/jsonrpc"
)

// DB is the schema name every RPC addresses.
const DB = "hardware_vtep"

var monitoredTables = []string{
	TableLogicalSwitch,
	TablePhysicalSwitch,
	TablePhysicalPort,
	TablePhysicalLocator,
	TablePhysicalLocatorSet,
	TableUcastMacsLocal,
	TableUcastMacsRemote,
	TableMcastMacsLocal,
}

// Monitor registers for table updates on one session and turns every
// inbound monitor payload into exactly one TableEvent.
type Monitor struct {
	sess  *jsonrpc.Session
	out   chan *TableEvent
	ready chan struct{}
}

// NewMonitor hooks the update method of the session. Call Run to issue
// the monitor RPC.
func NewMonitor(sess *jsonrpc.Session) *Monitor {
	mon := &Monitor{
		sess:  sess,
		out:   make(chan *TableEvent, 16),
		ready: make(chan struct{}),
	}
	sess.Handle("update", mon.onUpdate)
	return mon
}

// Events yields one aggregate event per inbound message, in the order
// the remote sent them. Consumers should select on the session's Done
// channel as well.
func (m *Monitor) Events() <-chan *TableEvent {
	return m.out
}

// Run issues the monitor RPC and emits the snapshot as one Initial
// event. Incremental updates follow on Events until the session dies.
func (m *Monitor) Run(ctx context.Context) error {
	reqs := make(map[string]ovsdb.MonitorRequest, len(monitoredTables))
	for _, table := range monitoredTables {
		reqs[table] = ovsdb.MonitorRequest{
			Select: ovsdb.NewMonitorSelect(true, true, true, true),
		}
	}

	resp, err := m.sess.Call(ctx, "monitor", []any{DB, nil, reqs})
	if err != nil {
		return errors.Wrapf(err, "monitor on %s", m.sess.ID)
	}

	var updates ovsdb.TableUpdates
	if err := json.Unmarshal(resp.Result, &updates); err != nil {
		return errors.Wrapf(err, "broken monitor reply from %s", m.sess.ID)
	}

	ev := ParseTableUpdates(m.sess.ID, updates)
	ev.Initial = true
	m.emit(ctx, ev)
	close(m.ready)

	return nil
}

func (m *Monitor) onUpdate(ctx context.Context, _ *jsonrpc.Session, msg *jsonrpc.Message) {
	logger := log.WithFunc("monitor.onUpdate")

	var params []json.RawMessage
	if err := json.Unmarshal(msg.Params, &params); err != nil || len(params) < 2 {
		logger.Warnf(ctx, "session %s: malformed update params", m.sess.ID)
		return
	}

	var updates ovsdb.TableUpdates
	if err := json.Unmarshal(params[1], &updates); err != nil {
		logger.Warnf(ctx, "session %s: broken update payload: %v", m.sess.ID, err)
		return
	}

	// updates never overtake the snapshot
	select {
	case <-m.ready:
	case <-m.sess.Done():
		return
	case <-ctx.Done():
		return
	}

	m.emit(ctx, ParseTableUpdates(m.sess.ID, updates))
}

func (m *Monitor) emit(ctx context.Context, ev *TableEvent) {
	select {
	case m.out <- ev:
	case <-m.sess.Done():
	case <-ctx.Done():
	}
}

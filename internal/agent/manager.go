package agent

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/cockroachdb/errors"
	"github.com/projecteru2/core/log"

	"github.com/projecteru2/yavtep/configs"
	"github.com/projecteru2/yavtep/internal/metrics"
	"github.com/projecteru2/yavtep/internal/models"
	"github.com/projecteru2/yavtep/internal/ovsdb"
	"github.com/projecteru2/yavtep/internal/rpc"
	"github.com/projecteru2/yavtep/internal/utils"
	"github.com/projecteru2/yavtep/pkg/jsonrpc"
	"github.com/projecteru2/yavtep/pkg/terrors"
)

// Manager owns the configured OVSDBs and at most one live monitor
// session per identifier. A periodic tick reopens sessions the monitor
// role needs and discards dead ones.
type Manager struct {
	hostname  string
	startedAt int64

	gateways map[string]configs.Gateway

	sessions *haxmap.Map[string, *jsonrpc.Session]
	cas      *utils.GroupCAS

	mu     sync.Mutex
	plugin *jsonrpc.Session

	roleMu sync.RWMutex
	role   string
}

// New .
func New() (*Manager, error) {
	gws, err := configs.Conf.ParseGateways()
	if err != nil {
		return nil, errors.Wrap(err, "invalid gateway config")
	}

	return &Manager{
		hostname:  configs.Conf.Hostname,
		startedAt: time.Now().UnixNano(),
		gateways:  gws,
		sessions:  haxmap.New[string, *jsonrpc.Session](),
		cas:       utils.NewGroupCAS(),
	}, nil
}

// Role .
func (m *Manager) Role() string {
	m.roleMu.RLock()
	defer m.roleMu.RUnlock()
	return m.role
}

// SetRole .
func (m *Manager) SetRole(role string) {
	m.roleMu.Lock()
	defer m.roleMu.Unlock()
	m.role = role
}

// IsMonitor .
func (m *Manager) IsMonitor() bool {
	return m.Role() == models.RoleMonitor
}

// Run connects to the plugin and blocks on the periodic tick until the
// context ends.
func (m *Manager) Run(ctx context.Context) error {
	logger := log.WithFunc("agent.Run")

	if err := m.connectPlugin(ctx); err != nil {
		return err
	}

	if configs.Conf.Ovsdb.EnableManager {
		go m.serveManager(ctx)
	}
	go m.reportLoop(ctx)

	interval := configs.Conf.Agent.PeriodicInterval.Duration()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Infof(ctx, "agent %s managing %d gateways", m.hostname, len(m.gateways))

	for {
		m.checkGateways(ctx)

		select {
		case <-ctx.Done():
			m.shutdown()
			return nil
		case <-ticker.C:
		}
	}
}

func (m *Manager) shutdown() {
	m.sessions.ForEach(func(_ string, sess *jsonrpc.Session) bool {
		sess.Close()
		return true
	})

	m.mu.Lock()
	if m.plugin != nil {
		m.plugin.Close()
	}
	m.mu.Unlock()
}

// checkGateways is the periodic tick: drop dead sessions, open missing
// ones when this agent holds the monitor role.
func (m *Manager) checkGateways(ctx context.Context) {
	for id, gw := range m.gateways {
		sess, ok := m.sessions.Get(id)

		switch {
		case ok && !sess.Connected():
			m.sessions.Del(id)
			sess.Close()

		case !ok && m.IsMonitor():
			free, acquired := m.cas.Acquire("monitor:" + id)
			if !acquired {
				continue
			}

			id, gw := id, gw
			err := utils.Pool.Submit(func() {
				defer free()
				m.openMonitorSession(ctx, id, gw)
			})
			if err != nil {
				free()
			}
		}
	}
}

func (m *Manager) openMonitorSession(ctx context.Context, id string, gw configs.Gateway) {
	logger := log.WithFunc("agent.openMonitorSession")

	conn, err := jsonrpc.Dial(ctx, gw)
	if err != nil {
		logger.Warnf(ctx, "gateway %s unreachable: %v", id, err)
		return
	}

	sess := jsonrpc.NewSession(id, conn, jsonrpc.WithOnClose(func(*jsonrpc.Session) {
		m.sessions.Del(id)
		metrics.Decr(metrics.MetricSessionsAlive, nil) //nolint
	}))
	mon := ovsdb.NewMonitor(sess)
	sess.Start(ctx)
	m.sessions.Set(id, sess)
	metrics.Incr(metrics.MetricSessionsAlive, nil) //nolint

	if err := mon.Run(ctx); err != nil {
		logger.Errorf(ctx, err, "monitor registration on %s failed", id)
		sess.Close()
		return
	}

	m.forwardEvents(ctx, sess, mon)
}

// forwardEvents relays every monitor event to the plugin until the
// session dies.
func (m *Manager) forwardEvents(ctx context.Context, sess *jsonrpc.Session, mon *ovsdb.Monitor) {
	logger := log.WithFunc("agent.forwardEvents")

	for {
		select {
		case <-ctx.Done():
			return
		case <-sess.Done():
			return
		case ev := <-mon.Events():
			metrics.Incr(metrics.MetricMonitorEvents, map[string]string{"ovsdb": sess.ID}) //nolint
			if err := m.sendToPlugin(ctx, rpc.MethodUpdateOvsdbChanges, ev); err != nil {
				logger.Errorf(ctx, err, "forward event from %s failed", sess.ID)
			}
		}
	}
}

func (m *Manager) sendToPlugin(ctx context.Context, method string, args any) error {
	m.mu.Lock()
	plugin := m.plugin
	m.mu.Unlock()

	if plugin == nil || !plugin.Connected() {
		return errors.Wrap(terrors.ErrSessionClosed, "plugin session down")
	}

	if configs.Conf.Agent.UseCall {
		_, err := plugin.Call(ctx, method, args)
		return err
	}
	return plugin.Cast(method, args)
}

// connectPlugin dials the control plane, registering the agent-served
// methods on the session so the plugin can call back over it.
func (m *Manager) connectPlugin(ctx context.Context) error {
	var conn net.Conn
	err := utils.BackoffRetry(ctx, configs.Conf.Ovsdb.MaxConnectionRetries, func() error {
		var err error
		conn, err = net.DialTimeout("tcp", configs.Conf.Agent.PluginAddr, configs.Conf.Ovsdb.SocketTimeout.Duration())
		return err
	})
	if err != nil {
		return errors.Wrapf(err, "plugin at %s unreachable", configs.Conf.Agent.PluginAddr)
	}

	sess := jsonrpc.NewSession(rpc.TopicPlugin, conn)
	m.registerEndpoints(sess)
	sess.Start(ctx)

	m.mu.Lock()
	m.plugin = sess
	m.mu.Unlock()

	return nil
}

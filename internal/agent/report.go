package agent

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/projecteru2/core/log"

	"github.com/projecteru2/yavtep/configs"
	"github.com/projecteru2/yavtep/internal/models"
	"github.com/projecteru2/yavtep/internal/rpc"
)

// reportLoop advertises liveness on the report interval. Repeated
// failures relinquish the monitor role locally so the scheduler can
// reassign it.
func (m *Manager) reportLoop(ctx context.Context) {
	logger := log.WithFunc("agent.reportLoop")

	interval := configs.Conf.Agent.ReportInterval.Duration()
	tolerance := configs.Conf.Agent.ReportFailTolerance

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var fails atomic.Int32
	for {
		if err := m.report(ctx); err != nil {
			logger.Warnf(ctx, "report failed: %v", err)

			if fails.Add(1) >= int32(tolerance) && m.IsMonitor() {
				logger.Warnf(ctx, "%d reports failed, relinquishing monitor role", fails.Load())
				m.SetRole("")
			}

			m.reconnectPlugin(ctx)
		} else {
			fails.Store(0)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *Manager) report(ctx context.Context) error {
	ag := models.NewAgent(m.hostname)
	ag.StartedAt = m.startedAt
	ag.HeartbeatAt = time.Now().UnixNano()
	ag.Role = m.Role()
	if err := ag.Save(); err != nil {
		return err
	}

	return m.sendToPlugin(ctx, rpc.MethodReportState, rpc.ReportStateArgs{
		Hostname:  m.hostname,
		AgentType: models.AgentTypeL2Gateway,
		StartedAt: m.startedAt,
		Role:      ag.Role,
	})
}

func (m *Manager) reconnectPlugin(ctx context.Context) {
	m.mu.Lock()
	plugin := m.plugin
	m.mu.Unlock()

	if plugin != nil && plugin.Connected() {
		return
	}

	logger := log.WithFunc("agent.reconnectPlugin")
	if err := m.connectPlugin(ctx); err != nil {
		logger.Warnf(ctx, "plugin still unreachable: %v", err)
	}
}

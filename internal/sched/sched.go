package sched

import (
	"context"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/projecteru2/core/log"
	"github.com/robfig/cron/v3"

	"github.com/projecteru2/yavtep/configs"
	"github.com/projecteru2/yavtep/internal/models"
)

// MonitorFanout announces the elected monitor; the plugin implements it
// over the agent sessions.
type MonitorFanout interface {
	FanoutSetMonitorAgent(ctx context.Context, hostname string) error
}

// Scheduler periodically ensures exactly one alive agent holds the
// monitor role.
type Scheduler struct {
	cron   *cron.Cron
	fanout MonitorFanout
}

// New .
func New(fanout MonitorFanout) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		fanout: fanout,
	}
}

// Start schedules the election loop and returns immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	interval := configs.Conf.Plugin.PeriodicMonitoringInterval.Duration()
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		s.ElectMonitor(ctx)
	}); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the loop; a running election finishes.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// ElectMonitor runs one election round. With exactly one alive monitor
// nothing happens; otherwise the alive agent with the earliest start
// time wins and is announced to everyone.
func (s *Scheduler) ElectMonitor(ctx context.Context) {
	logger := log.WithFunc("sched.ElectMonitor")

	agents, err := models.ListAgents()
	if err != nil {
		logger.Errorf(ctx, err, "failed to list agents")
		return
	}

	downTime := configs.Conf.Plugin.AgentDownTime.Duration()
	monitors := mapset.NewSet[string]()

	var alive []*models.Agent
	for _, agent := range agents {
		if agent.Type != models.AgentTypeL2Gateway || !agent.Alive(downTime) {
			continue
		}
		alive = append(alive, agent)
		if agent.Role == models.RoleMonitor {
			monitors.Add(agent.Hostname)
		}
	}

	if monitors.Cardinality() == 1 {
		return
	}
	if len(alive) == 0 {
		logger.Warnf(ctx, "no alive agent to elect")
		return
	}

	chosen := alive[0]
	for _, agent := range alive[1:] {
		if agent.StartedAt < chosen.StartedAt {
			chosen = agent
		}
	}

	logger.Infof(ctx, "electing %s as monitor (had %d)", chosen.Hostname, monitors.Cardinality())
	if err := s.fanout.FanoutSetMonitorAgent(ctx, chosen.Hostname); err != nil {
		logger.Errorf(ctx, err, "monitor fanout failed")
		return
	}

	// record the outcome so the next round sees a single monitor even
	// before the winner's heartbeat lands
	for _, agent := range alive {
		role := models.RoleTransact
		if agent.Hostname == chosen.Hostname {
			role = models.RoleMonitor
		}
		if agent.Role == role {
			continue
		}
		agent.Role = role
		if err := agent.Save(); err != nil {
			logger.Errorf(ctx, err, "failed to persist role of %s", agent.Hostname)
		}
	}
}

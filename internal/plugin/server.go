package plugin

import (
	"context"
	"net"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/projecteru2/core/log"

	"github.com/projecteru2/yavtep/configs"
	"github.com/projecteru2/yavtep/internal/metrics"
	"github.com/projecteru2/yavtep/internal/models"
	"github.com/projecteru2/yavtep/internal/ovsdb"
	"github.com/projecteru2/yavtep/internal/rpc"
	"github.com/projecteru2/yavtep/pkg/jsonrpc"
	"github.com/projecteru2/yavtep/pkg/terrors"
)

// Serve accepts agent connections on the configured bind address and
// blocks until the context is cancelled.
func (p *Plugin) Serve(ctx context.Context) error {
	logger := log.WithFunc("plugin.Serve")

	lis, err := net.Listen("tcp", configs.Conf.Plugin.BindRPCAddr)
	if err != nil {
		return errors.Wrap(err, "failed to bind plugin rpc")
	}
	logger.Infof(ctx, "plugin rpc listening on %s", configs.Conf.Plugin.BindRPCAddr)

	go func() {
		<-ctx.Done()
		lis.Close()
	}()

	for {
		conn, err := lis.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			logger.Warnf(ctx, "accept failed: %v", err)
			continue
		}

		sess := p.newAgentSession(conn)
		sess.Start(ctx)
	}
}

// newAgentSession wires the two plugin-side methods onto a fresh agent
// connection. The session is keyed by remote address until the first
// report_state binds it to a hostname.
func (p *Plugin) newAgentSession(conn net.Conn) *jsonrpc.Session {
	id := conn.RemoteAddr().String()

	sess := jsonrpc.NewSession(id, conn, jsonrpc.WithOnClose(func(s *jsonrpc.Session) {
		p.agents.ForEach(func(hostname string, bound *jsonrpc.Session) bool {
			if bound == s {
				p.agents.Del(hostname)
			}
			return true
		})
		metrics.Decr(metrics.MetricSessionsAlive, nil) //nolint
	}))

	sess.Handle(rpc.MethodUpdateOvsdbChanges, p.handleOvsdbChanges)
	sess.Handle(rpc.MethodReportState, p.handleReportState)

	metrics.Incr(metrics.MetricSessionsAlive, nil) //nolint
	return sess
}

func (p *Plugin) handleOvsdbChanges(ctx context.Context, sess *jsonrpc.Session, msg *jsonrpc.Message) {
	logger := log.WithFunc("plugin.handleOvsdbChanges")

	ev, err := rpc.DecodeArgs[*ovsdb.TableEvent](msg)
	if err == nil && ev == nil {
		err = errors.Newf("empty params")
	}
	if err != nil {
		logger.Warnf(ctx, "bad ovsdb change from %s: %v", sess.ID, err)
		if msg.ID != nil {
			sess.ReplyError(msg.ID, err.Error()) //nolint
		}
		return
	}
	ev.Normalize()

	p.EnqueueEvent(ctx, ev, func(err error) {
		if err != nil {
			metrics.IncrError() //nolint
			logger.Errorf(ctx, err, "apply event from %s failed", ev.OvsdbID)
			if msg.ID != nil {
				sess.ReplyError(msg.ID, err.Error()) //nolint
			}
			return
		}
		if msg.ID != nil {
			sess.Reply(msg.ID, nil) //nolint
		}
	})
}

func (p *Plugin) handleReportState(ctx context.Context, sess *jsonrpc.Session, msg *jsonrpc.Message) {
	logger := log.WithFunc("plugin.handleReportState")

	args, err := rpc.DecodeArgs[rpc.ReportStateArgs](msg)
	if err != nil {
		logger.Warnf(ctx, "bad report from %s: %v", sess.ID, err)
		return
	}

	p.agents.Set(args.Hostname, sess)

	agent := models.NewAgent(args.Hostname)
	agent.Type = args.AgentType
	agent.StartedAt = args.StartedAt
	agent.HeartbeatAt = time.Now().UnixNano()
	agent.Role = args.Role
	if err := agent.Save(); err != nil {
		logger.Errorf(ctx, err, "failed to persist heartbeat of %s", args.Hostname)
		if msg.ID != nil {
			sess.ReplyError(msg.ID, err.Error()) //nolint
		}
		return
	}

	if msg.ID != nil {
		sess.Reply(msg.ID, nil) //nolint
	}
}

// callAgent invokes a writer method on any connected agent. The agents
// all reach the same set of OVSDBs, so the first live session serves.
func (p *Plugin) callAgent(ctx context.Context, method string, args any) error {
	var sess *jsonrpc.Session
	p.agents.ForEach(func(_ string, s *jsonrpc.Session) bool {
		if s.Connected() {
			sess = s
			return false
		}
		return true
	})
	if sess == nil {
		return terrors.ErrNoLiveAgent
	}

	if _, err := sess.Call(ctx, method, args); err != nil {
		return err
	}
	return nil
}

// CallAgentOn invokes a method on one named agent.
func (p *Plugin) CallAgentOn(ctx context.Context, hostname, method string, args any) error {
	sess, ok := p.agents.Get(hostname)
	if !ok || !sess.Connected() {
		return errors.Wrap(terrors.ErrAgentNotConnected, hostname)
	}
	_, err := sess.Call(ctx, method, args)
	return err
}

// FanoutSetMonitorAgent announces the elected monitor to every
// connected agent; each one matches the hostname against its own.
func (p *Plugin) FanoutSetMonitorAgent(ctx context.Context, hostname string) error {
	logger := log.WithFunc("plugin.FanoutSetMonitorAgent")

	args := rpc.SetMonitorAgentArgs{Hostname: hostname}

	var failed error
	p.agents.ForEach(func(agent string, sess *jsonrpc.Session) bool {
		if !sess.Connected() {
			return true
		}
		if _, err := sess.Call(ctx, rpc.MethodSetMonitorAgent, args); err != nil {
			logger.Warnf(ctx, "set_monitor_agent toward %s failed: %v", agent, err)
			failed = err
		}
		return true
	})
	return failed
}

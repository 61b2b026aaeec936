package agent

import (
	"context"

	"github.com/projecteru2/core/log"

	"github.com/projecteru2/yavtep/configs"
	"github.com/projecteru2/yavtep/internal/metrics"
	"github.com/projecteru2/yavtep/internal/ovsdb"
	"github.com/projecteru2/yavtep/internal/utils"
	"github.com/projecteru2/yavtep/pkg/jsonrpc"
)

// serveManager runs manager (passive) mode: VTEPs configured with
// set-manager dial in and every accepted socket becomes an independent
// session whose peer address is adopted as its ovsdb_identifier.
func (m *Manager) serveManager(ctx context.Context) {
	logger := log.WithFunc("agent.serveManager")

	addr := configs.Conf.Ovsdb.ManagerListenAddr
	lis, err := jsonrpc.Listen("manager", addr)
	if err != nil {
		logger.Errorf(ctx, err, "manager mode disabled")
		return
	}

	go func() {
		<-ctx.Done()
		lis.Close()
	}()

	logger.Infof(ctx, "manager mode listening on %s", addr)

	for {
		conn, err := lis.Accept()
		if err != nil {
			return
		}

		id := conn.RemoteAddr().String()
		sess := jsonrpc.NewSession(id, conn, jsonrpc.WithOnClose(func(*jsonrpc.Session) {
			m.sessions.Del(id)
			metrics.Decr(metrics.MetricSessionsAlive, nil) //nolint
		}))

		var mon *ovsdb.Monitor
		if m.IsMonitor() {
			mon = ovsdb.NewMonitor(sess)
		}

		sess.Start(ctx)
		m.sessions.Set(id, sess)
		metrics.Incr(metrics.MetricSessionsAlive, nil) //nolint
		logger.Infof(ctx, "accepted VTEP %s", id)

		if mon == nil {
			continue
		}

		if err := utils.Pool.Submit(func() {
			if err := mon.Run(ctx); err != nil {
				logger.Errorf(ctx, err, "monitor registration on %s failed", id)
				sess.Close()
				return
			}
			m.forwardEvents(ctx, sess, mon)
		}); err != nil {
			logger.Warnf(ctx, "pool refused monitor task for %s: %v", id, err)
		}
	}
}

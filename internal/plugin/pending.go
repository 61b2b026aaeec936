package plugin

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/projecteru2/core/log"

	"github.com/projecteru2/yavtep/internal/metrics"
	"github.com/projecteru2/yavtep/internal/models"
	"github.com/projecteru2/yavtep/internal/rpc"
	"github.com/projecteru2/yavtep/pkg/terrors"
)

// deferUcastWrite decides whether a failed MAC write goes to the pending
// queue. Transport faults and OVSDB-side refusals are replayed upon
// reconnect; anything else stays with the caller. Returns whether the
// write was parked.
func (p *Plugin) deferUcastWrite(ctx context.Context, cause error, method, ovsdbID, lsUUID string, mac rpc.MacArg, loc rpc.LocatorArg) bool {
	logger := log.WithFunc("plugin.deferUcastWrite")

	if !terrors.IsTransportErr(cause) && !terrors.IsOVSDBErr(cause) && !errors.Is(cause, terrors.ErrNoLiveAgent) {
		return false
	}

	var op string
	switch method {
	case rpc.MethodAddVifToGateway:
		op = models.PendingOpInsert
	case rpc.MethodUpdateVifToGateway:
		op = models.PendingOpUpdate
	case rpc.MethodDeleteVifFromGateway:
		op = models.PendingOpDelete
	default:
		return false
	}

	row := &models.PendingUcastMacRemote{
		Op:                op,
		OvsdbID:           ovsdbID,
		LogicalSwitchUUID: lsUUID,
		MAC:               mac.MAC,
		LocatorUUID:       loc.UUID,
		DstIP:             loc.DstIP,
		VMIP:              mac.IPAddr,
	}
	if ls, err := models.LoadLogicalSwitch(ovsdbID, lsUUID); err == nil {
		row.LogicalSwitchName = ls.Name
	}

	enqueued, err := models.EnqueuePendingUcastMacRemote(row)
	if err != nil {
		logger.Errorf(ctx, err, "failed to park %s of %s on %s", op, mac.MAC, ovsdbID)
		return false
	}
	if enqueued {
		metrics.Incr(metrics.MetricPendingOps, map[string]string{"ovsdb": ovsdbID}) //nolint
		logger.Warnf(ctx, "parked %s of %s on %s: %v", op, mac.MAC, ovsdbID, cause)
	} else {
		logger.Infof(ctx, "%s of %s on %s coalesced away", op, mac.MAC, ovsdbID)
	}
	return true
}

// drainPending replays the identifier's queued MAC writes in enqueue
// order. The first failure stops the drain so later ops cannot overtake
// the one that failed.
func (p *Plugin) drainPending(ctx context.Context, ovsdbID string) {
	logger := log.WithFunc("plugin.drainPending")

	rows, err := models.ListPendingUcastMacsRemote(ovsdbID)
	if err != nil {
		logger.Errorf(ctx, err, "failed to list pending ops of %s", ovsdbID)
		return
	}
	if len(rows) == 0 {
		return
	}

	logger.Infof(ctx, "draining %d pending ops on %s", len(rows), ovsdbID)

	drained := 0
	for _, row := range rows {
		if err := p.replayPending(ctx, row); err != nil {
			logger.Warnf(ctx, "replay of %s %s on %s failed, drain suspended: %v",
				row.Op, row.MAC, ovsdbID, err)
			break
		}
		if err := row.Delete(); err != nil {
			logger.Errorf(ctx, err, "failed to dequeue replayed op %d", row.Seq)
			break
		}
		drained++
	}

	metrics.Store(metrics.MetricPendingOps, float64(len(rows)-drained), map[string]string{"ovsdb": ovsdbID}) //nolint
}

func (p *Plugin) replayPending(ctx context.Context, row *models.PendingUcastMacRemote) error {
	if row.Op == models.PendingOpDelete {
		return p.callAgent(ctx, rpc.MethodDeleteVifFromGateway, rpc.DeleteVifArgs{
			OvsdbID:           row.OvsdbID,
			LogicalSwitchUUID: row.LogicalSwitchUUID,
			MACs:              []string{row.MAC},
		})
	}

	args := rpc.VifArgs{
		OvsdbID:       row.OvsdbID,
		LogicalSwitch: rpc.LogicalSwitchArg{UUID: row.LogicalSwitchUUID, Name: row.LogicalSwitchName},
		Locator:       rpc.LocatorArg{UUID: row.LocatorUUID, DstIP: row.DstIP},
		Mac:           rpc.MacArg{MAC: row.MAC, IPAddr: row.VMIP},
	}

	// the snapshot that triggered the drain may have refreshed the rows
	// this op references
	if ls, err := models.GetLogicalSwitchByName(row.OvsdbID, row.LogicalSwitchName); err == nil && ls != nil {
		args.LogicalSwitch.UUID = ls.UUID
		args.LogicalSwitch.TunnelKey = ls.TunnelKey
	}
	if loc, err := models.GetPhysicalLocatorByDstIP(row.OvsdbID, row.DstIP); err == nil && loc != nil {
		args.Locator.UUID = loc.UUID
	}

	method := rpc.MethodAddVifToGateway
	if row.Op == models.PendingOpUpdate {
		method = rpc.MethodUpdateVifToGateway
	}
	return p.callAgent(ctx, method, args)
}

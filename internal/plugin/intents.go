package plugin

import (
	"context"

	"github.com/cockroachdb/errors"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/projecteru2/core/log"
	"github.com/samber/lo"

	"github.com/projecteru2/yavtep/internal/models"
	"github.com/projecteru2/yavtep/internal/ovsdb"
	"github.com/projecteru2/yavtep/internal/rpc"
	"github.com/projecteru2/yavtep/pkg/terrors"
)

const maxSegmentationID = 4095

// PortIntent is a northbound port create, update or delete: one
// compute host and the MACs it now carries for one network, including
// allowed address pairs.
type PortIntent struct {
	NetworkID string
	Host      string
	MACs      []rpc.MacArg
}

// ConnectionIntent binds a tenant network to an L2 gateway.
type ConnectionIntent struct {
	ConnectionID string
	L2GatewayID  string
	NetworkID    string
	Segmentation int
}

// HandlePortUpsert programs each MAC of the port on every OVSDB that
// has a connection to the network. An already known MAC with a
// different locator means the VM moved, which becomes an update of the
// locator column instead of an insert.
func (p *Plugin) HandlePortUpsert(ctx context.Context, intent PortIntent) error {
	tunnelIP, err := p.resolver.TunnelIP(ctx, intent.Host)
	if err != nil {
		return errors.Wrapf(err, "no tunnel endpoint for host %s", intent.Host)
	}

	conns, err := p.connectionsOfNetwork(intent.NetworkID)
	if err != nil {
		return err
	}

	for _, conn := range conns {
		if err := p.upsertPortMacs(ctx, conn, intent, tunnelIP); err != nil {
			return err
		}
	}
	return nil
}

func (p *Plugin) upsertPortMacs(ctx context.Context, conn *models.L2GatewayConnection, intent PortIntent, tunnelIP string) error {
	ovsdbID := conn.OvsdbID

	lsArg, err := p.logicalSwitchArg(ctx, ovsdbID, intent.NetworkID)
	if err != nil {
		return err
	}

	locArg := rpc.LocatorArg{DstIP: tunnelIP}
	if loc, err := models.GetPhysicalLocatorByDstIP(ovsdbID, tunnelIP); err != nil {
		return err
	} else if loc != nil {
		locArg.UUID = loc.UUID
	}

	for _, mac := range intent.MACs {
		method := rpc.MethodAddVifToGateway

		if lsArg.UUID != "" {
			known, err := models.GetUcastMacRemote(ovsdbID, lsArg.UUID, mac.MAC)
			if err != nil {
				return err
			}
			switch {
			case known != nil && known.LocatorUUID == locArg.UUID && locArg.UUID != "":
				continue
			case known != nil:
				method = rpc.MethodUpdateVifToGateway
				mac.UUID = known.UUID
			}
		}

		args := rpc.VifArgs{
			OvsdbID:       ovsdbID,
			LogicalSwitch: lsArg,
			Locator:       locArg,
			Mac:           mac,
		}
		if err := p.callAgent(ctx, method, args); err != nil {
			if !p.deferUcastWrite(ctx, err, method, ovsdbID, lsArg.UUID, mac, locArg) {
				return err
			}
		}
	}
	return nil
}

// HandlePortDelete batches all MACs owned by the port per
// (ovsdb_identifier, logical switch) and removes them.
func (p *Plugin) HandlePortDelete(ctx context.Context, intent PortIntent) error {
	conns, err := p.connectionsOfNetwork(intent.NetworkID)
	if err != nil {
		return err
	}

	for _, conn := range conns {
		ls, err := models.GetLogicalSwitchByName(conn.OvsdbID, intent.NetworkID)
		if err != nil {
			return err
		}
		if ls == nil {
			continue
		}

		addrs := mapset.NewSet[string]()
		for _, mac := range intent.MACs {
			addrs.Add(mac.MAC)
		}

		args := rpc.DeleteVifArgs{
			OvsdbID:           conn.OvsdbID,
			LogicalSwitchUUID: ls.UUID,
			MACs:              addrs.ToSlice(),
		}
		if err := p.callAgent(ctx, rpc.MethodDeleteVifFromGateway, args); err != nil {
			deferred := true
			for _, mac := range intent.MACs {
				if !p.deferUcastWrite(ctx, err, rpc.MethodDeleteVifFromGateway, conn.OvsdbID, ls.UUID, mac, rpc.LocatorArg{}) {
					deferred = false
				}
			}
			if !deferred {
				return err
			}
		}
	}
	return nil
}

// HandleConnectionCreate validates the request, assembles the full
// CREATE transaction for every device of the gateway and records the
// connection.
func (p *Plugin) HandleConnectionCreate(ctx context.Context, intent ConnectionIntent) error {
	if intent.Segmentation < 0 || intent.Segmentation > maxSegmentationID {
		return errors.Wrapf(terrors.ErrInvalidSegmentationID, "%d", intent.Segmentation)
	}

	tunnelKey, err := p.tenants.VxlanSegment(ctx, intent.NetworkID)
	if err != nil {
		return err
	}

	gw, err := models.LoadL2Gateway(intent.L2GatewayID)
	if err != nil {
		return err
	}

	endpoints, err := p.tenants.NetworkEndpoints(ctx, intent.NetworkID)
	if err != nil {
		return err
	}

	ovsdbIDs, portsByID, err := p.gatewayPorts(gw)
	if err != nil {
		return err
	}

	for _, ovsdbID := range ovsdbIDs {
		lsArg, err := p.logicalSwitchArg(ctx, ovsdbID, intent.NetworkID)
		if err != nil {
			return err
		}
		lsArg.TunnelKey = tunnelKey

		locators, err := p.locatorMacs(ctx, ovsdbID, endpoints)
		if err != nil {
			return err
		}

		args := rpc.ConnectionArgs{
			OvsdbID:       ovsdbID,
			LogicalSwitch: lsArg,
			Locators:      locators,
			Ports:         portsByID[ovsdbID],
			Vlan:          intent.Segmentation,
			Op:            ovsdb.OpConnectionCreate,
		}
		if err := p.callAgent(ctx, rpc.MethodUpdateConnectionToGateway, args); err != nil {
			return err
		}

		conn := models.NewL2GatewayConnection(intent.ConnectionID)
		conn.L2GatewayID = intent.L2GatewayID
		conn.NetworkID = intent.NetworkID
		conn.SegmentationID = intent.Segmentation
		conn.OvsdbID = ovsdbID
		if err := conn.Save(); err != nil {
			return err
		}
	}
	return nil
}

// HandleConnectionDelete detaches the network from the gateway's ports
// and, where the identifier keeps no other connection to the network,
// sweeps the remote MACs too.
func (p *Plugin) HandleConnectionDelete(ctx context.Context, intent ConnectionIntent) error {
	logger := log.WithFunc("plugin.HandleConnectionDelete")

	conn, err := models.LoadL2GatewayConnection(intent.ConnectionID)
	if err != nil {
		return err
	}

	gw, err := models.LoadL2Gateway(conn.L2GatewayID)
	if err != nil {
		return err
	}

	ls, err := models.GetLogicalSwitchByName(conn.OvsdbID, conn.NetworkID)
	if err != nil {
		return err
	}
	if ls == nil {
		logger.Warnf(ctx, "network %s already gone from %s", conn.NetworkID, conn.OvsdbID)
		return conn.Delete()
	}

	_, portsByID, err := p.gatewayPorts(gw)
	if err != nil {
		return err
	}

	args := rpc.ConnectionArgs{
		OvsdbID:       conn.OvsdbID,
		LogicalSwitch: rpc.LogicalSwitchArg{UUID: ls.UUID, Name: ls.Name, TunnelKey: ls.TunnelKey},
		Ports:         portsByID[conn.OvsdbID],
		Vlan:          conn.SegmentationID,
		Op:            ovsdb.OpConnectionDelete,
	}
	if err := p.callAgent(ctx, rpc.MethodUpdateConnectionToGateway, args); err != nil {
		return err
	}

	if err := conn.Delete(); err != nil {
		return err
	}

	return p.sweepOrphanedMacs(ctx, conn.OvsdbID, conn.NetworkID, ls)
}

// sweepOrphanedMacs removes the network's remote MACs from an OVSDB
// that no longer has any connection to it.
func (p *Plugin) sweepOrphanedMacs(ctx context.Context, ovsdbID, networkID string, ls *models.LogicalSwitch) error {
	conns, err := p.connectionsOfNetwork(networkID)
	if err != nil {
		return err
	}
	for _, other := range conns {
		if other.OvsdbID == ovsdbID {
			return nil
		}
	}

	macs, err := models.ListUcastMacsRemoteByLogicalSwitch(ovsdbID, ls.UUID)
	if err != nil || len(macs) == 0 {
		return err
	}

	addrs := lo.Map(macs, func(mac *models.UcastMacRemote, _ int) string { return mac.MAC })
	return p.callAgent(ctx, rpc.MethodDeleteVifFromGateway, rpc.DeleteVifArgs{
		OvsdbID:           ovsdbID,
		LogicalSwitchUUID: ls.UUID,
		MACs:              addrs,
	})
}

func (p *Plugin) connectionsOfNetwork(networkID string) ([]*models.L2GatewayConnection, error) {
	conns, err := models.ListL2GatewayConnections()
	if err != nil {
		return nil, err
	}

	var out []*models.L2GatewayConnection
	for _, conn := range conns {
		if conn.NetworkID == networkID {
			out = append(out, conn)
		}
	}
	return out, nil
}

// logicalSwitchArg builds the reference for the network's logical
// switch on one OVSDB; an unknown switch goes out without a uuid so the
// writer inserts it. The switch name carries the network id.
func (p *Plugin) logicalSwitchArg(ctx context.Context, ovsdbID, networkID string) (rpc.LogicalSwitchArg, error) {
	arg := rpc.LogicalSwitchArg{Name: networkID}

	ls, err := models.GetLogicalSwitchByName(ovsdbID, networkID)
	if err != nil {
		return arg, err
	}
	if ls != nil {
		arg.UUID = ls.UUID
		arg.TunnelKey = ls.TunnelKey
		return arg, nil
	}

	key, err := p.tenants.VxlanSegment(ctx, networkID)
	if err != nil {
		return arg, err
	}
	arg.TunnelKey = key
	return arg, nil
}

// gatewayPorts resolves every (device, interface) of the gateway to
// port uuids, grouped per ovsdb identifier.
func (p *Plugin) gatewayPorts(gw *models.L2Gateway) ([]string, map[string][]string, error) {
	var (
		ids  []string
		byID = map[string][]string{}
	)

	for _, dev := range gw.Devices {
		ovsdbID, sw, err := models.FindPhysicalSwitchByName(dev.DeviceName)
		if err != nil {
			return nil, nil, err
		}

		for _, itf := range dev.Interfaces {
			port, err := models.GetPhysicalPortByName(ovsdbID, sw.Name, itf)
			if err != nil {
				return nil, nil, err
			}
			if port == nil {
				return nil, nil, errors.Wrapf(terrors.ErrPhysicalPortNotExists, "%s on %s", itf, dev.DeviceName)
			}
			if len(byID[ovsdbID]) == 0 {
				ids = append(ids, ovsdbID)
			}
			byID[ovsdbID] = append(byID[ovsdbID], port.UUID)
		}
	}
	return ids, byID, nil
}

// locatorMacs groups the network's compute-side MACs per tunnel
// endpoint for one OVSDB.
func (p *Plugin) locatorMacs(ctx context.Context, ovsdbID string, endpoints []PortEndpoint) ([]rpc.LocatorMacsArg, error) {
	byIP := map[string]*rpc.LocatorMacsArg{}
	var order []string

	for _, ep := range endpoints {
		tunnelIP, err := p.resolver.TunnelIP(ctx, ep.Host)
		if err != nil {
			return nil, err
		}

		lm, ok := byIP[tunnelIP]
		if !ok {
			arg := rpc.LocatorArg{DstIP: tunnelIP}
			if loc, err := models.GetPhysicalLocatorByDstIP(ovsdbID, tunnelIP); err != nil {
				return nil, err
			} else if loc != nil {
				arg.UUID = loc.UUID
			}
			lm = &rpc.LocatorMacsArg{Locator: arg}
			byIP[tunnelIP] = lm
			order = append(order, tunnelIP)
		}
		lm.MACs = append(lm.MACs, ep.MACs...)
	}

	out := make([]rpc.LocatorMacsArg, 0, len(order))
	for _, ip := range order {
		out = append(out, *byIP[ip])
	}
	return out, nil
}

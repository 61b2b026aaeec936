package plugin

import (
	"context"
	"sync"

	"github.com/alphadose/haxmap"
	"github.com/projecteru2/core/log"
	"github.com/samber/lo"

	"github.com/projecteru2/yavtep/internal/metrics"
	"github.com/projecteru2/yavtep/internal/models"
	"github.com/projecteru2/yavtep/internal/ovsdb"
	"github.com/projecteru2/yavtep/internal/rpc"
	"github.com/projecteru2/yavtep/internal/utils"
	"github.com/projecteru2/yavtep/pkg/jsonrpc"
)

// Plugin is the control-plane adapter: it projects the monitor event
// stream into the metadata store and turns northbound intents into
// writer calls on the agents.
type Plugin struct {
	notifier Notifier
	tenants  TenantLookup
	resolver EndpointResolver

	agents *haxmap.Map[string, *jsonrpc.Session]

	locks  *haxmap.Map[string, *sync.Mutex]
	queues *haxmap.Map[string, *eventQueue]
}

// New .
func New(notifier Notifier, tenants TenantLookup, resolver EndpointResolver) *Plugin {
	return &Plugin{
		notifier: notifier,
		tenants:  tenants,
		resolver: resolver,
		agents:   haxmap.New[string, *jsonrpc.Session](),
		locks:    haxmap.New[string, *sync.Mutex](),
		queues:   haxmap.New[string, *eventQueue](),
	}
}

// lockFor serializes event processing per ovsdb_identifier; different
// identifiers proceed concurrently.
func (p *Plugin) lockFor(ovsdbID string) *sync.Mutex {
	mu, _ := p.locks.GetOrSet(ovsdbID, &sync.Mutex{})
	return mu
}

// eventQueue keeps one identifier's events in arrival order. A single
// drainer works the queue at a time, so the per-identifier mutex never
// sees contending events that could swap their order.
type eventQueue struct {
	sync.Mutex
	evs     []*queuedEvent
	running bool
}

type queuedEvent struct {
	ev   *ovsdb.TableEvent
	done func(error)
}

// EnqueueEvent appends ev to its identifier's queue and ensures a
// drainer is working it. done, when non-nil, runs after the event has
// been applied, with the apply error.
func (p *Plugin) EnqueueEvent(ctx context.Context, ev *ovsdb.TableEvent, done func(error)) {
	q, _ := p.queues.GetOrSet(ev.OvsdbID, &eventQueue{})

	q.Lock()
	q.evs = append(q.evs, &queuedEvent{ev: ev, done: done})
	if q.running {
		q.Unlock()
		return
	}
	q.running = true
	q.Unlock()

	run := func() { p.drainEvents(ctx, q) }
	if err := utils.Pool.Submit(run); err != nil {
		log.WithFunc("plugin.EnqueueEvent").Warnf(ctx, "pool overloaded, draining %s in a fresh goroutine: %v", ev.OvsdbID, err)
		go run()
	}
}

func (p *Plugin) drainEvents(ctx context.Context, q *eventQueue) {
	for {
		q.Lock()
		if len(q.evs) == 0 {
			q.running = false
			q.Unlock()
			return
		}
		head := q.evs[0]
		q.evs = q.evs[1:]
		q.Unlock()

		err := p.ApplyEvent(ctx, head.ev)
		if head.done != nil {
			head.done(err)
		}
	}
}

// ApplyEvent projects one monitor event into the store. An Initial
// event truncates the identifier's tables first and then drains the
// pending queue, since its arrival means the session just became
// connected.
func (p *Plugin) ApplyEvent(ctx context.Context, ev *ovsdb.TableEvent) error {
	mu := p.lockFor(ev.OvsdbID)
	mu.Lock()
	defer mu.Unlock()

	metrics.Incr(metrics.MetricMonitorEvents, map[string]string{"ovsdb": ev.OvsdbID}) //nolint

	if ev.Initial {
		if err := p.applyInitial(ev); err != nil {
			return err
		}
		p.drainPending(ctx, ev.OvsdbID)
		return nil
	}

	return p.applyIncremental(ctx, ev)
}

func (p *Plugin) applyInitial(ev *ovsdb.TableEvent) error {
	if err := models.TruncateOvsdbState(ev.OvsdbID); err != nil {
		return err
	}
	return p.upsertRecords(ev.NewLogicalSwitches, ev.NewPhysicalSwitches, ev.NewPhysicalPorts,
		ev.NewPhysicalLocators, ev.NewUcastMacsLocal, ev.NewUcastMacsRemote)
}

func (p *Plugin) applyIncremental(ctx context.Context, ev *ovsdb.TableEvent) error {
	logger := log.WithFunc("plugin.applyIncremental")

	if err := p.upsertRecords(
		append(ev.NewLogicalSwitches, ev.ModifiedLogicalSwitches...),
		append(ev.NewPhysicalSwitches, ev.ModifiedPhysicalSwitches...),
		append(ev.NewPhysicalPorts, ev.ModifiedPhysicalPorts...),
		append(ev.NewPhysicalLocators, ev.ModifiedPhysicalLocators...),
		append(ev.NewUcastMacsLocal, ev.ModifiedUcastMacsLocal...),
		append(ev.NewUcastMacsRemote, ev.ModifiedUcastMacsRemote...),
	); err != nil {
		return err
	}

	if err := p.notifyLearnedMacs(ctx, ev.OvsdbID, ev.NewUcastMacsLocal); err != nil {
		logger.Warnf(ctx, "fdb add notification failed: %v", err)
	}
	if err := p.withdrawMacs(ctx, ev.OvsdbID, ev.DeletedUcastMacsLocal); err != nil {
		logger.Warnf(ctx, "fdb remove notification failed: %v", err)
	}

	for _, mac := range ev.DeletedUcastMacsRemote {
		if err := mac.Delete(); err != nil {
			return err
		}
	}
	for _, mac := range ev.DeletedUcastMacsLocal {
		if err := mac.Delete(); err != nil {
			return err
		}
	}
	for _, loc := range ev.DeletedPhysicalLocators {
		if err := p.cascadeLocatorDelete(ctx, ev.OvsdbID, loc); err != nil {
			return err
		}
	}
	for _, port := range ev.DeletedPhysicalPorts {
		if err := p.cascadePortDelete(ctx, ev.OvsdbID, port); err != nil {
			return err
		}
	}
	for _, ls := range ev.DeletedLogicalSwitches {
		if err := ls.Delete(); err != nil {
			return err
		}
	}
	for _, ps := range ev.DeletedPhysicalSwitches {
		if err := p.cascadeSwitchDelete(ctx, ev.OvsdbID, ps); err != nil {
			return err
		}
	}

	return nil
}

func (p *Plugin) upsertRecords(
	lss []*models.LogicalSwitch,
	pss []*models.PhysicalSwitch,
	ports []*ovsdb.PortRecord,
	locs []*models.PhysicalLocator,
	localMacs []*models.UcastMacLocal,
	remoteMacs []*models.UcastMacRemote,
) error {
	for _, ls := range lss {
		if err := ls.Save(); err != nil {
			return err
		}
	}
	for _, ps := range pss {
		if err := ps.Save(); err != nil {
			return err
		}
	}
	for _, port := range ports {
		if err := p.upsertPort(port); err != nil {
			return err
		}
	}
	for _, loc := range locs {
		if err := loc.Save(); err != nil {
			return err
		}
	}
	for _, mac := range localMacs {
		if err := mac.Save(); err != nil {
			return err
		}
	}
	for _, mac := range remoteMacs {
		if err := mac.Save(); err != nil {
			return err
		}
	}
	return nil
}

// upsertPort saves the port and reconciles its vlan bindings against
// the ones carried on the row.
func (p *Plugin) upsertPort(port *ovsdb.PortRecord) error {
	if port.PhysicalSwitchID == "" {
		// a modify without the ports column keeps prior ownership
		if known, err := models.LoadPhysicalPort(port.OvsdbID, port.UUID); err == nil {
			port.PhysicalSwitchID = known.PhysicalSwitchID
		}
	}
	if err := port.Save(); err != nil {
		return err
	}

	existing, err := models.ListVlanBindingsByPort(port.OvsdbID, port.UUID)
	if err != nil {
		return err
	}

	for _, b := range existing {
		if _, ok := port.VlanBindings[b.Vlan]; !ok {
			if err := b.Delete(); err != nil {
				return err
			}
		}
	}
	for vlan, lsUUID := range port.VlanBindings {
		if err := models.NewVlanBinding(port.OvsdbID, port.UUID, vlan, lsUUID).Save(); err != nil {
			return err
		}
	}
	return nil
}

// notifyLearnedMacs pushes newly learned local MACs into the overlay,
// one tunnel-sync per VTEP endpoint plus the fdb fragments.
func (p *Plugin) notifyLearnedMacs(ctx context.Context, ovsdbID string, macs []*models.UcastMacLocal) error {
	if len(macs) == 0 {
		return nil
	}

	tunnelIP, err := p.vtepTunnelIP(ovsdbID)
	if err != nil || tunnelIP == "" {
		return err
	}

	if err := p.notifier.TunnelSync(ctx, tunnelIP); err != nil {
		return err
	}

	for _, mac := range macs {
		ls, err := models.LoadLogicalSwitch(ovsdbID, mac.LogicalSwitchUUID)
		if err != nil {
			continue
		}
		fdb := fdbFragment(ls.Name, ls.TunnelKey, tunnelIP, []FDBEntry{{MAC: mac.MAC, IP: mac.IPAddr}})
		if err := p.notifier.AddFDBEntries(ctx, fdb); err != nil {
			return err
		}
	}
	return nil
}

func (p *Plugin) withdrawMacs(ctx context.Context, ovsdbID string, macs []*models.UcastMacLocal) error {
	if len(macs) == 0 {
		return nil
	}

	tunnelIP, err := p.vtepTunnelIP(ovsdbID)
	if err != nil || tunnelIP == "" {
		return err
	}

	for _, mac := range macs {
		ls, err := models.LoadLogicalSwitch(ovsdbID, mac.LogicalSwitchUUID)
		if err != nil {
			continue
		}
		fdb := fdbFragment(ls.Name, ls.TunnelKey, tunnelIP, []FDBEntry{{MAC: mac.MAC, IP: mac.IPAddr}})
		if err := p.notifier.RemoveFDBEntries(ctx, fdb, ""); err != nil {
			return err
		}
	}
	return nil
}

func (p *Plugin) vtepTunnelIP(ovsdbID string) (string, error) {
	switches, err := models.ListPhysicalSwitches(ovsdbID)
	if err != nil || len(switches) == 0 {
		return "", err
	}
	return switches[0].TunnelIP, nil
}

// cascadeSwitchDelete removes the switch record; losing the last
// switch under an identifier tears down every logical switch there.
func (p *Plugin) cascadeSwitchDelete(ctx context.Context, ovsdbID string, ps *models.PhysicalSwitch) error {
	logger := log.WithFunc("plugin.cascadeSwitchDelete")

	if err := ps.Delete(); err != nil {
		return err
	}

	remaining, err := models.ListPhysicalSwitches(ovsdbID)
	if err != nil {
		return err
	}
	if len(remaining) > 0 {
		return nil
	}

	switches, err := models.ListLogicalSwitches(ovsdbID)
	if err != nil {
		return err
	}
	for _, ls := range switches {
		err := p.callAgent(ctx, rpc.MethodDeleteNetwork, rpc.DeleteNetworkArgs{
			OvsdbID:           ovsdbID,
			LogicalSwitchUUID: ls.UUID,
		})
		if err != nil {
			logger.Warnf(ctx, "cleanup of logical switch %s on %s failed: %v", ls.UUID, ovsdbID, err)
		}
	}
	return nil
}

// cascadePortDelete drops connections referencing the port and, when no
// other port keeps a binding to the same logical switch, sweeps that
// switch's remote MACs.
func (p *Plugin) cascadePortDelete(ctx context.Context, ovsdbID string, port *ovsdb.PortRecord) error {
	logger := log.WithFunc("plugin.cascadePortDelete")

	stored, err := models.LoadPhysicalPort(ovsdbID, port.UUID)
	if err != nil {
		stored = port.PhysicalPort
	}

	if stored.PhysicalSwitchID != "" {
		if sw, err := models.LoadPhysicalSwitch(ovsdbID, stored.PhysicalSwitchID); err == nil {
			conns, err := models.ConnectionsReferencingPort(sw.Name, stored.Name)
			if err != nil {
				return err
			}
			for _, conn := range conns {
				if err := conn.Delete(); err != nil {
					return err
				}
			}
		}
	}

	bindings, err := models.ListVlanBindingsByPort(ovsdbID, port.UUID)
	if err != nil {
		return err
	}

	for _, b := range bindings {
		if err := b.Delete(); err != nil {
			return err
		}

		others, err := models.ListVlanBindingsByLogicalSwitch(ovsdbID, b.LogicalSwitchUUID)
		if err != nil {
			return err
		}
		if len(others) > 0 {
			continue
		}

		macs, err := models.ListUcastMacsRemoteByLogicalSwitch(ovsdbID, b.LogicalSwitchUUID)
		if err != nil {
			return err
		}
		if len(macs) == 0 {
			continue
		}

		addrs := lo.Map(macs, func(mac *models.UcastMacRemote, _ int) string { return mac.MAC })
		err = p.callAgent(ctx, rpc.MethodDeleteVifFromGateway, rpc.DeleteVifArgs{
			OvsdbID:           ovsdbID,
			LogicalSwitchUUID: b.LogicalSwitchUUID,
			MACs:              addrs,
		})
		if err != nil {
			logger.Warnf(ctx, "remote mac sweep for %s on %s failed: %v", b.LogicalSwitchUUID, ovsdbID, err)
		}
	}

	return stored.Delete()
}

// cascadeLocatorDelete reacts to a tunnel endpoint disappearing: when
// the endpoint belongs to a known compute agent, the overlay forgets
// the path to every logical switch on the VTEP.
func (p *Plugin) cascadeLocatorDelete(ctx context.Context, ovsdbID string, loc *models.PhysicalLocator) error {
	logger := log.WithFunc("plugin.cascadeLocatorDelete")

	if host, ok := p.resolver.HostByTunnelIP(ctx, loc.DstIP); ok {
		switches, err := models.ListLogicalSwitches(ovsdbID)
		if err != nil {
			return err
		}
		for _, ls := range switches {
			fdb := fdbFragment(ls.Name, ls.TunnelKey, loc.DstIP, nil)
			if err := p.notifier.RemoveFDBEntries(ctx, fdb, host); err != nil {
				logger.Warnf(ctx, "tunnel delete for %s toward %s failed: %v", ls.Name, host, err)
			}
		}
	}

	return loc.Delete()
}

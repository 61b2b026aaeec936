package plugin

import (
	"context"
	"encoding/json"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/projecteru2/yavtep/internal/models"
	"github.com/projecteru2/yavtep/internal/ovsdb"
	"github.com/projecteru2/yavtep/internal/rpc"
	"github.com/projecteru2/yavtep/pkg/jsonrpc"
	"github.com/projecteru2/yavtep/pkg/store"
	storemocks "github.com/projecteru2/yavtep/pkg/store/mocks"
	"github.com/projecteru2/yavtep/pkg/terrors"
	"github.com/projecteru2/yavtep/pkg/test/assert"
)

type fakeTenants struct {
	seg int
	eps []PortEndpoint
}

func (f fakeTenants) VxlanSegment(context.Context, string) (int, error) { return f.seg, nil }
func (f fakeTenants) NetworkEndpoints(context.Context, string) ([]PortEndpoint, error) {
	return f.eps, nil
}

type fakeResolver struct {
	byHost map[string]string
}

func (f fakeResolver) TunnelIP(_ context.Context, host string) (string, error) {
	ip, ok := f.byHost[host]
	if !ok {
		return "", errors.Errorf("unknown host %s", host)
	}
	return ip, nil
}

func (f fakeResolver) HostByTunnelIP(_ context.Context, tunnelIP string) (string, bool) {
	for host, ip := range f.byHost {
		if ip == tunnelIP {
			return host, true
		}
	}
	return "", false
}

type recordingNotifier struct {
	tunnels []string
	added   []FDB
	removed []FDB
}

func (n *recordingNotifier) TunnelSync(_ context.Context, ip string) error {
	n.tunnels = append(n.tunnels, ip)
	return nil
}

func (n *recordingNotifier) AddFDBEntries(_ context.Context, fdb FDB) error {
	n.added = append(n.added, fdb)
	return nil
}

func (n *recordingNotifier) RemoveFDBEntries(_ context.Context, fdb FDB, _ string) error {
	n.removed = append(n.removed, fdb)
	return nil
}

func newTestPlugin(t *testing.T, resolver fakeResolver, tenants fakeTenants) (*Plugin, *recordingNotifier) {
	t.Helper()
	store.SetStore(storemocks.NewFakeStore())
	notifier := &recordingNotifier{}
	return New(notifier, tenants, resolver), notifier
}

type agentCall struct {
	Method string
	Params json.RawMessage
}

// attachFakeAgent registers one connected agent session whose remote
// side records every call and answers it, failing when failAt matches
// the 1-based call ordinal.
func attachFakeAgent(t *testing.T, p *Plugin, failAt int) <-chan agentCall {
	t.Helper()

	server, client := net.Pipe()
	sess := jsonrpc.NewSession("agent1", server, jsonrpc.WithTimeouts(time.Second*5, time.Second*2))
	sess.Start(context.Background())
	p.agents.Set("agent1", sess)

	calls := make(chan agentCall, 16)
	go func() {
		dec := jsonrpc.NewDecoder(client)
		n := 0
		for {
			req, err := dec.DecodeMessage()
			if err != nil {
				return
			}
			n++
			calls <- agentCall{Method: req.Method, Params: req.Params}

			body := map[string]any{"result": nil, "error": nil, "id": req.IDKey()}
			if failAt > 0 && n == failAt {
				body["error"] = "ovsdb unreachable"
			}
			resp, _ := json.Marshal(body)
			client.Write(resp) //nolint:errcheck
		}
	}()

	t.Cleanup(func() {
		sess.Close()
		client.Close()
	})
	return calls
}

func decodeCall[T any](t *testing.T, call agentCall) T {
	t.Helper()
	var args T
	assert.NilErr(t, json.Unmarshal(call.Params, &args))
	return args
}

func initialSnapshotEvent() *ovsdb.TableEvent {
	ps := models.NewPhysicalSwitch("ovsdb1", "ps1")
	ps.Name = "tor-1"
	ps.TunnelIP = "10.0.0.1"

	port := models.NewPhysicalPort("ovsdb1", "p1")
	port.Name = "eth3"
	port.PhysicalSwitchID = "ps1"

	ls := models.NewLogicalSwitch("ovsdb1", "ls1")
	ls.Name = "net1"
	ls.TunnelKey = 777

	return &ovsdb.TableEvent{
		OvsdbID:             "ovsdb1",
		Initial:             true,
		NewPhysicalSwitches: []*models.PhysicalSwitch{ps},
		NewPhysicalPorts: []*ovsdb.PortRecord{
			{PhysicalPort: port, VlanBindings: map[int]string{100: "ls1"}},
		},
		NewLogicalSwitches: []*models.LogicalSwitch{ls},
	}
}

func TestApplyInitialProjectsSnapshot(t *testing.T) {
	p, _ := newTestPlugin(t, fakeResolver{}, fakeTenants{})

	// a stale record from a previous connection epoch
	ghost := models.NewLogicalSwitch("ovsdb1", "ghost")
	ghost.Name = "gone"
	assert.NilErr(t, ghost.Save())

	assert.NilErr(t, p.ApplyEvent(context.Background(), initialSnapshotEvent()))

	sw, err := models.GetPhysicalSwitchByName("ovsdb1", "tor-1")
	assert.NilErr(t, err)
	assert.NotNil(t, sw)
	assert.Equal(t, "10.0.0.1", sw.TunnelIP)

	port, err := models.GetPhysicalPortByName("ovsdb1", "tor-1", "eth3")
	assert.NilErr(t, err)
	assert.NotNil(t, port)

	bindings, err := models.ListVlanBindingsByPort("ovsdb1", "p1")
	assert.NilErr(t, err)
	assert.Equal(t, 1, len(bindings))
	assert.Equal(t, 100, bindings[0].Vlan)
	assert.Equal(t, "ls1", bindings[0].LogicalSwitchUUID)

	ls, err := models.GetLogicalSwitchByName("ovsdb1", "net1")
	assert.NilErr(t, err)
	assert.NotNil(t, ls)

	stale, err := models.GetLogicalSwitchByName("ovsdb1", "gone")
	assert.NilErr(t, err)
	assert.Nil(t, stale)
}

func enqueueInsert(t *testing.T, mac, dstIP string) {
	t.Helper()
	enqueued, err := models.EnqueuePendingUcastMacRemote(&models.PendingUcastMacRemote{
		Op:                models.PendingOpInsert,
		OvsdbID:           "ovsdb1",
		LogicalSwitchUUID: "ls1",
		LogicalSwitchName: "net1",
		MAC:               mac,
		DstIP:             dstIP,
	})
	assert.NilErr(t, err)
	assert.True(t, enqueued)
}

func TestInitialEventDrainsPendingInOrder(t *testing.T) {
	p, _ := newTestPlugin(t, fakeResolver{}, fakeTenants{})
	calls := attachFakeAgent(t, p, 0)

	enqueueInsert(t, "aa:aa:aa:aa:aa:01", "9.0.0.2")
	enqueueInsert(t, "aa:aa:aa:aa:aa:02", "9.0.0.2")
	enqueueInsert(t, "aa:aa:aa:aa:aa:03", "9.0.0.3")

	assert.NilErr(t, p.ApplyEvent(context.Background(), initialSnapshotEvent()))

	for _, want := range []string{"aa:aa:aa:aa:aa:01", "aa:aa:aa:aa:aa:02", "aa:aa:aa:aa:aa:03"} {
		call := <-calls
		assert.Equal(t, rpc.MethodAddVifToGateway, call.Method)
		args := decodeCall[rpc.VifArgs](t, call)
		assert.Equal(t, want, args.Mac.MAC)
		// the snapshot re-registered the logical switch; the replay
		// rides on the refreshed row
		assert.Equal(t, "ls1", args.LogicalSwitch.UUID)
		assert.Equal(t, 777, args.LogicalSwitch.TunnelKey)
	}

	rows, err := models.ListPendingUcastMacsRemote("ovsdb1")
	assert.NilErr(t, err)
	assert.Equal(t, 0, len(rows))
}

func TestDrainStopsOnFirstFailure(t *testing.T) {
	p, _ := newTestPlugin(t, fakeResolver{}, fakeTenants{})
	calls := attachFakeAgent(t, p, 2)

	enqueueInsert(t, "aa:aa:aa:aa:aa:01", "9.0.0.2")
	enqueueInsert(t, "aa:aa:aa:aa:aa:02", "9.0.0.2")
	enqueueInsert(t, "aa:aa:aa:aa:aa:03", "9.0.0.3")

	assert.NilErr(t, p.ApplyEvent(context.Background(), initialSnapshotEvent()))

	<-calls
	<-calls
	select {
	case call := <-calls:
		t.Fatalf("unexpected call %s after failed replay", call.Method)
	case <-time.After(time.Millisecond * 100):
	}

	rows, err := models.ListPendingUcastMacsRemote("ovsdb1")
	assert.NilErr(t, err)
	assert.Equal(t, 2, len(rows))
	assert.Equal(t, "aa:aa:aa:aa:aa:02", rows[0].MAC)
	assert.Equal(t, "aa:aa:aa:aa:aa:03", rows[1].MAC)
}

func seedConnectedNetwork(t *testing.T) {
	t.Helper()

	ls := models.NewLogicalSwitch("ovsdb1", "ls1")
	ls.Name = "net1"
	ls.TunnelKey = 777
	assert.NilErr(t, ls.Save())

	conn := models.NewL2GatewayConnection("conn1")
	conn.L2GatewayID = "gw1"
	conn.NetworkID = "net1"
	conn.SegmentationID = 100
	conn.OvsdbID = "ovsdb1"
	assert.NilErr(t, conn.Save())
}

func TestPortUpsertMigratesKnownMac(t *testing.T) {
	resolver := fakeResolver{byHost: map[string]string{"compute2": "9.0.0.2"}}
	p, _ := newTestPlugin(t, resolver, fakeTenants{seg: 777})
	calls := attachFakeAgent(t, p, 0)

	seedConnectedNetwork(t)

	oldLoc := models.NewPhysicalLocator("ovsdb1", "loc-old")
	oldLoc.DstIP = "9.0.0.1"
	assert.NilErr(t, oldLoc.Save())

	known := models.NewUcastMacRemote("ovsdb1", "mac1")
	known.MAC = "aa:bb:cc:dd:ee:ff"
	known.LogicalSwitchUUID = "ls1"
	known.LocatorUUID = "loc-old"
	assert.NilErr(t, known.Save())

	err := p.HandlePortUpsert(context.Background(), PortIntent{
		NetworkID: "net1",
		Host:      "compute2",
		MACs:      []rpc.MacArg{{MAC: "aa:bb:cc:dd:ee:ff", IPAddr: "192.168.0.5"}},
	})
	assert.NilErr(t, err)

	call := <-calls
	assert.Equal(t, rpc.MethodUpdateVifToGateway, call.Method)
	args := decodeCall[rpc.VifArgs](t, call)
	assert.Equal(t, "mac1", args.Mac.UUID)
	assert.Equal(t, "9.0.0.2", args.Locator.DstIP)
	assert.Equal(t, "", args.Locator.UUID)
}

func TestPortUpsertSkipsUnmovedMac(t *testing.T) {
	resolver := fakeResolver{byHost: map[string]string{"compute1": "9.0.0.1"}}
	p, _ := newTestPlugin(t, resolver, fakeTenants{seg: 777})
	calls := attachFakeAgent(t, p, 0)

	seedConnectedNetwork(t)

	loc := models.NewPhysicalLocator("ovsdb1", "loc1")
	loc.DstIP = "9.0.0.1"
	assert.NilErr(t, loc.Save())

	known := models.NewUcastMacRemote("ovsdb1", "mac1")
	known.MAC = "aa:bb:cc:dd:ee:ff"
	known.LogicalSwitchUUID = "ls1"
	known.LocatorUUID = "loc1"
	assert.NilErr(t, known.Save())

	err := p.HandlePortUpsert(context.Background(), PortIntent{
		NetworkID: "net1",
		Host:      "compute1",
		MACs:      []rpc.MacArg{{MAC: "aa:bb:cc:dd:ee:ff"}},
	})
	assert.NilErr(t, err)

	select {
	case call := <-calls:
		t.Fatalf("unexpected call %s for unmoved mac", call.Method)
	case <-time.After(time.Millisecond * 100):
	}
}

func TestPortUpsertParksWhenNoAgent(t *testing.T) {
	resolver := fakeResolver{byHost: map[string]string{"compute2": "9.0.0.2"}}
	p, _ := newTestPlugin(t, resolver, fakeTenants{seg: 777})

	seedConnectedNetwork(t)

	err := p.HandlePortUpsert(context.Background(), PortIntent{
		NetworkID: "net1",
		Host:      "compute2",
		MACs:      []rpc.MacArg{{MAC: "aa:bb:cc:dd:ee:ff", IPAddr: "192.168.0.5"}},
	})
	assert.NilErr(t, err)

	rows, err := models.ListPendingUcastMacsRemote("ovsdb1")
	assert.NilErr(t, err)
	assert.Equal(t, 1, len(rows))
	assert.Equal(t, models.PendingOpInsert, rows[0].Op)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", rows[0].MAC)
	assert.Equal(t, "9.0.0.2", rows[0].DstIP)
}

func TestLearnedLocalMacFansOutFDB(t *testing.T) {
	p, notifier := newTestPlugin(t, fakeResolver{}, fakeTenants{})

	ps := models.NewPhysicalSwitch("ovsdb1", "ps1")
	ps.Name = "tor-1"
	ps.TunnelIP = "10.0.0.1"
	assert.NilErr(t, ps.Save())

	ls := models.NewLogicalSwitch("ovsdb1", "ls1")
	ls.Name = "net1"
	ls.TunnelKey = 777
	assert.NilErr(t, ls.Save())

	learned := models.NewUcastMacLocal("ovsdb1", "lm1")
	learned.MAC = "de:ad:be:ef:00:01"
	learned.LogicalSwitchUUID = "ls1"
	learned.IPAddr = "192.168.0.9"

	ev := &ovsdb.TableEvent{
		OvsdbID:           "ovsdb1",
		NewUcastMacsLocal: []*models.UcastMacLocal{learned},
	}
	assert.NilErr(t, p.ApplyEvent(context.Background(), ev))

	assert.Equal(t, 1, len(notifier.tunnels))
	assert.Equal(t, "10.0.0.1", notifier.tunnels[0])
	assert.Equal(t, 1, len(notifier.added))

	net1 := notifier.added[0]["net1"]
	assert.Equal(t, 777, net1.SegmentID)
	entries := net1.Ports["10.0.0.1"]
	assert.Equal(t, 2, len(entries))
	assert.Equal(t, floodingEntry, entries[0])
	assert.Equal(t, "de:ad:be:ef:00:01", entries[1].MAC)
}

func TestConnectionCreateRejectsBadSegmentation(t *testing.T) {
	p, _ := newTestPlugin(t, fakeResolver{}, fakeTenants{seg: 777})

	err := p.HandleConnectionCreate(context.Background(), ConnectionIntent{
		ConnectionID: "conn1",
		L2GatewayID:  "gw1",
		NetworkID:    "net1",
		Segmentation: 4096,
	})
	assert.Err(t, err)
}

func TestConnectionCreateTargetsGatewayPorts(t *testing.T) {
	resolver := fakeResolver{byHost: map[string]string{"compute1": "9.0.0.1"}}
	tenants := fakeTenants{
		seg: 777,
		eps: []PortEndpoint{{Host: "compute1", MACs: []rpc.MacArg{{MAC: "aa:bb:cc:dd:ee:01"}}}},
	}
	p, _ := newTestPlugin(t, resolver, tenants)
	calls := attachFakeAgent(t, p, 0)

	ps := models.NewPhysicalSwitch("ovsdb1", "ps1")
	ps.Name = "tor-1"
	assert.NilErr(t, ps.Save())

	port := models.NewPhysicalPort("ovsdb1", "p1")
	port.Name = "eth3"
	port.PhysicalSwitchID = "ps1"
	assert.NilErr(t, port.Save())

	gw := models.NewL2Gateway("gw1")
	gw.Name = "rack-1"
	gw.Devices = []models.L2GatewayDevice{{DeviceName: "tor-1", Interfaces: []string{"eth3"}}}
	assert.NilErr(t, gw.Save())

	err := p.HandleConnectionCreate(context.Background(), ConnectionIntent{
		ConnectionID: "conn1",
		L2GatewayID:  "gw1",
		NetworkID:    "net1",
		Segmentation: 100,
	})
	assert.NilErr(t, err)

	call := <-calls
	assert.Equal(t, rpc.MethodUpdateConnectionToGateway, call.Method)
	args := decodeCall[rpc.ConnectionArgs](t, call)
	assert.Equal(t, "ovsdb1", args.OvsdbID)
	assert.Equal(t, ovsdb.OpConnectionCreate, args.Op)
	assert.Equal(t, 100, args.Vlan)
	assert.Equal(t, 777, args.LogicalSwitch.TunnelKey)
	assert.Equal(t, []string{"p1"}, args.Ports)
	assert.Equal(t, 1, len(args.Locators))
	assert.Equal(t, "9.0.0.1", args.Locators[0].Locator.DstIP)

	conn, err := models.LoadL2GatewayConnection("conn1")
	assert.NilErr(t, err)
	assert.Equal(t, "ovsdb1", conn.OvsdbID)
}

func TestEventsApplyInArrivalOrder(t *testing.T) {
	p, _ := newTestPlugin(t, fakeResolver{}, fakeTenants{})
	ctx := context.Background()

	assert.NilErr(t, p.ApplyEvent(ctx, initialSnapshotEvent()))

	// Flap one logical switch through create/delete pairs. Any pair
	// applied out of order leaves the "deleted" row behind.
	const rounds = 200
	last := make(chan error, 1)
	for i := 0; i < rounds; i++ {
		flap := models.NewLogicalSwitch("ovsdb1", "ls-flap")
		flap.Name = "flap"
		flap.TunnelKey = 900

		create := &ovsdb.TableEvent{OvsdbID: "ovsdb1", NewLogicalSwitches: []*models.LogicalSwitch{flap}}
		create.Normalize()
		p.EnqueueEvent(ctx, create, nil)

		del := &ovsdb.TableEvent{OvsdbID: "ovsdb1", DeletedLogicalSwitches: []*models.LogicalSwitch{models.NewLogicalSwitch("ovsdb1", "ls-flap")}}
		del.Normalize()
		if i == rounds-1 {
			p.EnqueueEvent(ctx, del, func(err error) { last <- err })
		} else {
			p.EnqueueEvent(ctx, del, nil)
		}
	}

	select {
	case err := <-last:
		assert.NilErr(t, err)
	case <-time.After(time.Second * 10):
		t.Fatal("event queue never drained")
	}

	_, err := models.LoadLogicalSwitch("ovsdb1", "ls-flap")
	assert.True(t, terrors.IsKeyNotExistsErr(err))
}

func TestEnqueueDeliversEveryEvent(t *testing.T) {
	p, _ := newTestPlugin(t, fakeResolver{}, fakeTenants{})
	ctx := context.Background()

	const n = 100
	applied := make([]int, 0, n)
	done := make(chan struct{})
	for i := 0; i < n; i++ {
		i := i
		ls := models.NewLogicalSwitch("ovsdb1", "ls-seq")
		ls.Name = "seq"
		ls.Description = strconv.Itoa(i)

		ev := &ovsdb.TableEvent{OvsdbID: "ovsdb1", ModifiedLogicalSwitches: []*models.LogicalSwitch{ls}}
		ev.Normalize()
		p.EnqueueEvent(ctx, ev, func(err error) {
			assert.NilErr(t, err)
			applied = append(applied, i)
			if len(applied) == n {
				close(done)
			}
		})
	}

	select {
	case <-done:
	case <-time.After(time.Second * 10):
		t.Fatalf("only %d of %d events applied", len(applied), n)
	}

	for i, got := range applied {
		assert.Equal(t, i, got)
	}

	ls, err := models.LoadLogicalSwitch("ovsdb1", "ls-seq")
	assert.NilErr(t, err)
	assert.Equal(t, strconv.Itoa(n-1), ls.Description)
}

package models

import (
	"testing"
	"time"

	"github.com/projecteru2/yavtep/internal/meta"
	"github.com/projecteru2/yavtep/pkg/store"
	storemocks "github.com/projecteru2/yavtep/pkg/store/mocks"
	"github.com/projecteru2/yavtep/pkg/test/assert"
)

func setupStore(t *testing.T) {
	t.Helper()
	store.SetStore(storemocks.NewFakeStore())
}

func TestPhysicalSwitchRoundtrip(t *testing.T) {
	setupStore(t)

	ps := NewPhysicalSwitch("ovsdb1", "uuid-ps-1")
	ps.Name = "tor-1"
	ps.TunnelIP = "10.0.0.1"
	assert.NilErr(t, ps.Save())

	got, err := GetPhysicalSwitchByName("ovsdb1", "tor-1")
	assert.NilErr(t, err)
	assert.NotNil(t, got)
	assert.Equal(t, "uuid-ps-1", got.UUID)
	assert.Equal(t, "10.0.0.1", got.TunnelIP)

	none, err := GetPhysicalSwitchByName("ovsdb1", "tor-2")
	assert.NilErr(t, err)
	assert.Nil(t, none)
}

func TestUcastMacRemoteAtMostOne(t *testing.T) {
	setupStore(t)

	mac := NewUcastMacRemote("ovsdb1", "uuid-mac-1")
	mac.MAC = "aa:bb:cc:dd:ee:ff"
	mac.LogicalSwitchUUID = "uuid-ls-1"
	assert.NilErr(t, mac.Save())

	got, err := GetUcastMacRemote("ovsdb1", "uuid-ls-1", "aa:bb:cc:dd:ee:ff")
	assert.NilErr(t, err)
	assert.NotNil(t, got)
	assert.Equal(t, "uuid-mac-1", got.UUID)

	got, err = GetUcastMacRemote("ovsdb1", "uuid-ls-2", "aa:bb:cc:dd:ee:ff")
	assert.NilErr(t, err)
	assert.Nil(t, got)
}

func TestVlanBindingReAddIsNoop(t *testing.T) {
	setupStore(t)

	vb := NewVlanBinding("ovsdb1", "uuid-port-1", 100, "uuid-ls-1")
	assert.NilErr(t, vb.Save())
	assert.NilErr(t, vb.Save())

	all, err := ListVlanBindings("ovsdb1")
	assert.NilErr(t, err)
	assert.Equal(t, 1, len(all))
	assert.Equal(t, "uuid-ls-1", all[0].LogicalSwitchUUID)
}

func TestPendingEnqueueOrder(t *testing.T) {
	setupStore(t)

	for _, mac := range []string{"aa:00:00:00:00:01", "aa:00:00:00:00:02", "aa:00:00:00:00:03"} {
		ok, err := EnqueuePendingUcastMacRemote(&PendingUcastMacRemote{
			Op:                PendingOpInsert,
			OvsdbID:           "ovsdb1",
			LogicalSwitchUUID: "uuid-ls-1",
			MAC:               mac,
		})
		assert.NilErr(t, err)
		assert.True(t, ok)
	}

	rows, err := ListPendingUcastMacsRemote("ovsdb1")
	assert.NilErr(t, err)
	assert.Equal(t, 3, len(rows))
	assert.Equal(t, "aa:00:00:00:00:01", rows[0].MAC)
	assert.Equal(t, "aa:00:00:00:00:03", rows[2].MAC)
	assert.True(t, rows[0].Seq < rows[1].Seq && rows[1].Seq < rows[2].Seq)
}

func TestPendingDeleteCancelsInsert(t *testing.T) {
	setupStore(t)

	ok, err := EnqueuePendingUcastMacRemote(&PendingUcastMacRemote{
		Op:                PendingOpInsert,
		OvsdbID:           "ovsdb1",
		LogicalSwitchUUID: "uuid-ls-1",
		MAC:               "aa:00:00:00:00:01",
	})
	assert.NilErr(t, err)
	assert.True(t, ok)

	ok, err = EnqueuePendingUcastMacRemote(&PendingUcastMacRemote{
		Op:                PendingOpDelete,
		OvsdbID:           "ovsdb1",
		LogicalSwitchUUID: "uuid-ls-1",
		MAC:               "aa:00:00:00:00:01",
	})
	assert.NilErr(t, err)
	assert.False(t, ok)

	rows, err := ListPendingUcastMacsRemote("ovsdb1")
	assert.NilErr(t, err)
	assert.Equal(t, 0, len(rows))
}

func TestPendingSameOpReplaces(t *testing.T) {
	setupStore(t)

	for _, locator := range []string{"uuid-loc-1", "uuid-loc-2"} {
		_, err := EnqueuePendingUcastMacRemote(&PendingUcastMacRemote{
			Op:                PendingOpUpdate,
			OvsdbID:           "ovsdb1",
			LogicalSwitchUUID: "uuid-ls-1",
			MAC:               "aa:00:00:00:00:01",
			LocatorUUID:       locator,
		})
		assert.NilErr(t, err)
	}

	rows, err := ListPendingUcastMacsRemote("ovsdb1")
	assert.NilErr(t, err)
	assert.Equal(t, 1, len(rows))
	assert.Equal(t, "uuid-loc-2", rows[0].LocatorUUID)
}

func TestPendingPurge(t *testing.T) {
	setupStore(t)

	_, err := EnqueuePendingUcastMacRemote(&PendingUcastMacRemote{
		Op:      PendingOpDelete,
		OvsdbID: "ovsdb1",
		MAC:     "aa:00:00:00:00:01",
	})
	assert.NilErr(t, err)

	assert.NilErr(t, PurgePendingUcastMacsRemote("ovsdb1"))

	rows, err := ListPendingUcastMacsRemote("ovsdb1")
	assert.NilErr(t, err)
	assert.Equal(t, 0, len(rows))
}

func TestConnectionsReferencingPort(t *testing.T) {
	setupStore(t)

	gw := NewL2Gateway("uuid-gw-1")
	gw.Name = "gw1"
	gw.Devices = []L2GatewayDevice{{DeviceName: "tor-1", Interfaces: []string{"eth3"}}}
	assert.NilErr(t, gw.Save())

	conn := NewL2GatewayConnection("uuid-conn-1")
	conn.L2GatewayID = "uuid-gw-1"
	conn.NetworkID = "uuid-net-1"
	conn.SegmentationID = 100
	conn.OvsdbID = "ovsdb1"
	assert.NilErr(t, conn.Save())

	refs, err := ConnectionsReferencingPort("tor-1", "eth3")
	assert.NilErr(t, err)
	assert.Equal(t, 1, len(refs))
	assert.Equal(t, "uuid-conn-1", refs[0].UUID)

	refs, err = ConnectionsReferencingPort("tor-1", "eth4")
	assert.NilErr(t, err)
	assert.Equal(t, 0, len(refs))
}

func TestAgentAlive(t *testing.T) {
	setupStore(t)

	ag := NewAgent("host1")
	ag.StartedAt = 1
	ag.HeartbeatAt = time.Now().UnixNano()
	assert.NilErr(t, ag.Save())

	got, err := LoadAgent("host1")
	assert.NilErr(t, err)
	assert.True(t, got.Alive(time.Second*90))

	got.HeartbeatAt = 0
	assert.False(t, got.Alive(time.Second*90))
}

func TestMetaKeyScheme(t *testing.T) {
	ps := NewPhysicalSwitch("ovsdb1", "u1")
	assert.True(t, len(ps.MetaKey()) > 0)
	assert.Equal(t, meta.PhysicalSwitchKey("ovsdb1", "u1"), ps.MetaKey())

	p := &PendingUcastMacRemote{OvsdbID: "ovsdb1", Seq: 7}
	assert.Equal(t, meta.PendingKey("ovsdb1", 7), p.MetaKey())
}

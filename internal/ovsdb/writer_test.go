package ovsdb

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/projecteru2/yavtep/internal/models"
	"github.com/projecteru2/yavtep/pkg/jsonrpc"
	"github.com/projecteru2/yavtep/pkg/store"
	storemocks "github.com/projecteru2/yavtep/pkg/store/mocks"
	"github.com/projecteru2/yavtep/pkg/terrors"
	"github.com/projecteru2/yavtep/pkg/test/assert"
)

func newTestWriter(t *testing.T) (*Writer, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	sess := jsonrpc.NewSession("ovsdb1", server, jsonrpc.WithTimeouts(time.Second*5, time.Second*2))
	sess.Start(context.Background())
	t.Cleanup(func() {
		sess.Close()
		client.Close()
	})
	return NewWriter(sess), client
}

// respondOK answers the next transact with one empty result per op and
// hands back the raw params for inspection.
func respondOK(t *testing.T, client net.Conn, out chan<- []json.RawMessage) {
	t.Helper()
	go func() {
		req, err := jsonrpc.NewDecoder(client).DecodeMessage()
		if err != nil {
			return
		}

		var params []json.RawMessage
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return
		}

		results := make([]map[string]any, len(params)-1)
		for i := range results {
			results[i] = map[string]any{}
		}
		resp, _ := json.Marshal(map[string]any{
			"result": results,
			"error":  nil,
			"id":     req.IDKey(),
		})
		client.Write(resp) //nolint:errcheck

		out <- params
	}()
}

func opAt(t *testing.T, params []json.RawMessage, i int) map[string]any {
	t.Helper()
	var op map[string]any
	assert.NilErr(t, json.Unmarshal(params[i+1], &op))
	return op
}

func TestInsertUcastMacRemoteComposesPrelude(t *testing.T) {
	store.SetStore(storemocks.NewFakeStore())
	w, client := newTestWriter(t)

	captured := make(chan []json.RawMessage, 1)
	respondOK(t, client, captured)

	ls := models.NewLogicalSwitch("ovsdb1", "")
	ls.Name = "net1"
	ls.TunnelKey = 777
	loc := models.NewPhysicalLocator("ovsdb1", "")
	loc.DstIP = "9.0.0.2"

	assert.NilErr(t, w.InsertUcastMacRemote(context.Background(), ls, loc, "aa:bb:cc:dd:ee:ff", "192.168.0.5"))

	params := <-captured

	var db string
	assert.NilErr(t, json.Unmarshal(params[0], &db))
	assert.Equal(t, "hardware_vtep", db)

	// ls insert, locator insert, mac insert, commit
	assert.Equal(t, 5, len(params))

	lsOp := opAt(t, params, 0)
	assert.Equal(t, "insert", lsOp["op"])
	assert.Equal(t, "Logical_Switch", lsOp["table"])
	lsNamed := lsOp["uuid-name"].(string)
	assert.True(t, len(lsNamed) == 33 && lsNamed[0] == 'a')

	locOp := opAt(t, params, 1)
	assert.Equal(t, "Physical_Locator", locOp["table"])
	locRow := locOp["row"].(map[string]any)
	assert.Equal(t, "vxlan_over_ipv4", locRow["encapsulation_type"])

	macOp := opAt(t, params, 2)
	assert.Equal(t, "Ucast_Macs_Remote", macOp["table"])
	macRow := macOp["row"].(map[string]any)
	lsRef := macRow["logical_switch"].([]any)
	assert.Equal(t, "named-uuid", lsRef[0])
	assert.Equal(t, lsNamed, lsRef[1])

	commit := opAt(t, params, 3)
	assert.Equal(t, "commit", commit["op"])
	assert.Equal(t, true, commit["durable"])
}

func TestInsertUcastMacRemoteSkipsKnownRows(t *testing.T) {
	store.SetStore(storemocks.NewFakeStore())
	w, client := newTestWriter(t)

	captured := make(chan []json.RawMessage, 1)
	respondOK(t, client, captured)

	ls := models.NewLogicalSwitch("ovsdb1", "uuid-ls1")
	loc := models.NewPhysicalLocator("ovsdb1", "uuid-loc1")

	assert.NilErr(t, w.InsertUcastMacRemote(context.Background(), ls, loc, "aa:bb:cc:dd:ee:ff", ""))

	params := <-captured
	// mac insert + commit only
	assert.Equal(t, 3, len(params))

	macRow := opAt(t, params, 0)["row"].(map[string]any)
	lsRef := macRow["logical_switch"].([]any)
	assert.Equal(t, "uuid", lsRef[0])
	assert.Equal(t, "uuid-ls1", lsRef[1])
}

func TestDeleteUcastMacsRemoteOnePerMac(t *testing.T) {
	store.SetStore(storemocks.NewFakeStore())
	w, client := newTestWriter(t)

	captured := make(chan []json.RawMessage, 1)
	respondOK(t, client, captured)

	macs := []string{"aa:00:00:00:00:01", "aa:00:00:00:00:02"}
	assert.NilErr(t, w.DeleteUcastMacsRemote(context.Background(), "uuid-ls1", macs))

	params := <-captured
	assert.Equal(t, 4, len(params))
	for i := 0; i < 2; i++ {
		op := opAt(t, params, i)
		assert.Equal(t, "delete", op["op"])
		assert.Equal(t, "Ucast_Macs_Remote", op["table"])
	}
}

func TestUpdateConnectionRejectsDuplicateSegmentation(t *testing.T) {
	store.SetStore(storemocks.NewFakeStore())

	port := models.NewPhysicalPort("ovsdb1", "uuid-p1")
	port.Name = "eth3"
	assert.NilErr(t, port.Save())
	assert.NilErr(t, models.NewVlanBinding("ovsdb1", "uuid-p1", 100, "uuid-ls1").Save())

	// no responder on the peer: a wire write would hang, so an
	// immediate typed rejection proves nothing was sent
	w, _ := newTestWriter(t)

	ls := models.NewLogicalSwitch("ovsdb1", "uuid-ls2")
	err := w.UpdateConnectionToGateway(context.Background(), ls, nil, []string{"uuid-p1"}, 100, OpConnectionCreate)
	assert.Err(t, err)
	assert.True(t, terrors.IsDuplicateSegmentationErr(err))
}

func TestUpdateConnectionRejectsInvalidOp(t *testing.T) {
	store.SetStore(storemocks.NewFakeStore())
	w, _ := newTestWriter(t)

	ls := models.NewLogicalSwitch("ovsdb1", "uuid-ls1")
	err := w.UpdateConnectionToGateway(context.Background(), ls, nil, nil, 100, "UPSERT")
	assert.Err(t, err)
	assert.True(t, errors.Is(err, terrors.ErrInvalidOpLabel))
}

func TestUpdateConnectionRejectsFaultedPort(t *testing.T) {
	store.SetStore(storemocks.NewFakeStore())

	port := models.NewPhysicalPort("ovsdb1", "uuid-p1")
	port.Name = "eth3"
	port.FaultStatus = "unsupported_vlan"
	assert.NilErr(t, port.Save())

	w, _ := newTestWriter(t)

	ls := models.NewLogicalSwitch("ovsdb1", "uuid-ls1")
	err := w.UpdateConnectionToGateway(context.Background(), ls, nil, []string{"uuid-p1"}, 100, OpConnectionCreate)
	assert.Err(t, err)
	assert.True(t, errors.Is(err, terrors.ErrSwitchInFaultStatus))
}

func TestUpdateConnectionDeleteMutatesBindings(t *testing.T) {
	store.SetStore(storemocks.NewFakeStore())
	w, client := newTestWriter(t)

	captured := make(chan []json.RawMessage, 1)
	respondOK(t, client, captured)

	ls := models.NewLogicalSwitch("ovsdb1", "uuid-ls1")
	assert.NilErr(t, w.UpdateConnectionToGateway(context.Background(), ls, nil, []string{"uuid-p1"}, 100, OpConnectionDelete))

	params := <-captured
	assert.Equal(t, 3, len(params))

	mutate := opAt(t, params, 0)
	assert.Equal(t, "mutate", mutate["op"])
	assert.Equal(t, "Physical_Port", mutate["table"])

	mutation := mutate["mutations"].([]any)[0].([]any)
	assert.Equal(t, "vlan_bindings", mutation[0])
	assert.Equal(t, "delete", mutation[1])
}

func TestTransactSurfacesFirstOpError(t *testing.T) {
	store.SetStore(storemocks.NewFakeStore())
	w, client := newTestWriter(t)

	go func() {
		req, err := jsonrpc.NewDecoder(client).DecodeMessage()
		if err != nil {
			return
		}
		resp, _ := json.Marshal(map[string]any{
			"result": []map[string]any{
				{},
				{"error": "constraint violation", "details": "tunnel_key 777 in use"},
			},
			"error": nil,
			"id":    req.IDKey(),
		})
		client.Write(resp) //nolint:errcheck
	}()

	err := w.DeleteLogicalSwitch(context.Background(), "uuid-ls1")
	assert.Err(t, err)
	assert.True(t, terrors.IsOVSDBErr(err))
}

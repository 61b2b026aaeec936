package ovsdb

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/projecteru2/yavtep/pkg/jsonrpc"
	"github.com/projecteru2/yavtep/pkg/test/assert"
)

func TestMonitorInitialThenIncremental(t *testing.T) {
	server, client := net.Pipe()
	sess := jsonrpc.NewSession("ovsdb1", server, jsonrpc.WithTimeouts(time.Second*5, time.Second*2))
	mon := NewMonitor(sess)
	sess.Start(context.Background())
	t.Cleanup(func() {
		sess.Close()
		client.Close()
	})

	go func() {
		dec := jsonrpc.NewDecoder(client)
		req, err := dec.DecodeMessage()
		if err != nil {
			return
		}

		// registration covers all eight tables
		var params []json.RawMessage
		if err := json.Unmarshal(req.Params, &params); err != nil || len(params) != 3 {
			return
		}
		var reqs map[string]json.RawMessage
		if err := json.Unmarshal(params[2], &reqs); err != nil || len(reqs) != 8 {
			return
		}

		snapshot := `{"Logical_Switch":{"uuid-ls1":{"new":{"name":"net1","tunnel_key":777}}}}`
		resp, _ := json.Marshal(map[string]any{
			"result": json.RawMessage(snapshot),
			"error":  nil,
			"id":     req.IDKey(),
		})
		client.Write(resp) //nolint:errcheck

		update := `{"method":"update","params":[null,{"Logical_Switch":{"uuid-ls1":{"old":{"name":"net1"}}}}],"id":null}`
		client.Write([]byte(update)) //nolint:errcheck
	}()

	assert.NilErr(t, mon.Run(context.Background()))

	select {
	case ev := <-mon.Events():
		assert.True(t, ev.Initial)
		assert.Equal(t, 1, len(ev.NewLogicalSwitches))
		assert.Equal(t, 777, ev.NewLogicalSwitches[0].TunnelKey)
	case <-time.After(time.Second * 5):
		t.Fatal("no initial event")
	}

	select {
	case ev := <-mon.Events():
		assert.False(t, ev.Initial)
		assert.Equal(t, 1, len(ev.DeletedLogicalSwitches))
		assert.Equal(t, "uuid-ls1", ev.DeletedLogicalSwitches[0].UUID)
	case <-time.After(time.Second * 5):
		t.Fatal("no incremental event")
	}
}

package jsonrpc

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/projecteru2/yavtep/pkg/terrors"
	"github.com/projecteru2/yavtep/pkg/test/assert"
)

func newTestSession(t *testing.T) (*Session, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	sess := NewSession("testdb", server, WithTimeouts(time.Second*5, time.Second*2))
	t.Cleanup(func() {
		sess.Close()
		client.Close()
	})
	return sess, client
}

func TestSessionEchoReply(t *testing.T) {
	sess, client := newTestSession(t)
	sess.Start(context.Background())

	_, err := client.Write([]byte(`{"method":"echo","params":[1,2],"id":"k"}`))
	assert.NilErr(t, err)

	reply, err := NewDecoder(client).DecodeMessage()
	assert.NilErr(t, err)
	assert.Equal(t, `[1,2]`, string(reply.Result))
	assert.Equal(t, `null`, string(reply.Error))
	assert.Equal(t, "k", reply.IDKey())
}

func TestSessionCallCorrelation(t *testing.T) {
	sess, client := newTestSession(t)
	sess.Start(context.Background())

	go func() {
		req, err := NewDecoder(client).DecodeMessage()
		if err != nil {
			return
		}
		resp, _ := json.Marshal(map[string]any{
			"result": []int{7},
			"error":  nil,
			"id":     req.IDKey(),
		})
		client.Write(resp) //nolint:errcheck
	}()

	resp, err := sess.Call(context.Background(), "list_dbs", []any{})
	assert.NilErr(t, err)
	assert.Equal(t, `[7]`, string(resp.Result))
}

func TestSessionCallSurfacesOVSDBError(t *testing.T) {
	sess, client := newTestSession(t)
	sess.Start(context.Background())

	go func() {
		req, err := NewDecoder(client).DecodeMessage()
		if err != nil {
			return
		}
		resp, _ := json.Marshal(map[string]any{
			"result": nil,
			"error":  map[string]string{"error": "constraint violation"},
			"id":     req.IDKey(),
		})
		client.Write(resp) //nolint:errcheck
	}()

	_, err := sess.Call(context.Background(), "transact", []any{"hardware_vtep"})
	assert.Err(t, err)
	assert.True(t, terrors.IsOVSDBErr(err))
}

func TestSessionCloseFailsPendingCall(t *testing.T) {
	sess, client := newTestSession(t)
	sess.Start(context.Background())

	errc := make(chan error, 1)
	go func() {
		_, err := sess.Call(context.Background(), "transact", []any{})
		errc <- err
	}()

	// absorb the outbound request then drop the peer
	_, err := NewDecoder(client).DecodeMessage()
	assert.NilErr(t, err)
	client.Close()

	select {
	case err := <-errc:
		assert.Err(t, err)
		assert.True(t, terrors.IsTransportErr(err))
	case <-time.After(time.Second * 5):
		t.Fatal("pending call never failed")
	}
}

func TestSessionDispatchesRegisteredHandler(t *testing.T) {
	sess, client := newTestSession(t)

	got := make(chan *Message, 1)
	sess.Handle("update", func(_ context.Context, _ *Session, msg *Message) {
		got <- msg
	})
	sess.Start(context.Background())

	_, err := client.Write([]byte(`{"method":"update","params":[null,{"Logical_Switch":{}}],"id":null}`))
	assert.NilErr(t, err)

	select {
	case msg := <-got:
		assert.Equal(t, "update", msg.Method)
	case <-time.After(time.Second * 5):
		t.Fatal("handler never invoked")
	}
}

func TestSendAfterCloseRefused(t *testing.T) {
	sess, _ := newTestSession(t)
	sess.Start(context.Background())
	sess.Close()

	err := sess.Send(map[string]string{"k": "v"})
	assert.Err(t, err)
	assert.True(t, terrors.IsTransportErr(err))
}

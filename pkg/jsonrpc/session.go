package jsonrpc

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/projecteru2/core/log"

	"github.com/projecteru2/yavtep/configs"
	"github.com/projecteru2/yavtep/pkg/terrors"
	"github.com/projecteru2/yavtep/pkg/utils"
)

// Handler services one inbound request method.
type Handler func(ctx context.Context, sess *Session, msg *Message)

// Session drives one bidirectional JSON-RPC stream. A single reader
// goroutine decodes inbound messages, answering echo keepalives in
// place, routing requests to registered handlers and responses to the
// caller waiting on the matching id.
type Session struct {
	ID string

	conn net.Conn
	dec  *Decoder
	enc  *Encoder

	wmu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan *Message

	handlers map[string]Handler

	connected atomic.Bool
	closeOnce sync.Once
	done      chan struct{}

	socketTimeout time.Duration
	callTimeout   time.Duration

	onClose func(*Session)
}

// SessionOption .
type SessionOption func(*Session)

// WithOnClose registers a callback invoked once when the session dies.
func WithOnClose(fn func(*Session)) SessionOption {
	return func(s *Session) { s.onClose = fn }
}

// WithTimeouts overrides the configured socket and call timeouts.
func WithTimeouts(socket, call time.Duration) SessionOption {
	return func(s *Session) {
		s.socketTimeout = socket
		s.callTimeout = call
	}
}

// NewSession wraps an established connection. Register handlers before
// Start; the reader does not lock the handler table.
func NewSession(id string, conn net.Conn, opts ...SessionOption) *Session {
	sess := &Session{
		ID:            id,
		conn:          conn,
		dec:           NewDecoder(conn),
		enc:           NewEncoder(conn),
		pending:       map[string]chan *Message{},
		handlers:      map[string]Handler{},
		done:          make(chan struct{}),
		socketTimeout: configs.Conf.Ovsdb.SocketTimeout.Duration(),
		callTimeout:   configs.Conf.Ovsdb.CallTimeout.Duration(),
	}
	for _, opt := range opts {
		opt(sess)
	}
	return sess
}

// Handle .
func (s *Session) Handle(method string, h Handler) {
	s.handlers[method] = h
}

// Start marks the session connected and spawns the reader.
func (s *Session) Start(ctx context.Context) {
	s.connected.Store(true)
	go s.read(ctx)
}

// Connected .
func (s *Session) Connected() bool {
	return s.connected.Load()
}

// Done is closed when the session dies.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close tears the session down. Safe to call more than once, and from
// any goroutine.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.connected.Store(false)
		s.conn.Close()
		close(s.done)

		s.mu.Lock()
		for id, ch := range s.pending {
			delete(s.pending, id)
			close(ch)
		}
		s.mu.Unlock()

		if s.onClose != nil {
			s.onClose(s)
		}
	})
}

func (s *Session) read(ctx context.Context) {
	logger := log.WithFunc("jsonrpc.read")
	defer s.Close()

	for {
		if s.socketTimeout > 0 {
			_ = s.conn.SetReadDeadline(time.Now().Add(s.socketTimeout))
		}

		msg, err := s.dec.DecodeMessage()
		if err != nil {
			if s.connected.Load() {
				logger.Warnf(ctx, "session %s dropped: %v", s.ID, err)
			}
			return
		}

		switch {
		case msg.IsRequest():
			if msg.Method == "echo" {
				if err := s.replyRaw(msg.ID, msg.Params); err != nil {
					logger.Warnf(ctx, "session %s echo reply failed: %v", s.ID, err)
					return
				}
				continue
			}

			h, ok := s.handlers[msg.Method]
			if !ok {
				logger.Warnf(ctx, "session %s: no handler for method %s", s.ID, msg.Method)
				continue
			}
			h(ctx, s, msg)

		default:
			s.mu.Lock()
			ch, ok := s.pending[msg.IDKey()]
			if ok {
				delete(s.pending, msg.IDKey())
			}
			s.mu.Unlock()

			if !ok {
				logger.Debugf(ctx, "session %s: uncorrelated response id %s", s.ID, msg.IDKey())
				continue
			}
			ch <- msg
		}
	}
}

// Send serializes and writes one message. A write failure kills the
// session.
func (s *Session) Send(v any) error {
	if !s.connected.Load() {
		return errors.Wrapf(terrors.ErrSessionClosed, "session %s", s.ID)
	}

	s.wmu.Lock()
	defer s.wmu.Unlock()

	if err := s.enc.Encode(v); err != nil {
		s.Close()
		return errors.Wrapf(terrors.ErrSessionClosed, "session %s: %v", s.ID, err)
	}

	return nil
}

// Call sends a request and waits for the correlated response, bounded
// by the call timeout. A response carrying a non-null error field comes
// back as a typed OVSDB error alongside the raw message.
func (s *Session) Call(ctx context.Context, method string, params any) (*Message, error) {
	id := utils.RandHexID()
	ch := make(chan *Message, 1)

	s.mu.Lock()
	s.pending[id] = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
	}()

	if err := s.Send(request{Method: method, Params: params, ID: id}); err != nil {
		return nil, err
	}

	timer := time.NewTimer(s.callTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, errors.Wrapf(terrors.ErrCallTimeout, "%s on session %s: %v", method, s.ID, ctx.Err())
	case <-timer.C:
		return nil, errors.Wrapf(terrors.ErrCallTimeout, "%s on session %s", method, s.ID)
	case resp, ok := <-ch:
		if !ok {
			return nil, errors.Wrapf(terrors.ErrOVSDBDisconnected, "session %s", s.ID)
		}
		if resp.HasError() {
			return resp, errors.Wrapf(terrors.ErrOVSDBError, "%s: %s", method, string(resp.Error))
		}
		return resp, nil
	}
}

// Cast sends a request without expecting a reply.
func (s *Session) Cast(method string, params any) error {
	return s.Send(struct {
		Method string `json:"method"`
		Params any    `json:"params"`
	}{Method: method, Params: params})
}

// Reply answers an inbound request.
func (s *Session) Reply(id json.RawMessage, result any) error {
	buf, err := json.Marshal(result)
	if err != nil {
		return errors.Wrap(err, "encode result")
	}
	return s.replyRaw(id, buf)
}

// ReplyError answers an inbound request with an error payload.
func (s *Session) ReplyError(id json.RawMessage, msg string) error {
	buf, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "encode error")
	}
	return s.Send(response{Result: json.RawMessage("null"), Error: buf, ID: id})
}

func (s *Session) replyRaw(id, result json.RawMessage) error {
	if result == nil {
		result = json.RawMessage("null")
	}
	return s.Send(response{Result: result, Error: json.RawMessage("null"), ID: id})
}

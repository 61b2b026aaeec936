package jsonrpc

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"

	"github.com/cockroachdb/errors"

	"github.com/projecteru2/yavtep/pkg/terrors"
)

// Message is one JSON-RPC object on the wire. Requests carry method and
// params; responses carry result and error. The zero Method tells them
// apart.
type Message struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  json.RawMessage `json:"error,omitempty"`
}

// IsRequest .
func (m *Message) IsRequest() bool { return m.Method != "" }

// HasError reports whether the error field is present and non-null.
func (m *Message) HasError() bool {
	return len(m.Error) > 0 && !bytes.Equal(m.Error, []byte("null"))
}

// IDKey renders the id for correlation map lookup.
func (m *Message) IDKey() string {
	var s string
	if err := json.Unmarshal(m.ID, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(m.ID))
}

type request struct {
	Method string `json:"method"`
	Params any    `json:"params"`
	ID     string `json:"id"`
}

// response keeps the error field even when null, which the echo reply
// requires.
type response struct {
	Result json.RawMessage `json:"result"`
	Error  json.RawMessage `json:"error"`
	ID     json.RawMessage `json:"id"`
}

// Decoder splits a byte stream of concatenated JSON objects, with no
// separator between them, into individual objects. It scans brace depth
// outside string literals; each return of depth to zero yields one
// object. Depth below zero breaks the stream for good.
type Decoder struct {
	r        *bufio.Reader
	depth    int
	inString bool
	escaped  bool
	broken   bool
}

// NewDecoder .
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Next reads until one complete JSON object has been consumed and
// returns its raw bytes.
func (d *Decoder) Next() ([]byte, error) {
	if d.broken {
		return nil, errors.Wrap(terrors.ErrFramingBroken, "decoder is broken")
	}

	var obj []byte
	for {
		b, err := d.r.ReadByte()
		if err != nil {
			return nil, errors.Wrap(err, "read stream")
		}

		if d.depth == 0 && len(obj) == 0 {
			switch b {
			case ' ', '\t', '\r', '\n':
				continue
			case '{':
			default:
				d.broken = true
				return nil, errors.Wrapf(terrors.ErrFramingBroken, "unexpected byte %q between objects", b)
			}
		}

		obj = append(obj, b)

		if d.escaped {
			d.escaped = false
			continue
		}

		switch b {
		case '\\':
			if d.inString {
				d.escaped = true
			}
		case '"':
			d.inString = !d.inString
		case '{':
			if !d.inString {
				d.depth++
			}
		case '}':
			if d.inString {
				continue
			}
			d.depth--
			if d.depth < 0 {
				d.broken = true
				return nil, errors.Wrap(terrors.ErrFramingBroken, "close brace below zero depth")
			}
			if d.depth == 0 {
				return obj, nil
			}
		}
	}
}

// DecodeMessage .
func (d *Decoder) DecodeMessage() (*Message, error) {
	raw, err := d.Next()
	if err != nil {
		return nil, err
	}

	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		d.broken = true
		return nil, errors.Wrap(terrors.ErrFramingBroken, err.Error())
	}

	return &msg, nil
}

// Encoder writes JSON objects back to back.
type Encoder struct {
	w io.Writer
}

// NewEncoder .
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode .
func (e *Encoder) Encode(v any) error {
	buf, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "encode message")
	}

	if _, err := e.w.Write(buf); err != nil {
		return errors.Wrap(err, "write message")
	}

	return nil
}

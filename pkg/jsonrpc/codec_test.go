package jsonrpc

import (
	"strings"
	"testing"

	"github.com/projecteru2/yavtep/pkg/terrors"
	"github.com/projecteru2/yavtep/pkg/test/assert"
)

func TestDecoderSplitsConcatenatedObjects(t *testing.T) {
	dec := NewDecoder(strings.NewReader(`{"a":1}{"b":{"c":2}}{"d":[1,2,3]}`))

	obj, err := dec.Next()
	assert.NilErr(t, err)
	assert.Equal(t, `{"a":1}`, string(obj))

	obj, err = dec.Next()
	assert.NilErr(t, err)
	assert.Equal(t, `{"b":{"c":2}}`, string(obj))

	obj, err = dec.Next()
	assert.NilErr(t, err)
	assert.Equal(t, `{"d":[1,2,3]}`, string(obj))
}

func TestDecoderBracesInsideStrings(t *testing.T) {
	dec := NewDecoder(strings.NewReader(`{"a":"}{"}{"b":"\"}"}`))

	obj, err := dec.Next()
	assert.NilErr(t, err)
	assert.Equal(t, `{"a":"}{"}`, string(obj))

	obj, err = dec.Next()
	assert.NilErr(t, err)
	assert.Equal(t, `{"b":"\"}"}`, string(obj))
}

func TestDecoderWhitespaceBetweenObjects(t *testing.T) {
	dec := NewDecoder(strings.NewReader("{\"a\":1}\n  {\"b\":2}"))

	obj, err := dec.Next()
	assert.NilErr(t, err)
	assert.Equal(t, `{"a":1}`, string(obj))

	obj, err = dec.Next()
	assert.NilErr(t, err)
	assert.Equal(t, `{"b":2}`, string(obj))
}

func TestDecoderBrokenFraming(t *testing.T) {
	dec := NewDecoder(strings.NewReader(`}{"a":1}`))

	_, err := dec.Next()
	assert.Err(t, err)
	assert.True(t, terrors.IsFramingErr(err))

	// once broken the decoder stays broken
	_, err = dec.Next()
	assert.Err(t, err)
	assert.True(t, terrors.IsFramingErr(err))
}

func TestDecodeMessageClassification(t *testing.T) {
	dec := NewDecoder(strings.NewReader(
		`{"method":"update","params":[null,{}],"id":null}{"result":{"x":1},"error":null,"id":"abc"}`))

	msg, err := dec.DecodeMessage()
	assert.NilErr(t, err)
	assert.True(t, msg.IsRequest())
	assert.Equal(t, "update", msg.Method)

	msg, err = dec.DecodeMessage()
	assert.NilErr(t, err)
	assert.False(t, msg.IsRequest())
	assert.False(t, msg.HasError())
	assert.Equal(t, "abc", msg.IDKey())
}

func TestMessageHasError(t *testing.T) {
	cases := map[string]bool{
		`{"result":null,"error":null,"id":"a"}`:               false,
		`{"result":null,"error":"timed out","id":"a"}`:        true,
		`{"result":null,"error":{"error":"broken"},"id":"a"}`: true,
	}
	for in, want := range cases {
		dec := NewDecoder(strings.NewReader(in))
		msg, err := dec.DecodeMessage()
		assert.NilErr(t, err)
		assert.Equal(t, want, msg.HasError())
	}
}

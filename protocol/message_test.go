package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMessage(t *testing.T) {
	t.Run("response with numeric id", func(t *testing.T) {
		msg, err := ParseMessage([]byte(`{"id":101,"result":{"result":[]}}`))
		require.NoError(t, err)
		assert.True(t, msg.HasID)
		assert.Equal(t, int64(101), msg.ID)
		assert.JSONEq(t, `{"result":[]}`, string(msg.Result))
		assert.Nil(t, msg.Error)
	})

	t.Run("string id is not a response", func(t *testing.T) {
		msg, err := ParseMessage([]byte(`{"id":"7","method":"Network.loadingFinished","params":{}}`))
		require.NoError(t, err)
		assert.False(t, msg.HasID)
		assert.Equal(t, "Network.loadingFinished", msg.Method)
		assert.True(t, msg.IsNetworkEvent())
	})

	t.Run("error response", func(t *testing.T) {
		msg, err := ParseMessage([]byte(`{"id":5,"error":{"code":-32601,"message":"method not found"}}`))
		require.NoError(t, err)
		require.NotNil(t, msg.Error)
		assert.Equal(t, -32601, msg.Error.Code)
		assert.Contains(t, msg.Error.Error(), "method not found")
	})

	t.Run("malformed frames", func(t *testing.T) {
		for _, frame := range []string{`{"id":1`, `not json`, `[1,2,3]`, `"text"`} {
			_, err := ParseMessage([]byte(frame))
			assert.ErrorIs(t, err, ErrMalformedFrame, frame)
		}
	})
}

func TestRequestEncoding(t *testing.T) {
	data, err := json.Marshal(Request{
		ID:     6,
		Method: MethodRuntimeEvaluate,
		Params: EvaluateParams{Expression: "1+1"},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":6,"method":"Runtime.evaluate","params":{"expression":"1+1","includeCommandLineAPI":false,"awaitPromise":false}}`, string(data))

	data, err = json.Marshal(Request{ID: 1, Method: MethodRuntimeEnable})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1,"method":"Runtime.enable"}`, string(data))
}

func TestRemoteObjectKind(t *testing.T) {
	tests := []struct {
		obj  RemoteObject
		want Kind
	}{
		{RemoteObject{Type: "undefined"}, KindUndefined},
		{RemoteObject{Type: "object", Subtype: "null"}, KindNull},
		{RemoteObject{Type: "boolean"}, KindBoolean},
		{RemoteObject{Type: "number"}, KindNumber},
		{RemoteObject{Type: "string"}, KindString},
		{RemoteObject{Type: "bigint"}, KindBigInt},
		{RemoteObject{Type: "symbol"}, KindSymbol},
		{RemoteObject{Type: "function"}, KindFunction},
		{RemoteObject{Type: "object", Subtype: "array"}, KindArray},
		{RemoteObject{Type: "object", Subtype: "date"}, KindDate},
		{RemoteObject{Type: "object", Subtype: "regexp"}, KindRegExp},
		{RemoteObject{Type: "object", Subtype: "error"}, KindError},
		{RemoteObject{Type: "object", Subtype: "map"}, KindMap},
		{RemoteObject{Type: "object", Subtype: "set"}, KindSet},
		{RemoteObject{Type: "object", Subtype: "typedarray"}, KindTypedArray},
		{RemoteObject{Type: "object", Subtype: "node"}, KindNode},
		{RemoteObject{Type: "object", Subtype: "window"}, KindWindow},
		{RemoteObject{Type: "object", Subtype: "weakmap"}, KindObject},
		{RemoteObject{Type: "object"}, KindObject},
		{RemoteObject{Type: "wasm"}, KindUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.obj.Kind(), "%s/%s", tt.obj.Type, tt.obj.Subtype)
	}
}

func TestRemoteObjectValues(t *testing.T) {
	obj := RemoteObject{Type: "string", Value: json.RawMessage(`"__RN_INSPECTOR_NETWORK__:{}"`)}
	s, ok := obj.StringValue()
	assert.True(t, ok)
	assert.Equal(t, "__RN_INSPECTOR_NETWORK__:{}", s)

	num := RemoteObject{Type: "number", Value: json.RawMessage(`42`)}
	_, ok = num.StringValue()
	assert.False(t, ok)

	v, ok := num.DecodeValue()
	assert.True(t, ok)
	assert.Equal(t, float64(42), v)

	var empty RemoteObject
	_, ok = empty.DecodeValue()
	assert.False(t, ok)

	assert.True(t, (*RemoteObject)(nil).Absent())
	assert.True(t, (&RemoteObject{Type: "undefined"}).Absent())
	assert.False(t, (&RemoteObject{Type: "function"}).Absent())
}

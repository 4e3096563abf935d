package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afzaal-28/rn-inspector/protocol"
)

type fakeFetcher struct {
	mu      sync.Mutex
	objects map[string][]protocol.PropertyDescriptor
	failing map[string]error
	// generate answers ids missing from objects.
	generate func(objectID string) []protocol.PropertyDescriptor
	calls    int
}

func (f *fakeFetcher) GetProperties(_ context.Context, objectID string) ([]protocol.PropertyDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++

	if err, ok := f.failing[objectID]; ok {
		return nil, err
	}

	if props, ok := f.objects[objectID]; ok {
		return props, nil
	}

	if f.generate != nil {
		return f.generate(objectID), nil
	}

	return nil, errors.New("Could not find object with given id")
}

func number(v float64) *protocol.RemoteObject {
	return &protocol.RemoteObject{Type: "number", Value: json.RawMessage(fmt.Sprint(v))}
}

func str(s string) *protocol.RemoteObject {
	data, _ := json.Marshal(s)
	return &protocol.RemoteObject{Type: "string", Value: data}
}

func object(id string) *protocol.RemoteObject {
	return &protocol.RemoteObject{Type: "object", ClassName: "Object", Description: "Object", ObjectID: id}
}

func prop(name string, value *protocol.RemoteObject) protocol.PropertyDescriptor {
	return protocol.PropertyDescriptor{Name: name, Value: value}
}

func TestMaterializerWidthLimit(t *testing.T) {
	props := make([]protocol.PropertyDescriptor, 0, 520)
	for i := 0; i < 520; i++ {
		props = append(props, prop(fmt.Sprintf("k%d", i), number(float64(i))))
	}

	m := NewMaterializer(&fakeFetcher{objects: map[string][]protocol.PropertyDescriptor{"wide": props}})

	out, ok := m.Properties(context.Background(), "wide", 0).(map[string]any)
	require.True(t, ok)

	assert.Len(t, out, 501)
	assert.Equal(t, "[20 more properties]", out["..."])
	assert.Equal(t, float64(499), out["k499"])
	assert.NotContains(t, out, "k500")
}

func TestMaterializerDepthLimit(t *testing.T) {
	fetcher := &fakeFetcher{
		generate: func(objectID string) []protocol.PropertyDescriptor {
			return []protocol.PropertyDescriptor{
				prop("id", str(objectID)),
				prop("next", object(objectID+".next")),
			}
		},
	}
	m := NewMaterializer(fetcher)

	t.Run("nesting stops below the limit", func(t *testing.T) {
		cur, ok := m.Properties(context.Background(), "root", 0).(map[string]any)
		require.True(t, ok)

		for i := 0; i < maxDepth-1; i++ {
			cur, ok = cur["next"].(map[string]any)
			require.True(t, ok, "level %d", i+1)
			require.Contains(t, cur, "id")
		}

		assert.Equal(t, map[string]any{"__type": "Object"}, cur["next"])
	})

	t.Run("direct call past the limit", func(t *testing.T) {
		out := m.Properties(context.Background(), "root", maxDepth+1)
		assert.Equal(t, map[string]any{"__type": "Object", "__depth_limit": "Max depth reached"}, out)
	})
}

func TestMaterializerErrorMarker(t *testing.T) {
	m := NewMaterializer(&fakeFetcher{
		failing: map[string]error{"gone": errors.New("object collected")},
		objects: map[string][]protocol.PropertyDescriptor{"empty": nil},
	})

	assert.Equal(t,
		map[string]any{"__error": "Failed to get properties: object collected"},
		m.Properties(context.Background(), "gone", 0))

	out, ok := m.Properties(context.Background(), "empty", 0).(map[string]any)
	require.True(t, ok)
	assert.Contains(t, out, "__error")
}

func TestMaterializerSkipsUnnamedProperties(t *testing.T) {
	m := NewMaterializer(&fakeFetcher{objects: map[string][]protocol.PropertyDescriptor{
		"obj": {
			prop("", str("anonymous")),
			prop("kept", str("v")),
		},
	}})

	assert.Equal(t, map[string]any{"kept": "v"}, m.Properties(context.Background(), "obj", 0))
}

func TestMaterializerValueKinds(t *testing.T) {
	fetcher := &fakeFetcher{
		objects: map[string][]protocol.PropertyDescriptor{
			"arr": {
				prop("0", str("a")),
				prop("2", number(3)),
				prop("length", number(3)),
			},
			"map": {
				prop("size", number(0)),
			},
		},
	}
	m := NewMaterializer(fetcher)

	props := []protocol.PropertyDescriptor{
		prop("undef", &protocol.RemoteObject{Type: "undefined"}),
		prop("nil", &protocol.RemoteObject{Type: "object", Subtype: "null", Value: json.RawMessage("null")}),
		prop("inf", &protocol.RemoteObject{Type: "number", UnserializableValue: "Infinity"}),
		prop("big", &protocol.RemoteObject{Type: "bigint", UnserializableValue: "12n"}),
		prop("sym", &protocol.RemoteObject{Type: "symbol"}),
		prop("fn", &protocol.RemoteObject{Type: "function", ObjectID: "fn-1"}),
		prop("arr", &protocol.RemoteObject{Type: "object", Subtype: "array", ObjectID: "arr"}),
		prop("date", &protocol.RemoteObject{Type: "object", Subtype: "date", Description: "Tue Nov 14 2023"}),
		prop("re", &protocol.RemoteObject{Type: "object", Subtype: "regexp", Description: "/a+/g"}),
		prop("err", &protocol.RemoteObject{
			Type: "object", Subtype: "error", ClassName: "TypeError", Description: "TypeError: boom",
			Preview: &protocol.ObjectPreview{Properties: []protocol.PropertyPreview{
				{Name: "stack", Type: "string", Value: json.RawMessage(`"at x"`)},
			}},
		}),
		prop("map", &protocol.RemoteObject{Type: "object", Subtype: "map", ObjectID: "map"}),
		prop("set", &protocol.RemoteObject{Type: "object", Subtype: "set", Preview: &protocol.ObjectPreview{
			Properties: []protocol.PropertyPreview{{Name: "size", Type: "number", Value: json.RawMessage(`"2"`)}},
		}}),
		prop("typed", &protocol.RemoteObject{Type: "object", Subtype: "typedarray", ClassName: "Uint8Array", Preview: &protocol.ObjectPreview{
			Properties: []protocol.PropertyPreview{{Name: "length", Type: "number", Value: json.RawMessage(`"4"`)}},
		}}),
		prop("node", &protocol.RemoteObject{Type: "object", Subtype: "node", Description: "div"}),
		prop("weird", &protocol.RemoteObject{Type: "wasm"}),
		{Name: "acc", Get: &protocol.RemoteObject{Type: "function", Description: "get acc()"}, Set: &protocol.RemoteObject{Type: "undefined"}},
		{Name: "noacc", Get: &protocol.RemoteObject{Type: "undefined"}},
		prop("nil", str("duplicate")),
	}
	fetcher.objects["root"] = props

	out, ok := m.Properties(context.Background(), "root", 0).(map[string]any)
	require.True(t, ok)

	assert.NotContains(t, out, "undef")
	assert.NotContains(t, out, "noacc")
	assert.Contains(t, out, "nil")
	assert.Nil(t, out["nil"])
	assert.Equal(t, "Infinity", out["inf"])
	assert.Equal(t, "12n", out["big"])
	assert.Equal(t, "[Symbol]", out["sym"])
	assert.Equal(t, "[Function: anonymous]", out["fn"])
	assert.Equal(t, []any{"a", float64(3)}, out["arr"])
	assert.Equal(t, map[string]any{"__type": "Date", "value": "Tue Nov 14 2023"}, out["date"])
	assert.Equal(t, map[string]any{"__type": "RegExp", "value": "/a+/g"}, out["re"])
	assert.Equal(t, map[string]any{
		"__type":  "Error",
		"name":    "TypeError",
		"message": "TypeError: boom",
		"stack":   "at x",
	}, out["err"])
	assert.Equal(t, map[string]any{"__type": "Map", "entries": map[string]any{"size": float64(0)}}, out["map"])
	assert.Equal(t, map[string]any{"__type": "Set", "size": "2"}, out["set"])
	assert.Equal(t, map[string]any{"__type": "Uint8Array", "length": "4"}, out["typed"])
	assert.Equal(t, map[string]any{"__type": "node", "description": "div"}, out["node"])
	assert.Equal(t, "[Unknown]", out["weird"])
	assert.Equal(t, map[string]any{"__type": "Accessor", "get": "[Getter: get acc()]"}, out["acc"])
}

func TestMaterializerArgument(t *testing.T) {
	m := NewMaterializer(&fakeFetcher{
		objects: map[string][]protocol.PropertyDescriptor{
			"user": {prop("name", str("ada"))},
		},
	})

	t.Run("object handle is expanded", func(t *testing.T) {
		assert.Equal(t, map[string]any{"name": "ada"}, m.Argument(context.Background(), object("user")))
	})

	t.Run("inline json string is parsed", func(t *testing.T) {
		assert.Equal(t, map[string]any{"a": float64(1)}, m.Argument(context.Background(), str(`{"a":1}`)))
	})

	t.Run("missing argument", func(t *testing.T) {
		assert.Nil(t, m.Argument(context.Background(), nil))
	})
}

package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/afzaal-28/rn-inspector/normalize"
	"github.com/afzaal-28/rn-inspector/protocol"
)

const (
	maxDepth             = 20
	maxProperties        = 500
	getPropertiesTimeout = 3 * time.Second

	// maxPropertyCallsInFlight bounds concurrent property fetches per bridge.
	maxPropertyCallsInFlight = 16
)

// PropertyFetcher lists the own properties of a remote object.
type PropertyFetcher interface {
	GetProperties(ctx context.Context, objectID string) ([]protocol.PropertyDescriptor, error)
}

// Materializer expands remote object handles into plain values by walking
// their properties, bounded in depth and width.
type Materializer struct {
	fetcher  PropertyFetcher
	timeout  time.Duration
	inFlight chan struct{}
}

func NewMaterializer(fetcher PropertyFetcher) *Materializer {
	return &Materializer{
		fetcher:  fetcher,
		timeout:  getPropertiesTimeout,
		inFlight: make(chan struct{}, maxPropertyCallsInFlight),
	}
}

// Argument materializes one console argument.
func (m *Materializer) Argument(ctx context.Context, arg *protocol.RemoteObject) any {
	if arg == nil || arg.ObjectID == "" {
		return normalize.Value(arg)
	}

	if ctx.Err() != nil {
		return normalize.Value(arg)
	}

	v, ok := m.value(ctx, arg, -1)
	if !ok {
		return nil
	}

	return v
}

// Properties expands the object behind objectID. depth counts the levels
// already descended.
func (m *Materializer) Properties(ctx context.Context, objectID string, depth int) any {
	if depth > maxDepth {
		return map[string]any{"__type": "Object", "__depth_limit": "Max depth reached"}
	}

	props, err := m.fetch(ctx, objectID)
	if err != nil {
		return map[string]any{"__error": "Failed to get properties: " + err.Error()}
	}

	out := make(map[string]any, min(len(props), maxProperties)+1)
	seen := make(map[string]struct{}, len(props))

	for i := 0; i < len(props) && i < maxProperties; i++ {
		prop := &props[i]
		if prop.Name == "" {
			continue
		}

		if _, dup := seen[prop.Name]; dup {
			continue
		}

		seen[prop.Name] = struct{}{}

		if v, ok := m.property(ctx, prop, depth); ok {
			out[prop.Name] = v
		}
	}

	if len(props) > maxProperties {
		out["..."] = fmt.Sprintf("[%d more properties]", len(props)-maxProperties)
	}

	return out
}

func (m *Materializer) fetch(ctx context.Context, objectID string) ([]protocol.PropertyDescriptor, error) {
	select {
	case m.inFlight <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-m.inFlight }()

	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	props, err := m.fetcher.GetProperties(callCtx, objectID)
	if err != nil {
		return nil, err
	}

	if props == nil {
		return nil, fmt.Errorf("no property list returned")
	}

	return props, nil
}

func (m *Materializer) property(ctx context.Context, prop *protocol.PropertyDescriptor, depth int) (v any, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			v, ok = fmt.Sprintf("[Error: %v]", r), true
		}
	}()

	if prop.Value != nil {
		return m.value(ctx, prop.Value, depth)
	}

	if prop.Get.Absent() && prop.Set.Absent() {
		return nil, false
	}

	accessor := map[string]any{"__type": "Accessor"}
	if !prop.Get.Absent() {
		accessor["get"] = "[Getter: " + orDefault(prop.Get.Description, "anonymous") + "]"
	}

	if !prop.Set.Absent() {
		accessor["set"] = "[Setter: " + orDefault(prop.Set.Description, "anonymous") + "]"
	}

	return accessor, true
}

// value renders one remote value found inside an object at depth. ok is
// false for undefined, which has no JSON form.
func (m *Materializer) value(ctx context.Context, obj *protocol.RemoteObject, depth int) (any, bool) {
	canDescend := obj.ObjectID != "" && depth < maxDepth-1

	switch obj.Kind() {
	case protocol.KindUndefined:
		return nil, false
	case protocol.KindNull:
		return nil, true
	case protocol.KindBoolean, protocol.KindNumber, protocol.KindString:
		if v, ok := obj.DecodeValue(); ok {
			return v, true
		}

		if obj.UnserializableValue != "" {
			return obj.UnserializableValue, true
		}

		return nil, false
	case protocol.KindBigInt:
		if obj.UnserializableValue != "" {
			return obj.UnserializableValue, true
		}

		if v, ok := obj.DecodeValue(); ok {
			return normalize.Stringify(v), true
		}

		return obj.Description, true
	case protocol.KindSymbol:
		return orDefault(obj.Description, "[Symbol]"), true
	case protocol.KindFunction:
		return "[Function: " + orDefault(obj.Description, "anonymous") + "]", true
	case protocol.KindArray:
		if canDescend {
			return m.array(ctx, obj.ObjectID, depth+1), true
		}

		return previewValues(obj.Preview), true
	case protocol.KindDate:
		return map[string]any{"__type": "Date", "value": obj.Description}, true
	case protocol.KindRegExp:
		return map[string]any{"__type": "RegExp", "value": obj.Description}, true
	case protocol.KindError:
		out := map[string]any{
			"__type":  "Error",
			"name":    orDefault(obj.ClassName, "Error"),
			"message": obj.Description,
		}
		if stack, ok := previewProperty(obj.Preview, "stack"); ok {
			out["stack"] = stack
		}

		return out, true
	case protocol.KindMap:
		if canDescend {
			return map[string]any{"__type": "Map", "entries": m.Properties(ctx, obj.ObjectID, depth+1)}, true
		}

		return map[string]any{"__type": "Map", "size": previewPropertyOr(obj.Preview, "size", 0)}, true
	case protocol.KindSet:
		if canDescend {
			return map[string]any{"__type": "Set", "values": m.Properties(ctx, obj.ObjectID, depth+1)}, true
		}

		return map[string]any{"__type": "Set", "size": previewPropertyOr(obj.Preview, "size", 0)}, true
	case protocol.KindTypedArray:
		return map[string]any{
			"__type": orDefault(obj.ClassName, "TypedArray"),
			"length": previewPropertyOr(obj.Preview, "length", 0),
		}, true
	case protocol.KindNode, protocol.KindWindow:
		return map[string]any{"__type": obj.Subtype, "description": obj.Description}, true
	case protocol.KindObject:
		if canDescend {
			return m.Properties(ctx, obj.ObjectID, depth+1), true
		}

		if obj.Preview != nil {
			return map[string]any{
				"__type":     orDefault(obj.ClassName, "Object"),
				"__preview":  orDefault(obj.Preview.Description, obj.Description),
				"__overflow": obj.Preview.Overflow,
			}, true
		}

		return map[string]any{"__type": orDefault(obj.ClassName, "Object")}, true
	default:
		if obj.Description != "" {
			return obj.Description, true
		}

		if obj.UnserializableValue != "" {
			return obj.UnserializableValue, true
		}

		return "[Unknown]", true
	}
}

// array rebuilds an array from its index properties and length.
func (m *Materializer) array(ctx context.Context, objectID string, depth int) []any {
	expanded, ok := m.Properties(ctx, objectID, depth).(map[string]any)
	if !ok {
		return []any{}
	}

	length, _ := expanded["length"].(float64)
	out := make([]any, 0, int(length))

	for i := 0; i < int(length); i++ {
		if v, ok := expanded[fmt.Sprint(i)]; ok {
			out = append(out, v)
		}
	}

	return out
}

func previewValues(preview *protocol.ObjectPreview) []any {
	if preview == nil {
		return []any{}
	}

	out := make([]any, 0, len(preview.Properties))
	for i := range preview.Properties {
		v, _ := preview.Properties[i].RawValue()
		out = append(out, v)
	}

	return out
}

func previewProperty(preview *protocol.ObjectPreview, name string) (any, bool) {
	prop, ok := preview.Property(name)
	if !ok {
		return nil, false
	}

	return prop.RawValue()
}

func previewPropertyOr(preview *protocol.ObjectPreview, name string, fallback any) any {
	if v, ok := previewProperty(preview, name); ok && v != nil && v != "" {
		return v
	}

	return fallback
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}

	return s
}

// Package normalize turns remote object descriptors into plain values
// without further round trips to the target.
package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/afzaal-28/rn-inspector/protocol"
)

const (
	arrayOverflowMarker  = "...[truncated]"
	objectOverflowKey    = "..."
	objectOverflowMarker = "[truncated]"
)

// Value returns the best plain rendition of obj: its inline value, its
// preview, its description, or the raw descriptor.
func Value(obj *protocol.RemoteObject) any {
	if obj == nil {
		return nil
	}

	if v, ok := obj.DecodeValue(); ok {
		if s, isString := v.(string); isString {
			return TryParseJSON(s)
		}

		return v
	}

	if preview := obj.Preview; preview != nil && preview.Properties != nil {
		if obj.Subtype == "array" {
			return previewArray(preview)
		}

		return previewObject(preview)
	}

	if obj.Description != "" {
		return obj.Description
	}

	return descriptor(obj)
}

// PreviewProperty renders a single preview property.
func PreviewProperty(prop *protocol.PropertyPreview) any {
	if prop == nil {
		return nil
	}

	if v, ok := prop.RawValue(); ok {
		if s, isString := v.(string); isString {
			return TryParseJSON(s)
		}

		return v
	}

	if prop.Subtype == "array" && prop.Description != "" {
		return prop.Description
	}

	if prop.Type != "" {
		return "[" + prop.Type + "]"
	}

	return nil
}

// TryParseJSON returns the decoded document when text is JSON and text itself otherwise.
func TryParseJSON(text string) any {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return text
	}

	return v
}

func previewArray(preview *protocol.ObjectPreview) []any {
	values := make(map[int]any, len(preview.Properties))
	size := 0

	for i := range preview.Properties {
		idx, err := strconv.Atoi(preview.Properties[i].Name)
		if err != nil || idx < 0 {
			continue
		}

		values[idx] = PreviewProperty(&preview.Properties[i])
		if idx+1 > size {
			size = idx + 1
		}
	}

	arr := make([]any, size, size+1)
	for idx, v := range values {
		arr[idx] = v
	}

	if preview.Overflow {
		arr = append(arr, arrayOverflowMarker)
	}

	return arr
}

func previewObject(preview *protocol.ObjectPreview) map[string]any {
	obj := make(map[string]any, len(preview.Properties)+1)

	for i := range preview.Properties {
		obj[preview.Properties[i].Name] = PreviewProperty(&preview.Properties[i])
	}

	if preview.Overflow {
		obj[objectOverflowKey] = objectOverflowMarker
	}

	return obj
}

func descriptor(obj *protocol.RemoteObject) any {
	data, err := json.Marshal(obj)
	if err != nil {
		return fmt.Sprintf("[%s]", obj.Type)
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return string(data)
	}

	return v
}

// Stringify renders v the way console output shows it: strings verbatim,
// everything else as compact JSON.
func Stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return "null"
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	}

	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(v); err != nil {
		return fmt.Sprint(v)
	}

	return strings.TrimSuffix(buf.String(), "\n")
}

// ValuesString joins materialized console values with spaces.
func ValuesString(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = Stringify(v)
	}

	return strings.Join(parts, " ")
}

// ArgsString joins console arguments using only what the descriptors carry.
func ArgsString(args []*protocol.RemoteObject) string {
	parts := make([]string, len(args))

	for i, arg := range args {
		parts[i] = argString(arg)
	}

	return strings.Join(parts, " ")
}

func argString(arg *protocol.RemoteObject) string {
	if arg == nil {
		return "undefined"
	}

	if v, ok := arg.DecodeValue(); ok {
		return Stringify(v)
	}

	if arg.Preview != nil && arg.Preview.Properties != nil {
		fields := make([]string, len(arg.Preview.Properties))

		for i := range arg.Preview.Properties {
			prop := &arg.Preview.Properties[i]

			value := prop.Type
			if raw, ok := prop.RawValue(); ok {
				value = Stringify(raw)
			}

			fields[i] = prop.Name + ": " + value
		}

		return "{ " + strings.Join(fields, ", ") + " }"
	}

	if arg.Description != "" {
		return arg.Description
	}

	return Stringify(descriptor(arg))
}

// ConsoleLevel maps a console call type onto log, info, warn or error.
func ConsoleLevel(kind string) string {
	switch kind {
	case "error":
		return "error"
	case "warning", "warn":
		return "warn"
	case "info":
		return "info"
	default:
		return "log"
	}
}

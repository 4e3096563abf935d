package protocol

import "encoding/json"

// Kind is the closed set of value shapes a RemoteObject can describe.
type Kind int

const (
	KindUnknown Kind = iota
	KindUndefined
	KindNull
	KindBoolean
	KindNumber
	KindString
	KindBigInt
	KindSymbol
	KindFunction
	KindArray
	KindDate
	KindRegExp
	KindError
	KindMap
	KindSet
	KindTypedArray
	KindNode
	KindWindow
	KindObject
)

type RemoteObject struct {
	Type                string          `json:"type"`
	Subtype             string          `json:"subtype,omitempty"`
	ClassName           string          `json:"className,omitempty"`
	Value               json.RawMessage `json:"value,omitempty"`
	UnserializableValue string          `json:"unserializableValue,omitempty"`
	Description         string          `json:"description,omitempty"`
	ObjectID            string          `json:"objectId,omitempty"`
	Preview             *ObjectPreview  `json:"preview,omitempty"`
}

func (o *RemoteObject) Kind() Kind {
	switch o.Type {
	case "undefined":
		return KindUndefined
	case "boolean":
		return KindBoolean
	case "number":
		return KindNumber
	case "string":
		return KindString
	case "bigint":
		return KindBigInt
	case "symbol":
		return KindSymbol
	case "function":
		return KindFunction
	case "object":
		switch o.Subtype {
		case "null":
			return KindNull
		case "array":
			return KindArray
		case "date":
			return KindDate
		case "regexp":
			return KindRegExp
		case "error":
			return KindError
		case "map":
			return KindMap
		case "set":
			return KindSet
		case "typedarray":
			return KindTypedArray
		case "node":
			return KindNode
		case "window":
			return KindWindow
		default:
			return KindObject
		}
	default:
		return KindUnknown
	}
}

func (o *RemoteObject) HasValue() bool {
	return len(o.Value) > 0
}

// DecodeValue unmarshals the inline value. ok is false when no value is
// present or it cannot be decoded.
func (o *RemoteObject) DecodeValue() (any, bool) {
	if !o.HasValue() {
		return nil, false
	}

	var v any
	if err := json.Unmarshal(o.Value, &v); err != nil {
		return nil, false
	}

	return v, true
}

// StringValue returns the inline value when it is a string.
func (o *RemoteObject) StringValue() (string, bool) {
	v, ok := o.DecodeValue()
	if !ok {
		return "", false
	}

	s, ok := v.(string)

	return s, ok
}

// Absent reports whether a descriptor slot (getter or setter) carries no function.
func (o *RemoteObject) Absent() bool {
	return o == nil || o.Type == "undefined"
}

type ObjectPreview struct {
	Type        string            `json:"type"`
	Subtype     string            `json:"subtype,omitempty"`
	Description string            `json:"description,omitempty"`
	Overflow    bool              `json:"overflow"`
	Properties  []PropertyPreview `json:"properties"`
}

// Property returns the preview property with the given name.
func (p *ObjectPreview) Property(name string) (*PropertyPreview, bool) {
	if p == nil {
		return nil, false
	}

	for i := range p.Properties {
		if p.Properties[i].Name == name {
			return &p.Properties[i], true
		}
	}

	return nil, false
}

type PropertyPreview struct {
	Name         string          `json:"name"`
	Type         string          `json:"type"`
	Subtype      string          `json:"subtype,omitempty"`
	Description  string          `json:"description,omitempty"`
	Value        json.RawMessage `json:"value,omitempty"`
	ValuePreview *ObjectPreview  `json:"valuePreview,omitempty"`
}

// RawValue returns the preview value as sent, usually a string.
func (p *PropertyPreview) RawValue() (any, bool) {
	if len(p.Value) == 0 {
		return nil, false
	}

	var v any
	if err := json.Unmarshal(p.Value, &v); err != nil {
		return nil, false
	}

	return v, true
}

type PropertyDescriptor struct {
	Name  string        `json:"name"`
	Value *RemoteObject `json:"value,omitempty"`
	Get   *RemoteObject `json:"get,omitempty"`
	Set   *RemoteObject `json:"set,omitempty"`
}

type GetPropertiesParams struct {
	ObjectID               string `json:"objectId"`
	OwnProperties          bool   `json:"ownProperties"`
	AccessorPropertiesOnly bool   `json:"accessorPropertiesOnly"`
	GeneratePreview        bool   `json:"generatePreview"`
}

type GetPropertiesResult struct {
	Result []PropertyDescriptor `json:"result"`
}

type EvaluateParams struct {
	Expression            string `json:"expression"`
	IncludeCommandLineAPI bool   `json:"includeCommandLineAPI"`
	AwaitPromise          bool   `json:"awaitPromise"`
}

type ConsoleAPICalled struct {
	Type      string            `json:"type"`
	Args      []json.RawMessage `json:"args"`
	Timestamp *float64          `json:"timestamp,omitempty"`
}

type LogEntryAdded struct {
	Entry struct {
		Level     string   `json:"level"`
		Text      string   `json:"text"`
		Source    string   `json:"source,omitempty"`
		Timestamp *float64 `json:"timestamp,omitempty"`
	} `json:"entry"`
}

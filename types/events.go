package types

import "encoding/json"

type EventType string

const (
	EventConsole    EventType = "console"
	EventNetwork    EventType = "network"
	EventStorage    EventType = "storage"
	EventNavigation EventType = "navigation"
	EventInspector  EventType = "inspector"
	EventDeviceInfo EventType = "deviceInfo"
	EventMeta       EventType = "meta"
)

// Event is the envelope written to observers.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

type ConsolePayload struct {
	TS         string            `json:"ts"`
	Level      string            `json:"level"`
	Msg        string            `json:"msg"`
	Origin     string            `json:"origin"`
	DeviceID   string            `json:"deviceId,omitempty"`
	RawArgs    []any             `json:"rawArgs,omitempty"`
	RawCdpArgs []json.RawMessage `json:"rawCdpArgs,omitempty"`
}

type NetworkPayload struct {
	ID              string            `json:"id"`
	Phase           string            `json:"phase"`
	TS              string            `json:"ts"`
	Method          string            `json:"method"`
	URL             string            `json:"url"`
	Status          *int              `json:"status,omitempty"`
	DurationMs      *float64          `json:"durationMs,omitempty"`
	Error           string            `json:"error,omitempty"`
	RequestHeaders  map[string]string `json:"requestHeaders,omitempty"`
	ResponseHeaders map[string]string `json:"responseHeaders,omitempty"`
	RequestBody     any               `json:"requestBody,omitempty"`
	ResponseBody    any               `json:"responseBody,omitempty"`
	DeviceID        string            `json:"deviceId,omitempty"`
	Source          string            `json:"source,omitempty"`
	ResourceType    string            `json:"resourceType,omitempty"`
}

type StoragePayload struct {
	RequestID    string `json:"requestId"`
	AsyncStorage any    `json:"asyncStorage"`
	Redux        any    `json:"redux"`
	Error        string `json:"error,omitempty"`
	DeviceID     string `json:"deviceId,omitempty"`
	TS           string `json:"ts"`
}

type MetaPayload struct {
	Source   string   `json:"source,omitempty"`
	Status   string   `json:"status,omitempty"`
	Level    string   `json:"level,omitempty"`
	Message  string   `json:"message,omitempty"`
	Kind     string   `json:"kind,omitempty"`
	Devices  []Device `json:"devices,omitempty"`
	DeviceID string   `json:"deviceId,omitempty"`
	TS       string   `json:"ts"`
}

// UIPayload carries a component tree snapshot, or why none was taken.
type UIPayload struct {
	RequestID string `json:"requestId"`
	Tree      any    `json:"tree"`
	Error     string `json:"error,omitempty"`
	DeviceID  string `json:"deviceId,omitempty"`
	TS        string `json:"ts"`
}

// ErrorPayload is emitted on the navigation channel when a navigation
// command cannot be delivered.
type ErrorPayload struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId,omitempty"`
	Command   string `json:"command,omitempty"`
	Error     string `json:"error"`
	DeviceID  string `json:"deviceId,omitempty"`
	TS        string `json:"ts"`
}

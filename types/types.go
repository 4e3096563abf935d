package types

import (
	"encoding/json"
	"math"
	"time"
)

const (
	DeviceIDAll      = "all"
	DeviceIDExplicit = "devtools-explicit"

	ExplicitDeviceLabel = "DevTools (explicit URL)"
)

// Target is one debuggable entry returned by a discovery endpoint.
type Target struct {
	ID                   string `json:"id"`
	Title                string `json:"title,omitempty"`
	Description          string `json:"description,omitempty"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

type Device struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Timestamp formats t the way every outbound payload carries time.
func Timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// TimestampMs formats a millisecond unix timestamp.
func TimestampMs(ms float64) string {
	return Timestamp(time.UnixMilli(int64(math.Round(ms))))
}

// StorageMutation is the body of a mutate-storage control command as
// forwarded to the in-target storage helper.
type StorageMutation struct {
	RequestID string          `json:"requestId"`
	Target    string          `json:"target"`
	Op        string          `json:"op"`
	Path      string          `json:"path"`
	Value     json.RawMessage `json:"value,omitempty"`
}

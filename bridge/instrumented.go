package bridge

import (
	"encoding/json"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/afzaal-28/rn-inspector/instrument"
	"github.com/afzaal-28/rn-inspector/types"
)

// handleInstrumented routes a payload reported by one of the in-target
// helpers. Malformed payloads are dropped.
func (b *Bridge) handleInstrumented(sentinel, payload string) {
	if sentinel == instrument.SentinelNetwork {
		b.tracker.HandleInstrumented([]byte(payload))
		return
	}

	if !gjson.Valid(payload) {
		b.logger.Debugf("dropping malformed %v payload", sentinel)
		return
	}

	p := gjson.Parse(payload)
	if !p.IsObject() {
		b.logger.Debugf("dropping non-object %v payload", sentinel)
		return
	}

	switch sentinel {
	case instrument.SentinelStorage:
		b.emit(types.Event{Type: types.EventStorage, Payload: b.storagePayload(p)})
	case instrument.SentinelDeviceInfo:
		b.emitStamped(types.EventDeviceInfo, payload, p)
	case instrument.SentinelNavigation:
		b.emitStamped(types.EventNavigation, payload, p)
	case instrument.SentinelUI:
		b.emitStamped(types.EventInspector, payload, p)
	}
}

func (b *Bridge) storagePayload(p gjson.Result) *types.StoragePayload {
	payload := &types.StoragePayload{
		RequestID:    p.Get("requestId").String(),
		AsyncStorage: rawOrNil(p.Get("asyncStorage")),
		Redux:        rawOrNil(p.Get("redux")),
		Error:        p.Get("error").String(),
		DeviceID:     b.deviceID,
		TS:           p.Get("ts").String(),
	}

	if payload.TS == "" {
		payload.TS = types.Timestamp(b.now())
	}

	return payload
}

// emitStamped forwards payload unchanged apart from the device id and a
// timestamp when the helper did not set one.
func (b *Bridge) emitStamped(eventType types.EventType, payload string, p gjson.Result) {
	stamped, err := sjson.Set(payload, "deviceId", b.deviceID)
	if err != nil {
		b.logger.Debugf("dropping %v payload: %v", eventType, err)
		return
	}

	if !p.Get("ts").Exists() {
		stamped, _ = sjson.Set(stamped, "ts", types.Timestamp(b.now()))
	}

	b.emit(types.Event{Type: eventType, Payload: json.RawMessage(stamped)})
}

func rawOrNil(v gjson.Result) any {
	if !v.Exists() {
		return nil
	}

	return json.RawMessage(v.Raw)
}

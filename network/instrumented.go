package network

import (
	"github.com/tidwall/gjson"

	"github.com/afzaal-28/rn-inspector/metrics"
	"github.com/afzaal-28/rn-inspector/types"
)

// Instrumented entries share the table with protocol entries under their own
// key space so in-target ids never collide with native request ids.
const instrumentedKeyPrefix = "instrumented:"

// HandleInstrumented applies one payload reported by the in-target network
// instrumentation. Payloads without an id, or whose lifecycle entry is not
// live, are dropped.
func (t *Tracker) HandleInstrumented(payload []byte) {
	if !gjson.ValidBytes(payload) {
		t.logger.Debug("dropping malformed instrumented network payload")
		return
	}

	p := gjson.ParseBytes(payload)

	id := p.Get("id").String()
	if id == "" {
		return
	}

	key := instrumentedKeyPrefix + id

	switch Phase(p.Get("phase").String()) {
	case PhaseComplete:
		t.instrumentedComplete(id, p)
	case PhaseStart:
		t.instrumentedStart(key, id, p)
	case PhaseResponse:
		t.instrumentedResponse(key, p)
	case PhaseEnd:
		t.instrumentedFinish(key, p, PhaseEnd)
	case PhaseError:
		t.instrumentedFinish(key, p, PhaseError)
	default:
		return
	}

	metrics.SetTrackedRequests(t.deviceID, len(t.requests))
}

func (t *Tracker) instrumentedComplete(id string, p gjson.Result) {
	entry := &TrackedRequest{
		ID:              id,
		Method:          stringOr(p.Get("method"), "GET"),
		URL:             p.Get("url").String(),
		StartTimeMs:     msOf(t.now()),
		Status:          intOf(p.Get("status")),
		DurationMs:      floatOf(p.Get("durationMs")),
		RequestHeaders:  headerMap(p.Get("requestHeaders")),
		ResponseHeaders: headerMap(p.Get("responseHeaders")),
		RequestBody:     valueOf(p.Get("requestBody")),
		ResponseBody:    truncateTree(valueOf(p.Get("responseBody"))),
		Source:          p.Get("source").String(),
		ResourceType:    instrumentedResourceType(p),
	}

	if errText := p.Get("error"); errText.Type == gjson.String {
		entry.Error = errText.Str
	}

	t.publish(t.instrumentedPayload(entry, PhaseComplete, p))
}

func (t *Tracker) instrumentedStart(key, id string, p gjson.Result) {
	entry, existed := t.requests[key]
	if !existed {
		now := t.now()
		entry = &TrackedRequest{
			ID:          id,
			StartTimeMs: msOf(now),
			startLocal:  now,
		}
		t.requests[key] = entry
	}

	entry.Method = stringOr(p.Get("method"), "GET")
	entry.URL = p.Get("url").String()
	entry.RequestHeaders = headerMap(p.Get("requestHeaders"))
	entry.RequestBody = valueOf(p.Get("requestBody"))
	entry.Source = p.Get("source").String()
	entry.ResourceType = instrumentedResourceType(p)

	if !existed {
		t.publish(t.instrumentedPayload(entry, PhaseStart, p))
	}
}

func (t *Tracker) instrumentedResponse(key string, p gjson.Result) {
	entry, ok := t.requests[key]
	if !ok {
		return
	}

	if status := intOf(p.Get("status")); status != nil {
		entry.Status = status
	}

	t.applyInstrumentedResponse(entry, p)

	if duration := floatOf(p.Get("durationMs")); duration != nil {
		entry.DurationMs = duration
	}

	t.publish(t.instrumentedPayload(entry, PhaseResponse, p))
}

func (t *Tracker) instrumentedFinish(key string, p gjson.Result, phase Phase) {
	entry, ok := t.requests[key]
	if !ok {
		return
	}

	delete(t.requests, key)

	if duration := floatOf(p.Get("durationMs")); duration != nil {
		entry.DurationMs = duration
	}

	if status := intOf(p.Get("status")); status != nil {
		entry.Status = status
	}

	if errText := p.Get("error"); errText.Type == gjson.String {
		entry.Error = errText.Str
	}

	t.applyInstrumentedResponse(entry, p)

	t.publish(t.instrumentedPayload(entry, phase, p))
}

// applyInstrumentedResponse copies response headers and body onto entry. The
// hooks report the body on the end frame only, so absent fields keep what an
// earlier frame set.
func (t *Tracker) applyInstrumentedResponse(entry *TrackedRequest, p gjson.Result) {
	if headers := p.Get("responseHeaders"); headers.Exists() {
		entry.ResponseHeaders = headerMap(headers)
	}

	if body := p.Get("responseBody"); body.Exists() {
		entry.ResponseBody = truncateTree(valueOf(body))
	}
}

// instrumentedPayload prefers the timestamp reported by the instrumentation.
func (t *Tracker) instrumentedPayload(entry *TrackedRequest, phase Phase, p gjson.Result) *types.NetworkPayload {
	payload := t.payload(entry, phase)

	if ts := p.Get("ts"); ts.Type == gjson.String {
		payload.TS = ts.Str
	}

	return payload
}

func instrumentedResourceType(p gjson.Result) ResourceType {
	if rt := p.Get("resourceType"); rt.Type == gjson.String && rt.Str != "" {
		return ResourceType(rt.Str)
	}

	return Classify(p.Get("url").String(), "", "")
}

func stringOr(v gjson.Result, fallback string) string {
	if s := v.String(); s != "" {
		return s
	}

	return fallback
}

func intOf(v gjson.Result) *int {
	if v.Type != gjson.Number {
		return nil
	}

	n := int(v.Int())

	return &n
}

func floatOf(v gjson.Result) *float64 {
	if v.Type != gjson.Number {
		return nil
	}

	f := v.Float()

	return &f
}

func valueOf(v gjson.Result) any {
	if !v.Exists() {
		return nil
	}

	return v.Value()
}

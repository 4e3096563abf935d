package network

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afzaal-28/rn-inspector/protocol"
	"github.com/afzaal-28/rn-inspector/types"
)

type recorder struct {
	mu     sync.Mutex
	events []types.Event
}

func (r *recorder) emit(evt types.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, evt)
}

func (r *recorder) network(t *testing.T) []*types.NetworkPayload {
	t.Helper()

	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*types.NetworkPayload, 0, len(r.events))

	for _, evt := range r.events {
		require.Equal(t, types.EventNetwork, evt.Type)

		payload, ok := evt.Payload.(*types.NetworkPayload)
		require.True(t, ok)

		out = append(out, payload)
	}

	return out
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

type fakeBodies struct {
	bodies map[string]*protocol.ResponseBody
	block  bool
}

func (f *fakeBodies) GetResponseBody(ctx context.Context, requestID string) (*protocol.ResponseBody, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	body, ok := f.bodies[requestID]
	if !ok {
		return nil, errors.New("no resource with given identifier found")
	}

	return body, nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	return logger
}

func newTestTracker(rec *recorder, clock *fakeClock, opts ...TrackerOption) *Tracker {
	opts = append([]TrackerOption{WithClock(clock.Now)}, opts...)
	return NewTracker("device-1", rec.emit, quietLogger(), opts...)
}

func TestTrackerLifecycleDuration(t *testing.T) {
	rec := &recorder{}
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	tracker := newTestTracker(rec, clock)

	tracker.HandleProtocolEvent(protocol.EventRequestWillBeSent, []byte(`{
		"requestId": "1000.1",
		"type": "XHR",
		"request": {"url": "https://api.example/x", "method": "PUT", "headers": {"Accept": "application/json", "X-Count": 3, "X-Obj": {"a": 1}}, "postData": "{\"name\":\"ada\"}"}
	}`))
	assert.Equal(t, 1, tracker.Len())

	clock.Advance(120 * time.Millisecond)
	tracker.HandleProtocolEvent(protocol.EventLoadingFinished, []byte(`{"requestId": "1000.1"}`))
	assert.Equal(t, 0, tracker.Len())

	events := rec.network(t)
	require.Len(t, events, 2)

	start := events[0]
	assert.Equal(t, "start", start.Phase)
	assert.Equal(t, "1000.1", start.ID)
	assert.Equal(t, "PUT", start.Method)
	assert.Equal(t, "https://api.example/x", start.URL)
	assert.Equal(t, "xhr", start.Source)
	assert.Equal(t, "xhr", start.ResourceType)
	assert.Equal(t, "device-1", start.DeviceID)
	require.NotNil(t, start.DurationMs)
	assert.Equal(t, 0.0, *start.DurationMs)
	assert.Equal(t, map[string]string{"Accept": "application/json", "X-Count": "3"}, start.RequestHeaders)
	assert.Equal(t, map[string]any{"name": "ada"}, start.RequestBody)
	assert.Equal(t, "2023-11-14T22:13:20.000Z", start.TS)

	end := events[1]
	assert.Equal(t, "end", end.Phase)
	assert.Equal(t, "PUT", end.Method)
	require.NotNil(t, end.DurationMs)
	assert.InDelta(t, 120.0, *end.DurationMs, 0.001)
}

func TestTrackerProtocolTimestamps(t *testing.T) {
	rec := &recorder{}
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	tracker := newTestTracker(rec, clock)

	tracker.HandleProtocolEvent(protocol.EventRequestWillBeSent, []byte(`{"requestId":"7","timestamp":100.5,"wallTime":1700000100.25,"request":{"url":"https://x.test/a.png"}}`))
	tracker.HandleProtocolEvent(protocol.EventLoadingFinished, []byte(`{"requestId":"7","timestamp":100.75}`))

	events := rec.network(t)
	require.Len(t, events, 2)
	assert.Equal(t, "2023-11-14T22:15:00.250Z", events[0].TS)
	assert.Equal(t, "img", events[0].ResourceType)
	assert.Equal(t, "fetch", events[0].Source)
	assert.InDelta(t, 250.0, *events[1].DurationMs, 0.001)
}

func TestTrackerSingleStartPerRequest(t *testing.T) {
	rec := &recorder{}
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	tracker := newTestTracker(rec, clock)

	for i := 0; i < 3; i++ {
		tracker.HandleProtocolEvent(protocol.EventRequestWillBeSent, []byte(`{"requestId":"r1","request":{"url":"https://x.test/redirect","method":"GET"}}`))
	}

	tracker.HandleProtocolEvent(protocol.EventLoadingFailed, []byte(`{"requestId":"r1","errorText":"net::ERR_FAILED"}`))
	tracker.HandleProtocolEvent(protocol.EventLoadingFailed, []byte(`{"requestId":"r1","errorText":"net::ERR_FAILED"}`))
	tracker.HandleProtocolEvent(protocol.EventLoadingFinished, []byte(`{"requestId":"r1"}`))

	events := rec.network(t)
	require.Len(t, events, 2)
	assert.Equal(t, "start", events[0].Phase)
	assert.Equal(t, "error", events[1].Phase)
	assert.Equal(t, "net::ERR_FAILED", events[1].Error)
	assert.Equal(t, 0, tracker.Len())
}

func TestTrackerResponseReceived(t *testing.T) {
	rec := &recorder{}
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	tracker := newTestTracker(rec, clock)

	tracker.HandleProtocolEvent(protocol.EventResponseReceived, []byte(`{
		"requestId": "late",
		"response": {"url": "https://cdn.test/asset", "status": 200, "headers": {"Content-Type": "text/css; charset=utf-8"}}
	}`))

	events := rec.network(t)
	require.Len(t, events, 1)
	assert.Equal(t, "response", events[0].Phase)
	assert.Equal(t, "GET", events[0].Method)
	assert.Equal(t, "https://cdn.test/asset", events[0].URL)
	require.NotNil(t, events[0].Status)
	assert.Equal(t, 200, *events[0].Status)
	assert.Equal(t, "css", events[0].ResourceType)
	assert.Nil(t, events[0].DurationMs)
	assert.Equal(t, 1, tracker.Len())
}

func TestTrackerProtocolTypeOutranksContentType(t *testing.T) {
	rec := &recorder{}
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	tracker := newTestTracker(rec, clock)

	tracker.HandleProtocolEvent(protocol.EventRequestWillBeSent, []byte(`{"requestId":"p1","type":"XHR","request":{"url":"https://api.example/x","method":"PUT"}}`))
	tracker.HandleProtocolEvent(protocol.EventResponseReceived, []byte(`{"requestId":"p1","response":{"url":"https://api.example/x","status":200,"headers":{"content-type":"application/json"}}}`))
	tracker.HandleProtocolEvent(protocol.EventLoadingFinished, []byte(`{"requestId":"p1"}`))

	events := rec.network(t)
	require.Len(t, events, 3)

	for _, evt := range events {
		assert.Equal(t, "xhr", evt.ResourceType, evt.Phase)
		assert.Equal(t, "PUT", evt.Method, evt.Phase)
	}

	assert.Equal(t, map[string]string{"content-type": "application/json"}, events[1].ResponseHeaders)
}

func TestTrackerUnknownTerminalEventsIgnored(t *testing.T) {
	rec := &recorder{}
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	tracker := newTestTracker(rec, clock)

	tracker.HandleProtocolEvent(protocol.EventLoadingFinished, []byte(`{"requestId":"missing"}`))
	tracker.HandleProtocolEvent(protocol.EventLoadingFailed, []byte(`{"requestId":"missing"}`))
	tracker.HandleProtocolEvent("Network.dataReceived", []byte(`{"requestId":"missing"}`))

	assert.Empty(t, rec.network(t))
}

func TestTrackerResponseBody(t *testing.T) {
	body := base64.StdEncoding.EncodeToString([]byte(`{"ok":true}`))

	rec := &recorder{}
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	fetcher := &fakeBodies{bodies: map[string]*protocol.ResponseBody{
		"b1": {Body: body, Base64Encoded: true},
		"b2": {Body: "plain text"},
	}}
	tracker := newTestTracker(rec, clock, WithBodyFetcher(fetcher))

	for _, id := range []string{"b1", "b2", "b3"} {
		tracker.HandleProtocolEvent(protocol.EventRequestWillBeSent, []byte(`{"requestId":"`+id+`","request":{"url":"https://api.test/`+id+`"}}`))
		tracker.HandleProtocolEvent(protocol.EventLoadingFinished, []byte(`{"requestId":"`+id+`"}`))
	}

	tracker.Wait()

	bodies := map[string]any{}

	for _, evt := range rec.network(t) {
		if evt.Phase == "end" {
			bodies[evt.ID] = evt.ResponseBody
		}
	}

	require.Len(t, bodies, 3)
	assert.Equal(t, map[string]any{"ok": true}, bodies["b1"])
	assert.Equal(t, "plain text", bodies["b2"])
	assert.Nil(t, bodies["b3"])
}

func TestTrackerBodyFetchTimeout(t *testing.T) {
	rec := &recorder{}
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	tracker := newTestTracker(rec, clock, WithBodyFetcher(&fakeBodies{block: true}), WithBodyTimeout(20*time.Millisecond))

	tracker.HandleProtocolEvent(protocol.EventRequestWillBeSent, []byte(`{"requestId":"slow","request":{"url":"https://api.test/slow"}}`))
	tracker.HandleProtocolEvent(protocol.EventLoadingFinished, []byte(`{"requestId":"slow"}`))
	assert.Equal(t, 0, tracker.Len())

	tracker.Wait()

	events := rec.network(t)
	require.Len(t, events, 2)
	assert.Equal(t, "end", events[1].Phase)
	assert.Nil(t, events[1].ResponseBody)
}

func TestTrackerInstrumented(t *testing.T) {
	t.Run("start response end", func(t *testing.T) {
		rec := &recorder{}
		tracker := newTestTracker(rec, &fakeClock{now: time.Unix(1700000000, 0)})

		tracker.HandleInstrumented([]byte(`{"id":"rn-1","phase":"start","method":"POST","url":"https://api.test/login","requestHeaders":{"a":"b"},"requestBody":{"u":"x"},"source":"fetch"}`))
		tracker.HandleInstrumented([]byte(`{"id":"rn-1","phase":"start","method":"POST","url":"https://api.test/login"}`))
		tracker.HandleInstrumented([]byte(`{"id":"rn-1","phase":"response","status":201,"responseHeaders":{"content-type":"application/json"},"responseBody":{"token":"t"},"durationMs":42}`))
		tracker.HandleInstrumented([]byte(`{"id":"rn-1","phase":"end","ts":"2024-01-01T00:00:00.000Z"}`))
		tracker.HandleInstrumented([]byte(`{"id":"rn-1","phase":"end"}`))

		events := rec.network(t)
		require.Len(t, events, 3)
		assert.Equal(t, []string{"start", "response", "end"}, []string{events[0].Phase, events[1].Phase, events[2].Phase})
		assert.Equal(t, "rn-1", events[2].ID)
		assert.Equal(t, 201, *events[2].Status)
		assert.Equal(t, 42.0, *events[2].DurationMs)
		assert.Equal(t, map[string]any{"token": "t"}, events[2].ResponseBody)
		assert.Equal(t, "2024-01-01T00:00:00.000Z", events[2].TS)
		assert.Equal(t, 0, tracker.Len())
	})

	t.Run("fetch hook frames carry the body on end", func(t *testing.T) {
		rec := &recorder{}
		tracker := newTestTracker(rec, &fakeClock{now: time.Unix(1700000000, 0)})

		tracker.HandleInstrumented([]byte(`{"id":"rn-2","phase":"start","method":"GET","url":"https://api.test/me","source":"fetch","requestHeaders":{},"ts":"2024-01-01T00:00:00.000Z"}`))
		tracker.HandleInstrumented([]byte(`{"id":"rn-2","phase":"response","status":200,"responseHeaders":{"content-type":"application/json"},"durationMs":30,"ts":"2024-01-01T00:00:00.030Z"}`))
		tracker.HandleInstrumented([]byte(`{"id":"rn-2","phase":"end","status":200,"durationMs":35,"responseBody":{"token":"t"},"ts":"2024-01-01T00:00:00.035Z"}`))

		events := rec.network(t)
		require.Len(t, events, 3)

		assert.Nil(t, events[1].ResponseBody)
		assert.Equal(t, map[string]string{"content-type": "application/json"}, events[1].ResponseHeaders)

		end := events[2]
		assert.Equal(t, "end", end.Phase)
		assert.Equal(t, map[string]any{"token": "t"}, end.ResponseBody)
		assert.Equal(t, map[string]string{"content-type": "application/json"}, end.ResponseHeaders, "headers from the response frame survive")
		assert.Equal(t, 200, *end.Status)
		assert.Equal(t, 35.0, *end.DurationMs)
		assert.Equal(t, 0, tracker.Len())
	})

	t.Run("xhr hook reports headers and body", func(t *testing.T) {
		rec := &recorder{}
		tracker := newTestTracker(rec, &fakeClock{now: time.Unix(1700000000, 0)})

		tracker.HandleInstrumented([]byte(`{"id":"rn-3","phase":"start","method":"POST","url":"https://api.test/items","source":"xhr","requestHeaders":{"x-a":"1"},"requestBody":{"n":1}}`))
		tracker.HandleInstrumented([]byte(`{"id":"rn-3","phase":"response","status":201,"responseHeaders":{"content-type":"text/plain"},"durationMs":12}`))
		tracker.HandleInstrumented([]byte(`{"id":"rn-3","phase":"end","status":201,"durationMs":12,"responseBody":"created"}`))

		events := rec.network(t)
		require.Len(t, events, 3)
		assert.Equal(t, "created", events[2].ResponseBody)
		assert.Equal(t, map[string]any{"n": 1.0}, events[2].RequestBody)
		assert.Equal(t, "xhr", events[2].Source)
	})

	t.Run("namespaced apart from native ids", func(t *testing.T) {
		rec := &recorder{}
		tracker := newTestTracker(rec, &fakeClock{now: time.Unix(1700000000, 0)})

		tracker.HandleProtocolEvent(protocol.EventRequestWillBeSent, []byte(`{"requestId":"5","request":{"url":"https://native.test"}}`))
		tracker.HandleInstrumented([]byte(`{"id":"5","phase":"start","url":"https://shim.test"}`))
		assert.Equal(t, 2, tracker.Len())

		tracker.HandleInstrumented([]byte(`{"id":"5","phase":"error","error":"Network request failed"}`))
		assert.Equal(t, 1, tracker.Len())

		events := rec.network(t)
		require.Len(t, events, 3)
		assert.Equal(t, "https://shim.test", events[2].URL)
		assert.Equal(t, "Network request failed", events[2].Error)
	})

	t.Run("dropped payloads", func(t *testing.T) {
		rec := &recorder{}
		tracker := newTestTracker(rec, &fakeClock{now: time.Unix(1700000000, 0)})

		tracker.HandleInstrumented([]byte(`{"id":"x","phase":"end"}`))
		tracker.HandleInstrumented([]byte(`{"id":"x","phase":"response","status":200}`))
		tracker.HandleInstrumented([]byte(`{"phase":"start","url":"https://no-id.test"}`))
		tracker.HandleInstrumented([]byte(`{not json`))

		assert.Empty(t, rec.network(t))
		assert.Equal(t, 0, tracker.Len())
	})

	t.Run("complete passes through", func(t *testing.T) {
		rec := &recorder{}
		tracker := newTestTracker(rec, &fakeClock{now: time.Unix(1700000000, 0)})

		tracker.HandleInstrumented([]byte(`{"id":"c1","phase":"complete","url":"https://img.test/a.webp","status":304,"durationMs":12.5}`))

		events := rec.network(t)
		require.Len(t, events, 1)
		assert.Equal(t, "complete", events[0].Phase)
		assert.Equal(t, "GET", events[0].Method)
		assert.Equal(t, "img", events[0].ResourceType)
		assert.Equal(t, 304, *events[0].Status)
		assert.Equal(t, 0, tracker.Len())
	})
}

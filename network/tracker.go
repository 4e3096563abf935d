// Package network correlates request lifecycle events from a target into
// network events for observers.
package network

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/afzaal-28/rn-inspector/metrics"
	"github.com/afzaal-28/rn-inspector/normalize"
	"github.com/afzaal-28/rn-inspector/protocol"
	"github.com/afzaal-28/rn-inspector/types"
)

type Phase string

const (
	PhaseStart    Phase = "start"
	PhaseResponse Phase = "response"
	PhaseEnd      Phase = "end"
	PhaseError    Phase = "error"
	PhaseComplete Phase = "complete"
)

const (
	DefaultBodyTimeout = 1500 * time.Millisecond

	sourceFetch = "fetch"
	sourceXHR   = "xhr"
)

// Emitter receives every event the tracker produces.
type Emitter func(types.Event)

// BodyFetcher retrieves the response body of a finished request.
type BodyFetcher interface {
	GetResponseBody(ctx context.Context, requestID string) (*protocol.ResponseBody, error)
}

// TrackedRequest is the live state of one in-flight request.
type TrackedRequest struct {
	ID              string
	Method          string
	URL             string
	StartTimeMs     float64
	Status          *int
	DurationMs      *float64
	Error           string
	RequestHeaders  map[string]string
	ResponseHeaders map[string]string
	RequestBody     any
	ResponseBody    any
	Source          string
	ResourceType    ResourceType

	startLocal time.Time
	startMono  float64
	encoding   string
}

// Tracker owns the in-flight request table of one device. It is not safe for
// concurrent use; a bridge drives it from a single goroutine.
type Tracker struct {
	deviceID    string
	emit        Emitter
	bodies      BodyFetcher
	bodyTimeout time.Duration
	logger      logrus.FieldLogger
	now         func() time.Time

	requests map[string]*TrackedRequest
	fetches  sync.WaitGroup
}

type TrackerOption func(*Tracker)

func WithBodyFetcher(fetcher BodyFetcher) TrackerOption {
	return func(t *Tracker) {
		t.bodies = fetcher
	}
}

func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		t.now = now
	}
}

func WithBodyTimeout(timeout time.Duration) TrackerOption {
	return func(t *Tracker) {
		t.bodyTimeout = timeout
	}
}

func NewTracker(deviceID string, emit Emitter, logger logrus.FieldLogger, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		deviceID:    deviceID,
		emit:        emit,
		bodyTimeout: DefaultBodyTimeout,
		logger:      logger,
		now:         time.Now,
		requests:    make(map[string]*TrackedRequest),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Len returns the number of live entries.
func (t *Tracker) Len() int {
	return len(t.requests)
}

// Wait blocks until all pending body fetches have broadcast their end events.
func (t *Tracker) Wait() {
	t.fetches.Wait()
}

// HandleProtocolEvent applies one Network domain event.
func (t *Tracker) HandleProtocolEvent(method string, params json.RawMessage) {
	p := gjson.ParseBytes(params)

	switch method {
	case protocol.EventRequestWillBeSent:
		t.requestWillBeSent(p)
	case protocol.EventResponseReceived:
		t.responseReceived(p)
	case protocol.EventLoadingFinished:
		t.finish(p, false)
	case protocol.EventLoadingFailed:
		t.finish(p, true)
	default:
		return
	}

	metrics.SetTrackedRequests(t.deviceID, len(t.requests))
}

func (t *Tracker) requestWillBeSent(p gjson.Result) {
	id := p.Get("requestId").String()
	if id == "" {
		return
	}

	now := t.now()
	request := p.Get("request")

	entry, existed := t.requests[id]
	if !existed {
		entry = &TrackedRequest{ID: id, Method: "GET"}
		t.requests[id] = entry
	}

	if method := request.Get("method").String(); method != "" {
		entry.Method = method
	}

	if url := request.Get("url").String(); url != "" {
		entry.URL = url
	}

	entry.startLocal = now
	entry.StartTimeMs = msOf(now)

	if wallTime := p.Get("wallTime"); wallTime.Type == gjson.Number {
		entry.StartTimeMs = wallTime.Float() * 1000
	}

	entry.startMono = 0
	if ts := p.Get("timestamp"); ts.Type == gjson.Number {
		entry.startMono = ts.Float()
	}

	entry.RequestHeaders = headerMap(request.Get("headers"))

	if postData := request.Get("postData"); postData.Type == gjson.String {
		entry.RequestBody = normalize.TryParseJSON(postData.Str)
	}

	protocolType := p.Get("type").String()
	entry.ResourceType = Classify(entry.URL, "", protocolType)

	entry.Source = sourceFetch
	if strings.EqualFold(protocolType, sourceXHR) {
		entry.Source = sourceXHR
	}

	if !existed {
		zero := 0.0
		payload := t.payload(entry, PhaseStart)
		payload.DurationMs = &zero
		t.publish(payload)
	}
}

func (t *Tracker) responseReceived(p gjson.Result) {
	id := p.Get("requestId").String()
	if id == "" {
		return
	}

	response := p.Get("response")

	entry, ok := t.requests[id]
	if !ok {
		now := t.now()
		entry = &TrackedRequest{
			ID:          id,
			Method:      "GET",
			URL:         response.Get("url").String(),
			StartTimeMs: msOf(now),
			startLocal:  now,
		}
		t.requests[id] = entry
	}

	if status := response.Get("status"); status.Type == gjson.Number {
		code := int(status.Int())
		entry.Status = &code
	}

	entry.ResponseHeaders = headerMap(response.Get("headers"))
	entry.encoding = headerValue(entry.ResponseHeaders, "content-encoding")

	contentType := headerValue(entry.ResponseHeaders, "content-type")
	if contentType == "" {
		contentType = response.Get("mimeType").String()
	}

	if contentType != "" && (entry.ResourceType == "" || entry.ResourceType == ResourceOther) {
		entry.ResourceType = Classify(entry.URL, contentType, "")
	}

	t.publish(t.payload(entry, PhaseResponse))
}

func (t *Tracker) finish(p gjson.Result, failed bool) {
	id := p.Get("requestId").String()

	entry, ok := t.requests[id]
	if !ok {
		return
	}

	delete(t.requests, id)

	duration := t.duration(entry, p.Get("timestamp"))
	entry.DurationMs = &duration

	if failed {
		entry.Error = p.Get("errorText").String()
		t.publish(t.payload(entry, PhaseError))

		return
	}

	if t.bodies == nil {
		t.publish(t.payload(entry, PhaseEnd))
		return
	}

	// entry is no longer reachable from the table, the fetch goroutine owns it.
	t.fetches.Add(1)

	go func() {
		defer t.fetches.Done()

		entry.ResponseBody = t.fetchBody(entry)
		t.publish(t.payload(entry, PhaseEnd))
	}()
}

func (t *Tracker) fetchBody(entry *TrackedRequest) any {
	ctx, cancel := context.WithTimeout(context.Background(), t.bodyTimeout)
	defer cancel()

	body, err := t.bodies.GetResponseBody(ctx, entry.ID)
	if err != nil {
		t.logger.WithFields(logrus.Fields{
			"request": entry.ID,
			"url":     entry.URL,
		}).Debugf("response body unavailable: %v", err)

		return nil
	}

	return DecodeBody(body, entry.encoding)
}

func (t *Tracker) duration(entry *TrackedRequest, endTimestamp gjson.Result) float64 {
	if entry.startMono > 0 && endTimestamp.Type == gjson.Number {
		return (endTimestamp.Float() - entry.startMono) * 1000
	}

	return float64(t.now().Sub(entry.startLocal)) / float64(time.Millisecond)
}

func (t *Tracker) payload(entry *TrackedRequest, phase Phase) *types.NetworkPayload {
	return &types.NetworkPayload{
		ID:              entry.ID,
		Phase:           string(phase),
		TS:              types.TimestampMs(entry.StartTimeMs),
		Method:          entry.Method,
		URL:             entry.URL,
		Status:          entry.Status,
		DurationMs:      entry.DurationMs,
		Error:           entry.Error,
		RequestHeaders:  entry.RequestHeaders,
		ResponseHeaders: entry.ResponseHeaders,
		RequestBody:     entry.RequestBody,
		ResponseBody:    entry.ResponseBody,
		DeviceID:        t.deviceID,
		Source:          entry.Source,
		ResourceType:    string(entry.ResourceType),
	}
}

func (t *Tracker) publish(payload *types.NetworkPayload) {
	if payload.DurationMs != nil && payload.Phase != string(PhaseStart) && payload.Phase != string(PhaseResponse) {
		metrics.ObserveRequest(payload.ResourceType, payload.Phase, *payload.DurationMs)
	}

	t.emit(types.Event{Type: types.EventNetwork, Payload: payload})
}

// headerMap keeps scalar header values as strings and drops anything else.
func headerMap(headers gjson.Result) map[string]string {
	if !headers.IsObject() {
		return nil
	}

	out := make(map[string]string)

	headers.ForEach(func(key, value gjson.Result) bool {
		switch value.Type {
		case gjson.String, gjson.Number, gjson.True, gjson.False:
			out[key.String()] = value.String()
		}

		return true
	})

	return out
}

func headerValue(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}

	for key, v := range headers {
		if strings.EqualFold(key, name) {
			return v
		}
	}

	return ""
}

func msOf(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Millisecond)
}

package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

var ErrMalformedFrame = errors.New("malformed protocol frame")

const (
	MethodRuntimeEnable        = "Runtime.enable"
	MethodRuntimeEvaluate      = "Runtime.evaluate"
	MethodRuntimeGetProperties = "Runtime.getProperties"
	MethodLogEnable            = "Log.enable"
	MethodNetworkEnable        = "Network.enable"
	MethodNetworkGetBody       = "Network.getResponseBody"
	MethodPageEnable           = "Page.enable"
	EventConsoleAPICalled      = "Runtime.consoleAPICalled"
	EventLogEntryAdded         = "Log.entryAdded"
	EventRequestWillBeSent     = "Network.requestWillBeSent"
	EventResponseReceived      = "Network.responseReceived"
	EventLoadingFinished       = "Network.loadingFinished"
	EventLoadingFailed         = "Network.loadingFailed"
	networkDomainPrefix        = "Network."
)

// Request is an outbound call frame.
type Request struct {
	ID     int64  `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

// Error is the error member of a response frame.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

func (e *Error) Error() string {
	if e.Data != "" {
		return fmt.Sprintf("%s (%d): %s", e.Message, e.Code, e.Data)
	}

	return fmt.Sprintf("%s (%d)", e.Message, e.Code)
}

// Message is a decoded inbound frame. Responses carry a numeric id, events
// carry a method name.
type Message struct {
	ID     int64
	HasID  bool
	Method string
	Params json.RawMessage
	Result json.RawMessage
	Error  *Error
}

func (m *Message) IsNetworkEvent() bool {
	return strings.HasPrefix(m.Method, networkDomainPrefix)
}

// ParseMessage decodes an inbound frame. Only ids encoded as JSON numbers
// mark a frame as a response.
func ParseMessage(data []byte) (*Message, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrMalformedFrame
	}

	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, ErrMalformedFrame
	}

	msg := &Message{}

	if id := root.Get("id"); id.Type == gjson.Number {
		msg.ID = id.Int()
		msg.HasID = true
	}

	if method := root.Get("method"); method.Type == gjson.String {
		msg.Method = method.Str
	}

	if params := root.Get("params"); params.Exists() {
		msg.Params = json.RawMessage(params.Raw)
	}

	if result := root.Get("result"); result.Exists() {
		msg.Result = json.RawMessage(result.Raw)
	}

	if errObj := root.Get("error"); errObj.IsObject() {
		msg.Error = &Error{
			Code:    int(errObj.Get("code").Int()),
			Message: errObj.Get("message").String(),
			Data:    errObj.Get("data").String(),
		}
	}

	return msg, nil
}

package inspector

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/afzaal-28/rn-inspector/types"
)

const (
	metroPath        = "/message"
	metaSourceMetro  = "metro"
	metaStatusClosed = "closed"
	metaStatusError  = "error"

	messageMetroClosed = "Metro websocket closed. Is the Metro bundler still running?"
	messageMetroError  = "Metro websocket error. Check Metro bundler status."
)

// MetroForwarder relays the bundler's message socket to observers as
// console events.
type MetroForwarder struct {
	url    string
	emit   func(types.Event)
	logger logrus.FieldLogger
	dialer *websocket.Dialer
	now    func() time.Time
}

func MetroURL(host string, port int) string {
	return fmt.Sprintf("ws://%v%v", net.JoinHostPort(host, strconv.Itoa(port)), metroPath)
}

func NewMetroForwarder(url string, emit func(types.Event), logger logrus.FieldLogger) *MetroForwarder {
	return &MetroForwarder{
		url:    url,
		emit:   emit,
		logger: logger.WithField("component", "metro"),
		dialer: &websocket.Dialer{HandshakeTimeout: dialTimeout},
		now:    time.Now,
	}
}

// Run forwards frames until the socket closes or ctx is done. Connection
// failures are reported as meta events; Run never retries.
func (m *MetroForwarder) Run(ctx context.Context) {
	conn, resp, err := m.dialer.DialContext(ctx, m.url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	if err != nil {
		if ctx.Err() != nil {
			return
		}

		m.logger.Errorf("could not connect to metro at %v: %v", m.url, err)
		m.emit(types.Meta(metaSourceMetro, metaStatusError, "error", messageMetroError, ""))

		return
	}

	m.logger.Infof("connected to metro websocket %v", m.url)

	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) {
				m.logger.Errorf("metro websocket error: %v", err)
				m.emit(types.Meta(metaSourceMetro, metaStatusError, "error", messageMetroError, ""))
			}

			m.logger.Warn("metro websocket closed")
			m.emit(types.Meta(metaSourceMetro, metaStatusClosed, "error", messageMetroClosed, ""))

			return
		}

		m.emit(types.Event{
			Type: types.EventConsole,
			Payload: &types.ConsolePayload{
				TS:     types.Timestamp(m.now()),
				Level:  "info",
				Msg:    string(data),
				Origin: metaSourceMetro,
			},
		})
	}
}

// Package hub fans broadcast events out to observer websockets, one endpoint
// per channel.
package hub

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/afzaal-28/rn-inspector/metrics"
	"github.com/afzaal-28/rn-inspector/types"
)

const (
	writeTimeout = 5 * time.Second
	closeTimeout = time.Second

	// observerQueueSize bounds the frames waiting for one observer; frames
	// beyond it are dropped for that observer only.
	observerQueueSize = 256
)

// Greeter returns the events a newly connected observer receives first.
type Greeter func() []types.Event

// ControlHandler receives every valid frame sent on the control channel.
type ControlHandler func(cmd *types.ControlCommand)

type Hub struct {
	logger   logrus.FieldLogger
	upgrader websocket.Upgrader
	filters  *FilterEngine

	mu        sync.RWMutex
	observers map[Channel]map[*observer]struct{}
	greeter   Greeter
	control   ControlHandler
}

type observer struct {
	conn    *websocket.Conn
	channel Channel
	filter  *Filter
	queue   chan []byte
	done    chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func newObserver(conn *websocket.Conn, ch Channel, filter *Filter) *observer {
	return &observer{
		conn:    conn,
		channel: ch,
		filter:  filter,
		queue:   make(chan []byte, observerQueueSize),
		done:    make(chan struct{}),
	}
}

func New(logger logrus.FieldLogger) *Hub {
	logger = logger.WithField("component", "hub")

	h := &Hub{
		logger:  logger,
		filters: NewFilterEngine(logger),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		observers: make(map[Channel]map[*observer]struct{}, len(Channels)),
	}

	for _, ch := range Channels {
		h.observers[ch] = make(map[*observer]struct{})
	}

	return h
}

func (h *Hub) OnConnect(greeter Greeter) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.greeter = greeter
}

func (h *Hub) OnControl(handler ControlHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.control = handler
}

// Broadcast queues evt for every observer of the channels its type maps to.
// The event is encoded once and Broadcast never waits on a socket: a full
// queue loses the frame for that observer, and an observer whose write fails
// is dropped by its writer.
func (h *Hub) Broadcast(evt types.Event) {
	channels := ChannelsFor(evt.Type)
	if len(channels) == 0 {
		return
	}

	data, err := json.Marshal(evt)
	if err != nil {
		h.logger.WithError(err).Errorf("failed to encode %v event", evt.Type)
		return
	}

	metrics.EventBroadcast(string(evt.Type))

	var (
		decoded     any
		decodedOnce bool
	)

	for _, ch := range channels {
		for _, o := range h.snapshot(ch) {
			if o.filter != nil {
				if !decodedOnce {
					decodedOnce = true
					if err := json.Unmarshal(data, &decoded); err != nil {
						decoded = nil
					}
				}

				if !o.filter.Match(decoded) {
					continue
				}
			}

			if !o.enqueue(data) {
				metrics.ObserverFrameDropped(string(ch))
				h.logger.WithField("channel", ch).Debugf("observer queue full, dropping %v event", evt.Type)
			}
		}
	}
}

// Count returns the number of observers connected to ch.
func (h *Hub) Count(ch Channel) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.observers[ch])
}

// HandleWebSocket serves observer connections for ch. An optional filter
// query parameter holds a jq expression; invalid expressions are rejected
// before the upgrade.
func (h *Hub) HandleWebSocket(ch Channel) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var filter *Filter

		if expression := r.URL.Query().Get("filter"); expression != "" {
			compiled, err := h.filters.Compile(expression)
			if err != nil {
				http.Error(w, fmt.Sprintf("invalid filter: %v", err), http.StatusBadRequest)
				return
			}

			filter = compiled
		}

		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.WithError(err).Warn("observer upgrade failed")
			return
		}

		o := newObserver(conn, ch, filter)

		logger := h.logger.WithFields(logrus.Fields{
			"channel": ch,
			"remote":  conn.RemoteAddr(),
		})

		h.greet(o)
		h.add(o)

		defer h.drop(o)

		go h.writeLoop(o, logger)

		logger.Debug("observer connected")
		h.readLoop(o, logger)
		logger.Debug("observer disconnected")
	}
}

func (h *Hub) greet(o *observer) {
	h.mu.RLock()
	greeter := h.greeter
	h.mu.RUnlock()

	if greeter == nil {
		return
	}

	for _, evt := range greeter() {
		data, err := json.Marshal(evt)
		if err != nil {
			continue
		}

		o.enqueue(data)
	}
}

// writeLoop drains the observer's queue onto its socket until the observer
// is closed or a write fails.
func (h *Hub) writeLoop(o *observer, logger logrus.FieldLogger) {
	for {
		select {
		case <-o.done:
			return
		case data := <-o.queue:
			if err := o.write(data); err != nil {
				logger.Debugf("dropping observer: %v", err)
				h.drop(o)

				return
			}
		}
	}
}

func (h *Hub) readLoop(o *observer, logger logrus.FieldLogger) {
	for {
		_, data, err := o.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debugf("observer read error: %v", err)
			}

			return
		}

		if o.channel != ChannelControl {
			continue
		}

		cmd, err := types.ParseControlCommand(data)
		if err != nil {
			logger.Debugf("dropping control frame: %v", err)
			continue
		}

		h.mu.RLock()
		handler := h.control
		h.mu.RUnlock()

		if handler != nil {
			handler(cmd)
		}
	}
}

func (h *Hub) snapshot(ch Channel) []*observer {
	h.mu.RLock()
	defer h.mu.RUnlock()

	list := make([]*observer, 0, len(h.observers[ch]))
	for o := range h.observers[ch] {
		list = append(list, o)
	}

	return list
}

func (h *Hub) add(o *observer) {
	h.mu.Lock()
	h.observers[o.channel][o] = struct{}{}
	h.mu.Unlock()

	metrics.ObserverConnected(string(o.channel))
}

func (h *Hub) drop(o *observer) {
	h.mu.Lock()
	_, ok := h.observers[o.channel][o]
	delete(h.observers[o.channel], o)
	h.mu.Unlock()

	if ok {
		metrics.ObserverDisconnected(string(o.channel))
	}

	o.close()
}

// Close disconnects every observer.
func (h *Hub) Close() {
	for _, ch := range Channels {
		for _, o := range h.snapshot(ch) {
			h.drop(o)
		}
	}
}

func (o *observer) enqueue(data []byte) bool {
	select {
	case o.queue <- data:
		return true
	default:
		return false
	}
}

func (o *observer) write(data []byte) error {
	o.writeMu.Lock()
	defer o.writeMu.Unlock()

	if err := o.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}

	return o.conn.WriteMessage(websocket.TextMessage, data)
}

func (o *observer) close() {
	o.closeOnce.Do(func() {
		close(o.done)

		o.writeMu.Lock()
		_ = o.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
			time.Now().Add(closeTimeout),
		)
		o.writeMu.Unlock()

		o.conn.Close()
	})
}

// Package bridge maintains one protocol connection per debuggable target and
// turns its frames into observer events.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/afzaal-28/rn-inspector/instrument"
	"github.com/afzaal-28/rn-inspector/metrics"
	"github.com/afzaal-28/rn-inspector/network"
	"github.com/afzaal-28/rn-inspector/protocol"
	"github.com/afzaal-28/rn-inspector/types"
)

const (
	// Handshake ids. Id 5 is left unused.
	handshakeEnableBaseID = 1
	handshakeScriptBaseID = 6

	callIDBase       = 100
	evaluationIDBase = 1000
	bodyIDBase       = 100000
	bodyIDLimit      = 1 << 31

	eventQueueSize = 256
	writeTimeout   = 10 * time.Second

	metaSource = "devtools"

	messageClosed = "DevTools websocket closed. If your app was reloaded or stopped, some network/console data may be missing until it reconnects."
	messageError  = "DevTools websocket error. Check Metro / DevTools status in your React Native app."
)

var (
	ErrBridgeClosed = errors.New("bridge closed")
	ErrCallTimeout  = errors.New("protocol call timed out")
	ErrNotConnected = errors.New(types.ErrTextNotConnected)
)

var handshakeDomains = []string{
	protocol.MethodRuntimeEnable,
	protocol.MethodLogEnable,
	protocol.MethodNetworkEnable,
	protocol.MethodPageEnable,
}

type Options struct {
	DeviceID     string
	URL          string
	InjectExtras bool
	Logger       logrus.FieldLogger
	Emit         func(types.Event)
	Registry     *Registry
	Dialer       *websocket.Dialer
}

type Bridge struct {
	deviceID     string
	url          string
	injectExtras bool
	logger       logrus.FieldLogger
	emit         func(types.Event)
	registry     *Registry
	now          func() time.Time

	conn    *websocket.Conn
	writeMu sync.Mutex

	calls        *pendingTable
	bodies       *pendingTable
	evaluations  *idRange
	materializer *Materializer
	tracker      *network.Tracker
	console      *sequencer

	events     chan *protocol.Message
	eventsDone chan struct{}
	workers    sync.WaitGroup

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// Dial connects to the target at opts.URL, registers the bridge and sends
// the handshake. A bridge already registered for the same device is closed.
func Dial(ctx context.Context, opts Options) (*Bridge, error) {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	if opts.Emit == nil {
		opts.Emit = func(types.Event) {}
	}

	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}

	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	logger := opts.Logger.WithFields(logrus.Fields{"component": "bridge", "device": opts.DeviceID})

	conn, _, err := dialer.DialContext(ctx, opts.URL, nil)
	if err != nil {
		logger.WithError(err).Warn("devtools websocket error")
		opts.Emit(types.Meta(metaSource, "error", "error", messageError, opts.DeviceID))

		return nil, fmt.Errorf("failed to connect to %v: %w", opts.URL, err)
	}

	b := newBridge(conn, opts, logger)

	if previous := b.registry.Add(b); previous != nil {
		logger.Debug("replacing existing bridge")
		previous.Close()
	}

	metrics.BridgeOpened()

	go b.readLoop()
	go b.eventLoop()

	if err := b.handshake(); err != nil {
		b.Close()
		return nil, fmt.Errorf("handshake with %v failed: %w", opts.URL, err)
	}

	logger.Infof("connected to devtools: %v", opts.URL)
	b.emit(types.Meta(metaSource, "open", "info", "", b.deviceID))

	return b, nil
}

func newBridge(conn *websocket.Conn, opts Options, logger logrus.FieldLogger) *Bridge {
	ctx, cancel := context.WithCancel(context.Background())

	b := &Bridge{
		deviceID:     opts.DeviceID,
		url:          opts.URL,
		injectExtras: opts.InjectExtras,
		logger:       logger,
		emit:         opts.Emit,
		registry:     opts.Registry,
		now:          time.Now,
		conn:         conn,
		calls:        newPendingTable(callIDBase, evaluationIDBase),
		bodies:       newPendingTable(bodyIDBase, bodyIDLimit),
		evaluations:  newIDRange(evaluationIDBase, bodyIDBase),
		events:       make(chan *protocol.Message, eventQueueSize),
		eventsDone:   make(chan struct{}),
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
		stopped:      make(chan struct{}),
	}

	b.materializer = NewMaterializer(b)
	b.console = newSequencer(b.done)
	b.tracker = network.NewTracker(b.deviceID, b.emit, logger.WithField("component", "network"), network.WithBodyFetcher(b))

	return b
}

func (b *Bridge) DeviceID() string {
	return b.deviceID
}

func (b *Bridge) URL() string {
	return b.url
}

// Connected reports whether the connection is still open.
func (b *Bridge) Connected() bool {
	select {
	case <-b.done:
		return false
	default:
		return true
	}
}

// Done is closed once the connection has ended.
func (b *Bridge) Done() <-chan struct{} {
	return b.stopped
}

// Close ends the connection and waits until the bridge has shut down.
func (b *Bridge) Close() {
	b.stop()
	<-b.stopped
}

func (b *Bridge) stop() {
	b.closeOnce.Do(func() {
		close(b.done)
		b.cancel()
		b.conn.Close()
	})
}

func (b *Bridge) handshake() error {
	for i, method := range handshakeDomains {
		if err := b.send(&protocol.Request{ID: int64(handshakeEnableBaseID + i), Method: method}); err != nil {
			return err
		}
	}

	id := int64(handshakeScriptBaseID)
	for _, script := range instrument.HandshakeScripts(b.injectExtras) {
		err := b.send(&protocol.Request{
			ID:     id,
			Method: protocol.MethodRuntimeEvaluate,
			Params: &protocol.EvaluateParams{Expression: script.Source},
		})
		if err != nil {
			return fmt.Errorf("failed to inject %v helper: %w", script.Name, err)
		}

		id++
	}

	return nil
}

func (b *Bridge) readLoop() {
	defer b.shutdown()

	for {
		_, data, err := b.conn.ReadMessage()
		if err != nil {
			switch {
			case !b.Connected():
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
				b.logger.Debugf("devtools websocket closed by target: %v", err)
			default:
				b.logger.WithError(err).Warn("devtools websocket error")
				b.emit(types.Meta(metaSource, "error", "error", messageError, b.deviceID))
			}

			return
		}

		msg, err := protocol.ParseMessage(data)
		if err != nil {
			metrics.FrameReceived("malformed")
			b.logger.Debugf("dropping frame: %v", err)

			continue
		}

		if msg.HasID {
			metrics.FrameReceived("response")

			if !b.calls.resolve(msg) {
				b.bodies.resolve(msg)
			}

			continue
		}

		if msg.Method == "" {
			continue
		}

		metrics.FrameReceived("event")

		select {
		case b.events <- msg:
		case <-b.done:
			return
		}
	}
}

func (b *Bridge) eventLoop() {
	defer close(b.eventsDone)

	for {
		select {
		case msg := <-b.events:
			b.dispatch(msg)
		case <-b.done:
			return
		}
	}
}

// shutdown runs once the reader has stopped.
func (b *Bridge) shutdown() {
	b.stop()

	<-b.eventsDone
	b.workers.Wait()
	b.tracker.Wait()

	b.registry.Remove(b)
	metrics.BridgeClosed()
	metrics.SetTrackedRequests(b.deviceID, 0)

	b.logger.Warn("devtools websocket closed")
	b.emit(types.Meta(metaSource, "closed", "warning", messageClosed, b.deviceID))

	close(b.stopped)
}

func (b *Bridge) send(req *protocol.Request) error {
	if !b.Connected() {
		return ErrNotConnected
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	if err := b.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}

	if err := b.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("failed to send %v: %w", req.Method, err)
	}

	return nil
}

// call sends one request through table and waits for its response. Expiry
// and resolution are exclusive: whichever removes the table entry first
// decides the outcome.
func (b *Bridge) call(ctx context.Context, table *pendingTable, method string, params any) (json.RawMessage, error) {
	id, response, err := table.register()
	if err != nil {
		return nil, err
	}

	if err := b.send(&protocol.Request{ID: id, Method: method, Params: params}); err != nil {
		table.cancel(id)
		return nil, err
	}

	var msg *protocol.Message

	select {
	case msg = <-response:
	case <-ctx.Done():
		if table.cancel(id) {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				metrics.CallTimeout(method)
				b.logger.Debugf("%v call %v timed out", method, id)

				return nil, fmt.Errorf("%v: %w", method, ErrCallTimeout)
			}

			return nil, ctx.Err()
		}

		msg = <-response
	case <-b.done:
		table.cancel(id)
		return nil, ErrBridgeClosed
	}

	if msg.Error != nil {
		return nil, msg.Error
	}

	return msg.Result, nil
}

// evaluate sends a fire-and-forget Runtime.evaluate; its response is ignored.
func (b *Bridge) evaluate(expression string) error {
	return b.send(&protocol.Request{
		ID:     b.evaluations.take(),
		Method: protocol.MethodRuntimeEvaluate,
		Params: &protocol.EvaluateParams{Expression: expression},
	})
}

// GetProperties lists the own properties of a remote object.
func (b *Bridge) GetProperties(ctx context.Context, objectID string) ([]protocol.PropertyDescriptor, error) {
	result, err := b.call(ctx, b.calls, protocol.MethodRuntimeGetProperties, &protocol.GetPropertiesParams{
		ObjectID:        objectID,
		OwnProperties:   true,
		GeneratePreview: true,
	})
	if err != nil {
		return nil, err
	}

	if len(result) == 0 {
		return nil, nil
	}

	var props protocol.GetPropertiesResult
	if err := json.Unmarshal(result, &props); err != nil {
		return nil, fmt.Errorf("failed to decode properties: %w", err)
	}

	return props.Result, nil
}

// GetResponseBody fetches the body of a finished native request.
func (b *Bridge) GetResponseBody(ctx context.Context, requestID string) (*protocol.ResponseBody, error) {
	result, err := b.call(ctx, b.bodies, protocol.MethodNetworkGetBody, &protocol.GetResponseBodyParams{RequestID: requestID})
	if err != nil {
		return nil, err
	}

	if len(result) == 0 {
		return nil, nil
	}

	body := &protocol.ResponseBody{}
	if err := json.Unmarshal(result, body); err != nil {
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}

	return body, nil
}

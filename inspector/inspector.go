// Package inspector wires discovery, bridges, the observer hub and the
// control router into one running process.
package inspector

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/afzaal-28/rn-inspector/bridge"
	"github.com/afzaal-28/rn-inspector/control"
	"github.com/afzaal-28/rn-inspector/discovery"
	"github.com/afzaal-28/rn-inspector/hub"
	"github.com/afzaal-28/rn-inspector/types"
)

const (
	dialTimeout     = 5 * time.Second
	metaKindDevices = "devices"

	metaSourceDevtools = "devtools"
	messageNoTargets   = "DevTools auto-discovery found no /json targets (falling back to Metro-only mode). Make sure your React Native app is running with debugging enabled."
)

type Inspector struct {
	config     *Config
	logger     logrus.FieldLogger
	hub        *hub.Hub
	registry   *bridge.Registry
	router     *control.Router
	discoverer *discovery.Discoverer
	metro      *MetroForwarder

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	attachMu  sync.Mutex
	devicesMu sync.RWMutex
	devices   []types.Device

	serversMu    sync.Mutex
	servers      []*http.Server
	channelAddrs map[hub.Channel]string
	healthAddr   string
}

func New(config *Config, logger logrus.FieldLogger) (*Inspector, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	discoverer := discovery.New(config.Host, logger)
	discoverer.Timeout = config.DiscoveryTimeout
	discoverer.ExtraPorts = config.ExtraPorts

	i := &Inspector{
		config:       config,
		logger:       logger.WithField("component", "inspector"),
		hub:          hub.New(logger),
		registry:     bridge.NewRegistry(),
		discoverer:   discoverer,
		channelAddrs: make(map[hub.Channel]string, len(hub.Channels)),
	}

	i.router = control.NewRouter(registryDevices{i.registry}, i.hub.Broadcast, i.Reconnect, logger)
	i.hub.OnControl(i.router.Handle)
	i.hub.OnConnect(i.greet)

	if !config.DisableMetro {
		i.metro = NewMetroForwarder(MetroURL(config.Host, config.MetroPort), i.hub.Broadcast, logger)
	}

	return i, nil
}

// Start binds every listener, then attaches to the discovered targets and
// starts the Metro forwarder in the background.
func (i *Inspector) Start(ctx context.Context) error {
	i.ctx, i.cancel = context.WithCancel(ctx)

	if err := i.startChannelServers(); err != nil {
		return err
	}

	if err := i.startHealthServer(); err != nil {
		return err
	}

	if err := i.startMetricsServer(); err != nil {
		return err
	}

	if i.metro != nil {
		i.wg.Add(1)

		go func() {
			defer i.wg.Done()
			i.metro.Run(i.ctx)
		}()
	}

	i.wg.Add(1)

	go func() {
		defer i.wg.Done()
		i.AttachDevices(i.ctx)
	}()

	return nil
}

// AttachDevices closes every bridge, resolves the device list and dials a
// fresh bridge per device. Concurrent calls are serialized.
func (i *Inspector) AttachDevices(ctx context.Context) {
	i.attachMu.Lock()
	defer i.attachMu.Unlock()

	i.registry.CloseAll()

	devices := i.resolveDevices(ctx)
	i.setDevices(devices)

	if len(devices) == 0 {
		i.logger.Warnf("no debuggable targets found (metro port %v)", i.config.MetroPort)
		i.hub.Broadcast(types.Meta(metaSourceDevtools, metaStatusClosed, "warning", messageNoTargets, ""))

		return
	}

	i.hub.Broadcast(i.devicesEvent(devices))

	for _, device := range devices {
		if ctx.Err() != nil {
			return
		}

		dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
		_, err := bridge.Dial(dialCtx, bridge.Options{
			DeviceID:     device.ID,
			URL:          device.URL,
			InjectExtras: i.config.InjectExtras,
			Logger:       i.logger,
			Emit:         i.hub.Broadcast,
			Registry:     i.registry,
		})

		cancel()

		if err != nil {
			i.logger.WithField("device", device.ID).Warnf("failed attaching to %v: %v", device.URL, err)
			continue
		}

		i.logger.WithField("device", device.ID).Infof("attached to %v", device.Label)
	}
}

// Reconnect rebuilds every bridge in the background.
func (i *Inspector) Reconnect() {
	if i.ctx == nil || i.ctx.Err() != nil {
		return
	}

	i.wg.Add(1)

	go func() {
		defer i.wg.Done()
		i.AttachDevices(i.ctx)
	}()
}

func (i *Inspector) resolveDevices(ctx context.Context) []types.Device {
	if i.config.DevtoolsURL != "" {
		return []types.Device{{
			ID:    types.DeviceIDExplicit,
			Label: types.ExplicitDeviceLabel,
			URL:   i.config.DevtoolsURL,
		}}
	}

	return discovery.Devices(i.discoverer.Discover(ctx, i.config.MetroPort))
}

// Devices is the device list of the last attach.
func (i *Inspector) Devices() []types.Device {
	i.devicesMu.RLock()
	defer i.devicesMu.RUnlock()

	return append([]types.Device(nil), i.devices...)
}

func (i *Inspector) setDevices(devices []types.Device) {
	i.devicesMu.Lock()
	i.devices = devices
	i.devicesMu.Unlock()
}

func (i *Inspector) devicesEvent(devices []types.Device) types.Event {
	return types.Event{
		Type: types.EventMeta,
		Payload: &types.MetaPayload{
			Kind:    metaKindDevices,
			Devices: devices,
			TS:      types.Timestamp(time.Now()),
		},
	}
}

func (i *Inspector) greet() []types.Event {
	devices := i.Devices()
	if len(devices) == 0 {
		return nil
	}

	return []types.Event{i.devicesEvent(devices)}
}

// Shutdown stops the forwarder, disconnects observers and bridges, then
// stops every listener.
func (i *Inspector) Shutdown(ctx context.Context) error {
	if i.cancel != nil {
		i.cancel()
	}

	i.hub.Close()
	i.registry.CloseAll()

	err := i.shutdownServers(ctx)

	done := make(chan struct{})

	go func() {
		i.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	// bridges dialed by an attach that was already in flight
	i.registry.CloseAll()

	return err
}

// registryDevices exposes the bridge registry to the control router.
type registryDevices struct {
	registry *bridge.Registry
}

func (r registryDevices) Get(deviceID string) (control.Device, bool) {
	b, ok := r.registry.Get(deviceID)
	if !ok {
		return nil, false
	}

	return b, true
}

func (r registryDevices) List() []control.Device {
	bridges := r.registry.List()
	devices := make([]control.Device, 0, len(bridges))

	for _, b := range bridges {
		devices = append(devices, b)
	}

	return devices
}

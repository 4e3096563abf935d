// Package control dispatches observer control commands to device bridges.
package control

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/afzaal-28/rn-inspector/types"
)

const (
	CommandReconnect         = "reconnect"
	CommandReconnectDevtools = "reconnect-devtools"
	CommandFetchStorage      = "fetch-storage"
	CommandMutateStorage     = "mutate-storage"
	CommandFetchUI           = "fetch-ui"
	CommandFetchNavigation   = "fetch-navigation"

	CommandNavigate           = "navigate"
	CommandGoBack             = "go-back"
	CommandReplace            = "replace"
	CommandResetNavigation    = "reset-navigation"
	CommandOpenURL            = "open-url"
	CommandDispatchNavigation = "dispatch-navigation"
	CommandGetNavigationState = "get-navigation-state"
)

var navigationCommands = map[string]bool{
	CommandNavigate:           true,
	CommandGoBack:             true,
	CommandReplace:            true,
	CommandResetNavigation:    true,
	CommandOpenURL:            true,
	CommandDispatchNavigation: true,
	CommandGetNavigationState: true,
}

// Device is the command surface of one connected target.
type Device interface {
	DeviceID() string
	RequestStorage(requestID string)
	RequestStorageMutation(mutation types.StorageMutation)
	RequestUI(requestID string)
	RequestNavigation(requestID, command string, payload json.RawMessage)
}

// Devices looks up connected targets. List is ordered by device id.
type Devices interface {
	Get(deviceID string) (Device, bool)
	List() []Device
}

type Router struct {
	devices   Devices
	emit      func(types.Event)
	reconnect func()
	logger    logrus.FieldLogger
	newID     func() string
}

func NewRouter(devices Devices, emit func(types.Event), reconnect func(), logger logrus.FieldLogger) *Router {
	return &Router{
		devices:   devices,
		emit:      emit,
		reconnect: reconnect,
		logger:    logger.WithField("component", "control"),
		newID:     uuid.NewString,
	}
}

// Handle executes one command. Replies are ordinary broadcast events that
// echo the request id.
func (r *Router) Handle(cmd *types.ControlCommand) {
	r.logger.WithFields(logrus.Fields{
		"command": cmd.Command,
		"device":  cmd.DeviceID,
	}).Debug("control command")

	switch {
	case cmd.Command == CommandReconnect || cmd.Command == CommandReconnectDevtools:
		if r.reconnect != nil {
			r.reconnect()
		}
	case cmd.Command == CommandFetchStorage:
		requestID := r.requestID(cmd, "storage")
		r.fanOut(cmd.DeviceID, requestID,
			func(d Device, id string) { d.RequestStorage(id) },
			func(deviceID, message string) types.Event {
				return types.StorageFailure(requestID, deviceID, message)
			})
	case cmd.Command == CommandMutateStorage:
		requestID := r.requestID(cmd, "storage-mutate")
		r.fanOut(cmd.DeviceID, requestID,
			func(d Device, id string) {
				d.RequestStorageMutation(types.StorageMutation{
					RequestID: id,
					Target:    cmd.Target,
					Op:        cmd.Op,
					Path:      cmd.Path,
					Value:     cmd.Value,
				})
			},
			func(deviceID, message string) types.Event {
				return types.StorageFailure(requestID, deviceID, message)
			})
	case cmd.Command == CommandFetchUI:
		requestID := r.requestID(cmd, "ui")
		r.fanOut(cmd.DeviceID, requestID,
			func(d Device, id string) { d.RequestUI(id) },
			func(deviceID, message string) types.Event {
				return types.UIFailure(requestID, deviceID, message)
			})
	case cmd.Command == CommandFetchNavigation:
		requestID := r.requestID(cmd, "navigation")
		r.fanOut(cmd.DeviceID, requestID,
			func(d Device, id string) { d.RequestNavigation(id, CommandGetNavigationState, nil) },
			func(deviceID, message string) types.Event {
				return types.NavigationFailure(requestID, cmd.Command, deviceID, message)
			})
	case navigationCommands[cmd.Command]:
		r.navigate(cmd)
	default:
		r.logger.Debugf("ignoring unknown control command %q", cmd.Command)
	}
}

// fanOut sends a request to the named device, or to every device when none
// or "all" is named. Fanned out requests carry per-device ids.
func (r *Router) fanOut(deviceID, requestID string, send func(Device, string), failure func(deviceID, message string) types.Event) {
	if deviceID != "" && deviceID != types.DeviceIDAll {
		device, ok := r.devices.Get(deviceID)
		if !ok {
			r.emit(failure(deviceID, types.DeviceNotFound(deviceID)))
			return
		}

		send(device, requestID)

		return
	}

	devices := r.devices.List()
	if len(devices) == 0 {
		r.emit(failure(types.DeviceIDAll, types.ErrTextNoDevices))
		return
	}

	for _, device := range devices {
		send(device, requestID+"-"+device.DeviceID())
	}
}

// navigate runs a navigation action on the named device, or on the first
// device when none is named.
func (r *Router) navigate(cmd *types.ControlCommand) {
	requestID := r.requestID(cmd, cmd.Command)

	var device Device

	if cmd.DeviceID != "" && cmd.DeviceID != types.DeviceIDAll {
		found, ok := r.devices.Get(cmd.DeviceID)
		if !ok {
			r.emit(types.NavigationFailure(requestID, cmd.Command, cmd.DeviceID, types.DeviceNotFound(cmd.DeviceID)))
			return
		}

		device = found
	} else {
		devices := r.devices.List()
		if len(devices) == 0 {
			r.emit(types.NavigationFailure(requestID, cmd.Command, types.DeviceIDAll, types.ErrTextNoDevices))
			return
		}

		device = devices[0]
	}

	device.RequestNavigation(requestID, cmd.Command, cmd.Raw)
}

func (r *Router) requestID(cmd *types.ControlCommand, prefix string) string {
	if cmd.RequestID != "" {
		return cmd.RequestID
	}

	return prefix + "-" + r.newID()
}

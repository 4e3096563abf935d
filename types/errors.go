package types

import "time"

const (
	ErrTextNotConnected = "DevTools not connected"
	ErrTextNoDevices    = "No devices connected"

	navigationResultType = "command-result"
)

// DeviceNotFound is the error text for a control command naming an unknown
// device.
func DeviceNotFound(deviceID string) string {
	return "Device " + deviceID + " not found"
}

// StorageFailure builds the storage event reporting that a snapshot or
// mutation could not be requested.
func StorageFailure(requestID, deviceID, message string) Event {
	return Event{
		Type: EventStorage,
		Payload: &StoragePayload{
			RequestID:    requestID,
			AsyncStorage: map[string]string{"error": message},
			Redux:        map[string]string{"error": message},
			DeviceID:     deviceID,
			TS:           Timestamp(time.Now()),
		},
	}
}

func UIFailure(requestID, deviceID, message string) Event {
	return Event{
		Type: EventInspector,
		Payload: &UIPayload{
			RequestID: requestID,
			Error:     message,
			DeviceID:  deviceID,
			TS:        Timestamp(time.Now()),
		},
	}
}

func NavigationFailure(requestID, command, deviceID, message string) Event {
	return Event{
		Type: EventNavigation,
		Payload: &ErrorPayload{
			Type:      navigationResultType,
			RequestID: requestID,
			Command:   command,
			Error:     message,
			DeviceID:  deviceID,
			TS:        Timestamp(time.Now()),
		},
	}
}

// Meta builds a connection status event.
func Meta(source, status, level, message, deviceID string) Event {
	return Event{
		Type: EventMeta,
		Payload: &MetaPayload{
			Source:   source,
			Status:   status,
			Level:    level,
			Message:  message,
			DeviceID: deviceID,
			TS:       Timestamp(time.Now()),
		},
	}
}

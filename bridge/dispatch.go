package bridge

import (
	"github.com/afzaal-28/rn-inspector/metrics"
	"github.com/afzaal-28/rn-inspector/protocol"
)

// dispatch routes one protocol event. It runs on the event goroutine, which
// is the only goroutine touching the tracker.
func (b *Bridge) dispatch(msg *protocol.Message) {
	switch {
	case msg.Method == protocol.EventConsoleAPICalled:
		b.handleConsoleAPICalled(msg.Params)
	case msg.Method == protocol.EventLogEntryAdded:
		b.handleLogEntry(msg.Params)
	case msg.IsNetworkEvent():
		b.tracker.HandleProtocolEvent(msg.Method, msg.Params)
	default:
		metrics.FrameReceived("ignored")
	}
}

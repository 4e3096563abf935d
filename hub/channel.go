package hub

import "github.com/afzaal-28/rn-inspector/types"

// Channel is one observer endpoint. Every channel is served on its own
// listener.
type Channel string

const (
	ChannelConsole    Channel = "console"
	ChannelNetwork    Channel = "network"
	ChannelStorage    Channel = "storage"
	ChannelControl    Channel = "control"
	ChannelNavigation Channel = "navigation"
)

var Channels = []Channel{
	ChannelConsole,
	ChannelNetwork,
	ChannelStorage,
	ChannelControl,
	ChannelNavigation,
}

// ChannelsFor returns the channels an event of type t is written to.
func ChannelsFor(t types.EventType) []Channel {
	switch t {
	case types.EventConsole:
		return []Channel{ChannelConsole}
	case types.EventNetwork:
		return []Channel{ChannelNetwork}
	case types.EventStorage:
		return []Channel{ChannelStorage}
	case types.EventNavigation, types.EventInspector:
		return []Channel{ChannelNavigation}
	case types.EventMeta, types.EventDeviceInfo:
		return Channels
	default:
		return nil
	}
}

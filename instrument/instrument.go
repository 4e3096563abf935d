// Package instrument holds the scripts evaluated inside a target and the
// console sentinels those scripts report through.
package instrument

import (
	_ "embed"
	"encoding/json"
	"strings"
)

const (
	SentinelNetwork    = "__RN_INSPECTOR_NETWORK__"
	SentinelStorage    = "__RN_INSPECTOR_STORAGE__"
	SentinelDeviceInfo = "__RN_INSPECTOR_DEVICE_INFO__"
	SentinelNavigation = "__RN_INSPECTOR_NAVIGATION__"
	SentinelUI         = "__RN_INSPECTOR_UI__"
)

var sentinels = []string{
	SentinelNetwork,
	SentinelStorage,
	SentinelDeviceInfo,
	SentinelNavigation,
	SentinelUI,
}

var (
	//go:embed payloads/storage.js
	storageScript string

	//go:embed payloads/network.js
	networkScript string

	//go:embed payloads/navigation.js
	navigationScript string

	//go:embed payloads/deviceinfo.js
	deviceInfoScript string

	//go:embed payloads/ui.js
	uiScript string
)

// Script is one payload evaluated during the handshake.
type Script struct {
	Name   string
	Source string
}

// HandshakeScripts returns the payloads evaluated after the enable calls, in
// order. The storage and network helpers are always installed.
func HandshakeScripts(extras bool) []Script {
	scripts := []Script{
		{Name: "storage", Source: storageScript},
		{Name: "network", Source: networkScript},
	}

	if extras {
		scripts = append(scripts,
			Script{Name: "navigation", Source: navigationScript},
			Script{Name: "device-info", Source: deviceInfoScript},
			Script{Name: "ui", Source: uiScript},
		)
	}

	return scripts
}

// Match checks a console line for a sentinel prefix. The returned payload is
// the text after the prefix with surrounding space and one leading colon
// removed; it is not validated.
func Match(line string) (sentinel, payload string, ok bool) {
	for _, s := range sentinels {
		if !strings.HasPrefix(line, s) {
			continue
		}

		rest := strings.TrimSpace(line[len(s):])
		if strings.HasPrefix(rest, ":") {
			rest = strings.TrimSpace(rest[1:])
		}

		return s, rest, true
	}

	return "", "", false
}

// jsString renders s as a JavaScript string literal.
func jsString(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}

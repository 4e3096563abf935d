package utils

import (
	"hash/fnv"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

var devicePalette = []color.Attribute{
	color.FgCyan,
	color.FgMagenta,
	color.FgYellow,
	color.FgBlue,
	color.FgGreen,
}

// LogFormatter prefixes entries carrying a device field with the device id,
// coloured consistently per device.
type LogFormatter struct {
	Formatter logrus.TextFormatter
}

func (f *LogFormatter) DisableColors() {
	color.NoColor = true
	f.Formatter.DisableColors = true
}

func (f *LogFormatter) EnableColors() {
	color.NoColor = false
	f.Formatter.DisableColors = false
	f.Formatter.ForceColors = true
}

func (f *LogFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	device, ok := entry.Data["device"].(string)
	if !ok || device == "" {
		return f.Formatter.Format(entry)
	}

	data := make(logrus.Fields, len(entry.Data))
	for key, value := range entry.Data {
		if key != "device" {
			data[key] = value
		}
	}

	prefixed := *entry
	prefixed.Data = data
	prefixed.Message = DeviceColor(device).Sprintf("[%v]", device) + " " + entry.Message

	return f.Formatter.Format(&prefixed)
}

// DeviceColor picks a stable colour for a device id.
func DeviceColor(device string) *color.Color {
	h := fnv.New32a()
	_, _ = h.Write([]byte(device))

	return color.New(devicePalette[h.Sum32()%uint32(len(devicePalette))])
}

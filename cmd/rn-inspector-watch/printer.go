package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/tidwall/gjson"

	"github.com/afzaal-28/rn-inspector/utils"
)

var levelColors = map[string]color.Attribute{
	"error": color.FgRed,
	"warn":  color.FgYellow,
	"info":  color.FgGreen,
	"debug": color.FgHiBlack,
}

type printer struct {
	out     io.Writer
	raw     bool
	noColor bool
}

func newPrinter(out io.Writer, raw, noColor bool) *printer {
	return &printer{out: out, raw: raw, noColor: noColor}
}

func (p *printer) Print(data []byte) {
	if p.raw {
		fmt.Fprintln(p.out, string(data))
		return
	}

	fmt.Fprintln(p.out, p.line(gjson.ParseBytes(data)))
}

func (p *printer) line(evt gjson.Result) string {
	payload := evt.Get("payload")
	eventType := evt.Get("type").String()

	parts := []string{payload.Get("ts").String(), p.paint(color.New(color.Bold), strings.ToUpper(eventType))}

	if device := payload.Get("deviceId").String(); device != "" {
		parts = append(parts, p.paint(utils.DeviceColor(device), "["+device+"]"))
	}

	return strings.Join(append(parts, p.summary(eventType, payload)), " ")
}

func (p *printer) summary(eventType string, payload gjson.Result) string {
	switch eventType {
	case "console":
		level := payload.Get("level").String()

		return p.paint(color.New(levelColors[level]), level) + " " + payload.Get("msg").String()
	case "network":
		parts := []string{payload.Get("phase").String(), payload.Get("method").String(), payload.Get("url").String()}
		if status := payload.Get("status"); status.Exists() {
			parts = append(parts, status.String())
		}

		if duration := payload.Get("durationMs"); duration.Exists() {
			parts = append(parts, fmt.Sprintf("%.0fms", duration.Float()))
		}

		if errText := payload.Get("error").String(); errText != "" {
			parts = append(parts, p.paint(color.New(color.FgRed), errText))
		}

		return strings.Join(parts, " ")
	case "meta":
		if payload.Get("kind").String() == "devices" {
			ids := make([]string, 0)
			for _, device := range payload.Get("devices").Array() {
				ids = append(ids, device.Get("id").String())
			}

			return "devices: " + strings.Join(ids, ", ")
		}

		return fmt.Sprintf("%v %v: %v", payload.Get("source").String(), payload.Get("status").String(), payload.Get("message").String())
	default:
		return payload.Raw
	}
}

func (p *printer) paint(c *color.Color, text string) string {
	if p.noColor {
		return text
	}

	return c.Sprint(text)
}

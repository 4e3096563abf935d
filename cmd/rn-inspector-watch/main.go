package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/afzaal-28/rn-inspector/types"
)

type Config struct {
	URL       string
	Filter    string
	Command   string
	DeviceID  string
	RequestID string
	Raw       bool
	NoColor   bool
	Verbose   bool
}

func main() {
	config := parseFlags()

	logger := logrus.New()
	if config.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	conn, err := dial(ctx, config)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to inspector channel")
		os.Exit(1)
	}
	defer conn.Close()

	context.AfterFunc(ctx, func() {
		conn.Close()
	})

	if config.Command != "" {
		if err := sendCommand(conn, config); err != nil {
			logger.WithError(err).Error("Failed to send control command")
			os.Exit(1)
		}
	}

	printer := newPrinter(os.Stdout, config.Raw, config.NoColor)

	logger.WithField("url", config.URL).Debug("watching channel")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				logger.WithError(err).Warn("channel closed")
			}

			return
		}

		printer.Print(data)
	}
}

func parseFlags() *Config {
	config := &Config{}

	flags := pflag.NewFlagSet("rn-inspector-watch", pflag.ExitOnError)
	flags.StringVarP(&config.URL, "url", "u", "ws://127.0.0.1:9230/inspector", "WebSocket URL of an inspector channel")
	flags.StringVarP(&config.Filter, "filter", "f", "", "jq expression; only events it yields a truthy value for are shown")
	flags.StringVar(&config.Command, "command", "", "Send this control command after connecting (connect to the control channel)")
	flags.StringVar(&config.DeviceID, "device", "", "Device id for --command, default all devices")
	flags.StringVar(&config.RequestID, "request-id", "", "Request id for --command, default a random id")
	flags.BoolVar(&config.Raw, "raw", false, "Print events as raw JSON")
	flags.BoolVar(&config.NoColor, "no-color", false, "Do not use terminal colors in output")
	flags.BoolVarP(&config.Verbose, "verbose", "v", false, "Enable verbose logging")

	//nolint:errcheck // ignore
	flags.Parse(os.Args[1:])

	return config
}

func dial(ctx context.Context, config *Config) (*websocket.Conn, error) {
	u, err := url.Parse(config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}

	if config.Filter != "" {
		query := u.Query()
		query.Set("filter", config.Filter)
		u.RawQuery = query.Encode()
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	if err != nil {
		return nil, err
	}

	return conn, nil
}

func sendCommand(conn *websocket.Conn, config *Config) error {
	requestID := config.RequestID
	if requestID == "" {
		requestID = "watch-" + uuid.NewString()
	}

	data, err := json.Marshal(&types.ControlCommand{
		Type:      types.ControlMessageType,
		Command:   config.Command,
		DeviceID:  config.DeviceID,
		RequestID: requestID,
	})
	if err != nil {
		return err
	}

	return conn.WriteMessage(websocket.TextMessage, data)
}

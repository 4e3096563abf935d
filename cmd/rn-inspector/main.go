package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/afzaal-28/rn-inspector/inspector"
	"github.com/afzaal-28/rn-inspector/utils"
)

const shutdownTimeout = 5 * time.Second

type CliArgs struct {
	verbose    bool
	version    bool
	help       bool
	nocolor    bool
	configPath string
	noExtras   bool
}

func main() {
	cfg := inspector.DefaultConfig()
	cliArgs := CliArgs{}

	flags := pflag.NewFlagSet("rn-inspector", pflag.ExitOnError)
	flags.BoolVarP(&cliArgs.verbose, "verbose", "v", false, "Run with verbose output (env: RN_INSPECTOR_VERBOSE)")
	flags.BoolVarP(&cliArgs.version, "version", "V", false, "Print version information")
	flags.BoolVarP(&cliArgs.help, "help", "h", false, "Print this help")
	flags.BoolVar(&cliArgs.nocolor, "no-color", false, "Do not use terminal colors in output (env: RN_INSPECTOR_NO_COLOR)")
	flags.StringVarP(&cliArgs.configPath, "config", "c", os.Getenv("RN_INSPECTOR_CONFIG"), "Optional YAML config file (env: RN_INSPECTOR_CONFIG)")
	flags.StringVar(&cfg.Host, "host", cfg.Host, "Host of Metro, the debug targets and every listener (env: RN_INSPECTOR_HOST)")
	flags.IntVar(&cfg.MetroPort, "port", cfg.MetroPort, "Metro bundler port (env: METRO_PORT)")
	flags.StringVar(&cfg.DevtoolsURL, "devtools-url", cfg.DevtoolsURL, "Attach to this debugger websocket instead of discovering targets (env: RN_INSPECTOR_DEVTOOLS_URL)")
	flags.StringVar(&cfg.ChannelPath, "channel-path", cfg.ChannelPath, "HTTP path observers connect to (env: RN_INSPECTOR_CHANNEL_PATH)")
	flags.IntVar(&cfg.Channels.Console, "console-port", cfg.Channels.Console, "Console channel port (env: RN_INSPECTOR_CONSOLE_PORT)")
	flags.IntVar(&cfg.Channels.Network, "network-port", cfg.Channels.Network, "Network channel port (env: RN_INSPECTOR_NETWORK_PORT)")
	flags.IntVar(&cfg.Channels.Storage, "storage-port", cfg.Channels.Storage, "Storage channel port (env: RN_INSPECTOR_STORAGE_PORT)")
	flags.IntVar(&cfg.Channels.Control, "control-port", cfg.Channels.Control, "Control channel port (env: RN_INSPECTOR_CONTROL_PORT)")
	flags.IntVar(&cfg.Channels.Navigation, "navigation-port", cfg.Channels.Navigation, "Navigation channel port (env: RN_INSPECTOR_NAVIGATION_PORT)")
	flags.IntVar(&cfg.HealthPort, "health-port", cfg.HealthPort, "Health endpoint port, 0 picks a free port (env: RN_INSPECTOR_HEALTH_PORT)")
	flags.IntVar(&cfg.MetricsPort, "metrics-port", cfg.MetricsPort, "Optional port for Prometheus metrics endpoint (env: RN_INSPECTOR_METRICS_PORT)")
	flags.StringVar(&cfg.MetricsBind, "metrics-bind", cfg.MetricsBind, "Address to bind the Prometheus metrics endpoint to (env: RN_INSPECTOR_METRICS_BIND)")
	flags.DurationVar(&cfg.DiscoveryTimeout, "discovery-timeout", cfg.DiscoveryTimeout, "Timeout of each target discovery probe (env: RN_INSPECTOR_DISCOVERY_TIMEOUT)")
	flags.IntSliceVar(&cfg.ExtraPorts, "extra-ports", cfg.ExtraPorts, "Additional ports probed for debug targets (env: RN_INSPECTOR_EXTRA_PORTS)")
	flags.BoolVar(&cliArgs.noExtras, "no-extras", false, "Do not inject the navigation, device info and UI helpers (env: RN_INSPECTOR_INJECT_EXTRAS=false)")
	flags.BoolVar(&cfg.DisableMetro, "no-metro", cfg.DisableMetro, "Do not forward Metro bundler messages (env: RN_INSPECTOR_DISABLE_METRO)")
	flags.StringVar(&cfg.Log.File, "log-file", cfg.Log.File, "Also write logs to this file, rotated (env: RN_INSPECTOR_LOG_FILE)")

	//nolint:errcheck // ignore
	flags.Parse(os.Args[1:])

	if cliArgs.help {
		flags.PrintDefaults()
		return
	}

	logger := logrus.New()
	formatter := &utils.LogFormatter{}
	formatter.Formatter.FullTimestamp = true

	if cliArgs.nocolor || getEnvBool("RN_INSPECTOR_NO_COLOR", false) {
		formatter.DisableColors()
	} else {
		formatter.EnableColors()
	}

	logger.SetFormatter(formatter)

	if cliArgs.verbose || getEnvBool("RN_INSPECTOR_VERBOSE", false) {
		logger.SetLevel(logrus.DebugLevel)
	}

	logger.WithFields(logrus.Fields{
		"version": utils.GetBuildVersion(),
	}).Infof("initializing rn-inspector")

	if cliArgs.version {
		return
	}

	// file < env < flags: flag values already sit in cfg, so reload the
	// lower layers and re-apply only the flags that were set.
	if err := loadConfig(cfg, flags, &cliArgs, logger); err != nil {
		logger.Errorf("Failed loading config: %v", err)
		return
	}

	if cfg.Log.File != "" {
		logger.SetOutput(io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAgeDays,
		}))
	}

	rnInspector, err := inspector.New(cfg, logger)
	if err != nil {
		logger.Errorf("Failed initializing inspector: %v", err)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rnInspector.Start(ctx); err != nil {
		logger.Errorf("Failed starting inspector: %v", err)

		shutdown(rnInspector, logger)

		return
	}

	logger.Infof("health endpoint: http://%v/", rnInspector.HealthAddr())

	<-ctx.Done()

	logger.Info("shutting down")
	shutdown(rnInspector, logger)
}

func loadConfig(cfg *inspector.Config, flags *pflag.FlagSet, cliArgs *CliArgs, logger logrus.FieldLogger) error {
	flagged := *cfg
	layered := inspector.DefaultConfig()

	if cliArgs.configPath != "" {
		if err := layered.LoadConfigFile(cliArgs.configPath); err != nil {
			return err
		}
	}

	layered.ApplyEnv(logger)

	flags.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "host":
			layered.Host = flagged.Host
		case "port":
			layered.MetroPort = flagged.MetroPort
		case "devtools-url":
			layered.DevtoolsURL = flagged.DevtoolsURL
		case "channel-path":
			layered.ChannelPath = flagged.ChannelPath
		case "console-port":
			layered.Channels.Console = flagged.Channels.Console
		case "network-port":
			layered.Channels.Network = flagged.Channels.Network
		case "storage-port":
			layered.Channels.Storage = flagged.Channels.Storage
		case "control-port":
			layered.Channels.Control = flagged.Channels.Control
		case "navigation-port":
			layered.Channels.Navigation = flagged.Channels.Navigation
		case "health-port":
			layered.HealthPort = flagged.HealthPort
		case "metrics-port":
			layered.MetricsPort = flagged.MetricsPort
		case "metrics-bind":
			layered.MetricsBind = flagged.MetricsBind
		case "discovery-timeout":
			layered.DiscoveryTimeout = flagged.DiscoveryTimeout
		case "extra-ports":
			layered.ExtraPorts = flagged.ExtraPorts
		case "no-extras":
			layered.InjectExtras = !cliArgs.noExtras
		case "no-metro":
			layered.DisableMetro = flagged.DisableMetro
		case "log-file":
			layered.Log.File = flagged.Log.File
		}
	})

	*cfg = *layered

	return nil
}

func shutdown(rnInspector *inspector.Inspector, logger logrus.FieldLogger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := rnInspector.Shutdown(ctx); err != nil {
		logger.Warnf("shutdown: %v", err)
	}
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}

	return defaultValue
}

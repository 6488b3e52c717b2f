// Command ble-central connects to a BLE Health Thermometer peripheral and
// prints (and optionally publishes) its temperature measurements.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/nahidalam/BLE-Central/internal/central"
	"github.com/nahidalam/BLE-Central/internal/config"
	"github.com/nahidalam/BLE-Central/internal/mqtt"
	"github.com/nahidalam/BLE-Central/internal/radio"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: ~/.config/ble-central/config.yaml)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}

	setupLogging(cfg.LogLevel)

	var onReading func(central.Reading)
	if cfg.MQTT.Broker != "" {
		pub, err := mqtt.NewPublisher(mqtt.Options{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Topic:    cfg.MQTT.Topic,
		})
		if err != nil {
			slog.Error("mqtt setup failed", "error", err)
			os.Exit(1)
		}
		defer pub.Close()
		onReading = func(r central.Reading) {
			if err := pub.PublishReading(r); err != nil {
				slog.Warn("publish reading failed", "error", err)
			}
		}
	}

	r := radio.New(radio.Options{AdapterID: cfg.Adapter})
	session := central.NewSession(r,
		central.EmitterFunc(func(text string) { fmt.Println(text) }),
		central.Options{
			Scan: central.ScanParams{
				Interval: cfg.Scan.Interval,
				Window:   cfg.Scan.Window,
				Active:   cfg.Scan.Active,
			},
			Conn: central.ConnParams{
				MinInterval: cfg.Conn.MinInterval,
				MaxInterval: cfg.Conn.MaxInterval,
				Latency:     cfg.Conn.Latency,
				Timeout:     cfg.Conn.Timeout,
			},
			OnReading: onReading,
		})

	if err := r.Start(); err != nil {
		slog.Error("radio start failed", "error", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Single event loop: the session processes one event at a time, so it
	// needs no locking.
	for {
		select {
		case ev := <-r.Events():
			session.Handle(ev)
		case sig := <-sigCh:
			slog.Info("shutting down", "signal", sig.String())
			if err := r.Close(); err != nil {
				slog.Warn("radio close", "error", err)
			}
			return
		}
	}
}

// loadConfig loads the config from the specified path, or falls back to the
// default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		log.Printf("Config loaded from %s", defaultPath)
		return cfg, nil
	}

	log.Println("No config file found, using defaults")
	return config.Default(), nil
}

func setupLogging(level string) {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      l,
		TimeFormat: time.Kitchen,
	})))
}

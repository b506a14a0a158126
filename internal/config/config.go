package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"cloudpico-positioning/internal/geo"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	// LogFile, when set, receives a size-rotated copy of the log output.
	LogFile string

	MQTTBroker         string
	MQTTPort           int
	MQTTClientID       string
	MQTTTopicPrefix    string
	MQTTConnectTimeout time.Duration
	MQTTPublishTimeout time.Duration

	InputChannel       string
	OutputChannel      string
	PositioningChannel string

	TickInterval   time.Duration
	FlushWindow    time.Duration
	TimestampShift time.Duration
	Instrument     string

	CalibrationFile string
	Reference       geo.Point
	Correction      geo.Correction

	// HTTPAddr enables the health endpoint when non-empty.
	HTTPAddr string
	// JournalPath enables the sqlite flush journal when non-empty.
	JournalPath string
}

func LoadFromEnv() (Config, error) {
	appEnv := env("APP_ENV", "dev")
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	level, err := parseLogLevel(env("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}

	mqttPortStr := env("MQTT_PORT", "1883")
	mqttPort, err := strconv.Atoi(mqttPortStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid MQTT_PORT %q: %w", mqttPortStr, err)
	}
	if mqttPort <= 0 || mqttPort > 65535 {
		return Config{}, fmt.Errorf("MQTT_PORT must be in 1-65535, got %d", mqttPort)
	}

	connectTimeout, err := positiveDuration("MQTT_CONNECT_TIMEOUT", "10s")
	if err != nil {
		return Config{}, err
	}
	publishTimeout, err := positiveDuration("MQTT_PUBLISH_TIMEOUT", "5s")
	if err != nil {
		return Config{}, err
	}
	tickInterval, err := positiveDuration("TICK_INTERVAL", "1s")
	if err != nil {
		return Config{}, err
	}
	flushWindow, err := positiveDuration("FLUSH_WINDOW", "10s")
	if err != nil {
		return Config{}, err
	}

	shiftStr := env("TIMESTAMP_SHIFT", "-5h")
	shift, err := time.ParseDuration(shiftStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid TIMESTAMP_SHIFT %q: %w", shiftStr, err)
	}

	instrument := strings.ToLower(env("INSTRUMENT", "static"))
	switch instrument {
	case "static":
	default:
		return Config{}, fmt.Errorf("invalid INSTRUMENT %q (allowed: static)", instrument)
	}

	cfg := Config{
		AppEnv:             appEnv,
		LogLevel:           level,
		LogFile:            env("LOG_FILE", ""),
		MQTTBroker:         env("MQTT_BROKER", "localhost"),
		MQTTPort:           mqttPort,
		MQTTClientID:       env("MQTT_CLIENT_ID", "cloudpico-positioning"),
		MQTTTopicPrefix:    strings.Trim(env("MQTT_TOPIC_PREFIX", "modules/sensor"), "/"),
		MQTTConnectTimeout: connectTimeout,
		MQTTPublishTimeout: publishTimeout,
		InputChannel:       env("INPUT_CHANNEL", "input1"),
		OutputChannel:      env("OUTPUT_CHANNEL", "output1"),
		PositioningChannel: env("POSITIONING_CHANNEL", "positioning"),
		TickInterval:       tickInterval,
		FlushWindow:        flushWindow,
		TimestampShift:     shift,
		Instrument:         instrument,
		CalibrationFile:    env("CALIBRATION_FILE", ""),
		Reference:          geo.DefaultReference,
		Correction:         geo.DefaultCorrection,
		HTTPAddr:           env("HTTP_ADDR", ""),
		JournalPath:        env("JOURNAL_PATH", ""),
	}

	for name, ch := range map[string]string{
		"INPUT_CHANNEL":       cfg.InputChannel,
		"OUTPUT_CHANNEL":      cfg.OutputChannel,
		"POSITIONING_CHANNEL": cfg.PositioningChannel,
	} {
		if strings.ContainsAny(ch, "/+#") {
			return Config{}, fmt.Errorf("invalid %s %q (must not contain '/', '+' or '#')", name, ch)
		}
	}

	if cfg.CalibrationFile != "" {
		cal, err := LoadCalibration(cfg.CalibrationFile, Calibration{Reference: cfg.Reference, Correction: cfg.Correction})
		if err != nil {
			return Config{}, err
		}
		cfg.Reference = cal.Reference
		cfg.Correction = cal.Correction
	}

	return cfg, nil
}

func env(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func positiveDuration(key, def string) (time.Duration, error) {
	s := env(key, def)
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %v", key, d)
	}
	return d, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}

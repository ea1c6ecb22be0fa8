package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker           string
	MQTTClientIDProducer string
	MQTTClientIDConsole  string
	MQTTClientIDWeb      string
	MQTTClientIDDisplay  string

	// Topics
	TopicRange string
	TopicStats string

	// Voltage source
	// Source selects the acquirer: "sim", "ads1115" or "serial"
	Source     string
	ADCI2CBus  string // empty picks the first available bus
	ADCChannel int    // single-ended ADS1115 input, 0-3
	SerialPort string
	SerialBaud int

	// Pipeline
	SensorModel    string
	SamplesPerRead int
	WindowSize     int
	KalmanQ        float64
	KalmanR        float64
	KalmanP0       float64
	MADThreshold   float64

	// Files
	CalibrationPath string
	DBPath          string // empty disables the readings log

	// Timing
	ReadInterval  int // milliseconds
	StatsInterval int // milliseconds

	// Web Server
	WebServerPort int

	// Display
	DisplayUpdateInterval int // milliseconds
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: unexported (lowercase) so other packages cannot access it directly.
//     This enforces encapsulation and prevents external code from modifying config without proper locking.
//     Has package-level scope (visible to all functions in this package, persists for program lifetime).
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: RWMutex protects concurrent access. Write lock (Lock) for initialization,
//     read lock (RLock) for Get() allows multiple concurrent readers without blocking each other.
//
// External code must use InitGlobal() to set and Get() to read, ensuring thread safety.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// defaults returns a Config with every field at its stock value, so a
// config file only has to name what it changes.
func defaults() *Config {
	return &Config{
		MQTTBroker:           "tcp://localhost:1883",
		MQTTClientIDProducer: "voxel3d-range-producer",
		MQTTClientIDConsole:  "voxel3d-console",
		MQTTClientIDWeb:      "voxel3d-web",
		MQTTClientIDDisplay:  "voxel3d-display",

		TopicRange: "voxel3d/range",
		TopicStats: "voxel3d/stats",

		Source:     "sim",
		ADCI2CBus:  "",
		ADCChannel: 0,
		SerialPort: "/dev/ttyUSB0",
		SerialBaud: 115200,

		SensorModel:    "GP2Y0A41SK0F",
		SamplesPerRead: 10,
		WindowSize:     10,
		KalmanQ:        0.01,
		KalmanR:        0.1,
		KalmanP0:       1.0,
		MADThreshold:   2.0,

		CalibrationPath: "calibration.json",
		DBPath:          "",

		ReadInterval:  200,
		StatsInterval: 2000,

		WebServerPort: 8080,

		DisplayUpdateInterval: 500,
	}
}

// Load reads the configuration file and returns a Config struct. Keys
// not present in the file keep their defaults.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := defaults()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Validate the combined result
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value

	// Topics
	case "TOPIC_RANGE":
		c.TopicRange = value
	case "TOPIC_STATS":
		c.TopicStats = value

	// Voltage source
	case "SOURCE":
		c.Source = value
	case "ADC_I2C_BUS":
		c.ADCI2CBus = value
	case "ADC_CHANNEL":
		ch, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid ADC_CHANNEL %q: %w", value, err)
		}
		if ch < 0 || ch > 3 {
			return fmt.Errorf("ADC_CHANNEL must be 0-3 (single-ended ADS1115 inputs), got %d", ch)
		}
		c.ADCChannel = ch
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SERIAL_BAUD %q: %w", value, err)
		}
		c.SerialBaud = rate

	// Pipeline
	case "SENSOR_MODEL":
		c.SensorModel = value
	case "SAMPLES_PER_READ":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SAMPLES_PER_READ %q: %w", value, err)
		}
		c.SamplesPerRead = n
	case "WINDOW_SIZE":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WINDOW_SIZE %q: %w", value, err)
		}
		c.WindowSize = n
	case "KALMAN_Q":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid KALMAN_Q %q: %w", value, err)
		}
		c.KalmanQ = f
	case "KALMAN_R":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid KALMAN_R %q: %w", value, err)
		}
		c.KalmanR = f
	case "KALMAN_P0":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid KALMAN_P0 %q: %w", value, err)
		}
		c.KalmanP0 = f
	case "MAD_THRESHOLD":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid MAD_THRESHOLD %q: %w", value, err)
		}
		c.MADThreshold = f

	// Files
	case "CALIBRATION_PATH":
		c.CalibrationPath = value
	case "DB_PATH":
		c.DBPath = value

	// Timing
	case "READ_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid READ_INTERVAL %q: %w", value, err)
		}
		c.ReadInterval = interval
	case "STATS_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid STATS_INTERVAL %q: %w", value, err)
		}
		c.StatsInterval = interval

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port

	// Display
	case "DISPLAY_UPDATE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_UPDATE_INTERVAL %q: %w", value, err)
		}
		c.DisplayUpdateInterval = interval

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks that the combined configuration is usable.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.TopicRange == "" || c.TopicStats == "" {
		return fmt.Errorf("TOPIC_RANGE and TOPIC_STATS are required")
	}
	switch c.Source {
	case "sim", "ads1115", "serial":
	default:
		return fmt.Errorf("SOURCE must be sim, ads1115 or serial, got %q", c.Source)
	}
	if c.Source == "serial" && c.SerialPort == "" {
		return fmt.Errorf("SERIAL_PORT is required when SOURCE=serial")
	}
	if c.SerialBaud <= 0 {
		return fmt.Errorf("SERIAL_BAUD must be positive, got %d", c.SerialBaud)
	}
	if c.SamplesPerRead < 1 {
		return fmt.Errorf("SAMPLES_PER_READ must be >= 1, got %d", c.SamplesPerRead)
	}
	if c.WindowSize < 1 {
		return fmt.Errorf("WINDOW_SIZE must be >= 1, got %d", c.WindowSize)
	}
	if c.KalmanQ <= 0 || c.KalmanR <= 0 || c.KalmanP0 <= 0 {
		return fmt.Errorf("KALMAN_Q, KALMAN_R and KALMAN_P0 must be positive")
	}
	if c.MADThreshold <= 0 {
		return fmt.Errorf("MAD_THRESHOLD must be positive, got %g", c.MADThreshold)
	}
	if c.CalibrationPath == "" {
		return fmt.Errorf("CALIBRATION_PATH is required")
	}
	if c.ReadInterval <= 0 {
		return fmt.Errorf("READ_INTERVAL must be positive, got %d", c.ReadInterval)
	}
	if c.StatsInterval <= 0 {
		return fmt.Errorf("STATS_INTERVAL must be positive, got %d", c.StatsInterval)
	}
	if c.WebServerPort < 1 || c.WebServerPort > 65535 {
		return fmt.Errorf("WEB_SERVER_PORT must be 1-65535, got %d", c.WebServerPort)
	}
	if c.DisplayUpdateInterval <= 0 {
		return fmt.Errorf("DISPLAY_UPDATE_INTERVAL must be positive, got %d", c.DisplayUpdateInterval)
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
// Acquires write lock (configMu.Lock) during initialization to prevent concurrent access.
// This is the only function that can set globalConfig.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
// Uses read lock (configMu.RLock) to allow multiple concurrent readers without blocking.
// This is thread-safe and efficient for concurrent access across goroutines.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg := loadString(t, "# empty file, everything at stock\n")

	if cfg.MQTTBroker != "tcp://localhost:1883" {
		t.Errorf("MQTTBroker = %q", cfg.MQTTBroker)
	}
	if cfg.Source != "sim" {
		t.Errorf("Source = %q, want sim", cfg.Source)
	}
	if cfg.TopicRange != "voxel3d/range" || cfg.TopicStats != "voxel3d/stats" {
		t.Errorf("topics = %q, %q", cfg.TopicRange, cfg.TopicStats)
	}
	if cfg.SamplesPerRead != 10 || cfg.WindowSize != 10 {
		t.Errorf("pipeline sizing = %d, %d", cfg.SamplesPerRead, cfg.WindowSize)
	}
	if cfg.KalmanQ != 0.01 || cfg.KalmanR != 0.1 || cfg.KalmanP0 != 1.0 {
		t.Errorf("kalman tuning = %g, %g, %g", cfg.KalmanQ, cfg.KalmanR, cfg.KalmanP0)
	}
	if cfg.CalibrationPath != "calibration.json" {
		t.Errorf("CalibrationPath = %q", cfg.CalibrationPath)
	}
	if cfg.DBPath != "" {
		t.Errorf("DBPath = %q, want disabled by default", cfg.DBPath)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg := loadString(t, `
# comments and blank lines are skipped

MQTT_BROKER = tcp://broker.lan:1883
SOURCE = ads1115
ADC_CHANNEL = 2
KALMAN_Q = 0.05
WINDOW_SIZE = 25
DB_PATH = readings.db
TOPIC_RANGE = lab/range
`)

	if cfg.MQTTBroker != "tcp://broker.lan:1883" {
		t.Errorf("MQTTBroker = %q", cfg.MQTTBroker)
	}
	if cfg.Source != "ads1115" || cfg.ADCChannel != 2 {
		t.Errorf("source = %q channel %d", cfg.Source, cfg.ADCChannel)
	}
	if cfg.KalmanQ != 0.05 {
		t.Errorf("KalmanQ = %g, want 0.05", cfg.KalmanQ)
	}
	if cfg.WindowSize != 25 {
		t.Errorf("WindowSize = %d, want 25", cfg.WindowSize)
	}
	if cfg.DBPath != "readings.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.TopicRange != "lab/range" {
		t.Errorf("TopicRange = %q", cfg.TopicRange)
	}
	// untouched keys keep their defaults
	if cfg.TopicStats != "voxel3d/stats" {
		t.Errorf("TopicStats = %q, want default", cfg.TopicStats)
	}
}

func TestLoadRejectsBadInput(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown key", "NO_SUCH_KEY = 1\n", "unknown config key"},
		{"malformed line", "JUST_A_KEY\n", "invalid config line"},
		{"bad channel", "ADC_CHANNEL = 7\n", "ADC_CHANNEL"},
		{"bad source", "SOURCE = gpio\n", "SOURCE"},
		{"bad float", "KALMAN_R = fast\n", "KALMAN_R"},
		{"negative kalman", "KALMAN_R = -0.5\n", "must be positive"},
		{"zero window", "WINDOW_SIZE = 0\n", "WINDOW_SIZE"},
		{"zero interval", "READ_INTERVAL = 0\n", "READ_INTERVAL"},
		{"bad port", "WEB_SERVER_PORT = 123456\n", "WEB_SERVER_PORT"},
		{"empty calibration path", "CALIBRATION_PATH =\n", "CALIBRATION_PATH"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.content)
			_, err := Load(path)
			if err == nil {
				t.Fatal("Load accepted bad config")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.txt")); err == nil {
		t.Fatal("Load succeeded on a missing file")
	}
}

// ---------- test helpers ----------

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "voxel_config.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func loadString(t *testing.T, content string) *Config {
	t.Helper()
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return cfg
}

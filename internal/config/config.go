package config

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/relabs-tech/gyro_computer/internal/gyro"
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
	TopicGyro        string
	TopicGyroControl string

	// Gyro Hardware
	GyroSPIDevice string
	GyroCSPin     string
	GyroRange     byte // 0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s
	GyroUseMock   bool

	// Gyro Pipeline
	GyroDeviceID            uint32
	GyroScale               float64 // 0 = derive from GyroRange
	GyroRotation            gyro.Rotation
	GyroSampleRateHz        float64
	GyroCutoffHz            float64
	GyroIntegrationInterval time.Duration

	// Web Server
	WebServerPort int
	MetricsPort   int // 0 disables the producer's metrics listener

	// Display (SSD1306 at the default 0x3C)
	DisplayUpdateInterval int // milliseconds

	// Logging
	LogDebug bool
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: only reachable through InitGlobal and Get.
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: RWMutex protects concurrent access; Get() takes the read lock.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

func defaults() *Config {
	return &Config{
		MQTTClientIDProducer:    "gyro-producer",
		MQTTClientIDConsole:     "gyro-console-subscriber",
		MQTTClientIDWeb:         "gyro-web-subscriber",
		MQTTClientIDDisplay:     "gyro-display-subscriber",
		TopicGyro:               "inertial/gyro",
		TopicGyroControl:        "inertial/gyro/control",
		GyroRotation:            gyro.RotationNone,
		GyroCutoffHz:            30,
		GyroIntegrationInterval: gyro.DefaultIntegrationInterval,
		WebServerPort:           8080,
		DisplayUpdateInterval:   200,
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads KEY=VALUE lines from r. Blank lines and lines starting with
// '#' are ignored. Missing optional keys keep their defaults.
func Parse(r io.Reader) (*Config, error) {
	cfg := defaults()
	scanner := bufio.NewScanner(r)
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

	// Validate required fields
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
	case "TOPIC_GYRO":
		c.TopicGyro = value
	case "TOPIC_GYRO_CONTROL":
		c.TopicGyroControl = value

	// Gyro Hardware
	case "GYRO_SPI_DEVICE":
		c.GyroSPIDevice = value
	case "GYRO_CS_PIN":
		c.GyroCSPin = value
	case "GYRO_RANGE":
		rangeVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid GYRO_RANGE %q: %w", value, err)
		}
		if rangeVal < 0 || rangeVal > 3 {
			return fmt.Errorf("GYRO_RANGE must be 0-3 (0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s), got %d", rangeVal)
		}
		c.GyroRange = byte(rangeVal)
	case "GYRO_USE_MOCK":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid GYRO_USE_MOCK %q: %w", value, err)
		}
		c.GyroUseMock = b

	// Gyro Pipeline
	case "GYRO_DEVICE_ID":
		id, err := strconv.ParseUint(value, 0, 32)
		if err != nil {
			return fmt.Errorf("invalid GYRO_DEVICE_ID %q: %w", value, err)
		}
		c.GyroDeviceID = uint32(id)
	case "GYRO_SCALE":
		scale, err := parseFloat(value)
		if err != nil {
			return fmt.Errorf("invalid GYRO_SCALE %q: %w", value, err)
		}
		c.GyroScale = scale
	case "GYRO_ROTATION":
		rot, err := gyro.ParseRotation(value)
		if err != nil {
			return fmt.Errorf("invalid GYRO_ROTATION: %w", err)
		}
		c.GyroRotation = rot
	case "GYRO_SAMPLE_RATE_HZ":
		rate, err := parseFloat(value)
		if err != nil {
			return fmt.Errorf("invalid GYRO_SAMPLE_RATE_HZ %q: %w", value, err)
		}
		if rate <= 0 {
			return fmt.Errorf("GYRO_SAMPLE_RATE_HZ must be positive, got %v", rate)
		}
		c.GyroSampleRateHz = rate
	case "GYRO_CUTOFF_HZ":
		cutoff, err := parseFloat(value)
		if err != nil {
			return fmt.Errorf("invalid GYRO_CUTOFF_HZ %q: %w", value, err)
		}
		if cutoff < 0 {
			return fmt.Errorf("GYRO_CUTOFF_HZ must be 0 (disabled) or positive, got %v", cutoff)
		}
		c.GyroCutoffHz = cutoff
	case "GYRO_INTEGRATION_INTERVAL_US":
		us, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid GYRO_INTEGRATION_INTERVAL_US %q: %w", value, err)
		}
		if us == 0 {
			return fmt.Errorf("GYRO_INTEGRATION_INTERVAL_US must be positive")
		}
		c.GyroIntegrationInterval = time.Duration(us) * time.Microsecond

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port
	case "METRICS_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid METRICS_PORT %q: %w", value, err)
		}
		c.MetricsPort = port

	// Display
	case "DISPLAY_UPDATE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_UPDATE_INTERVAL %q: %w", value, err)
		}
		c.DisplayUpdateInterval = interval

	// Logging
	case "LOG_DEBUG":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid LOG_DEBUG %q: %w", value, err)
		}
		c.LogDebug = b

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

func parseFloat(value string) (float64, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not a finite number")
	}
	return f, nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.TopicGyro == "" {
		return fmt.Errorf("TOPIC_GYRO is required")
	}
	if c.GyroSampleRateHz == 0 {
		return fmt.Errorf("GYRO_SAMPLE_RATE_HZ is required")
	}
	if !c.GyroUseMock {
		if c.GyroSPIDevice == "" {
			return fmt.Errorf("GYRO_SPI_DEVICE is required unless GYRO_USE_MOCK=true")
		}
		if c.GyroCSPin == "" {
			return fmt.Errorf("GYRO_CS_PIN is required unless GYRO_USE_MOCK=true")
		}
	}
	return nil
}

// GyroRangeDPS returns the full-scale range in °/s for GyroRange.
func (c *Config) GyroRangeDPS() float64 {
	return []float64{250, 500, 1000, 2000}[c.GyroRange]
}

// EffectiveGyroScale returns GYRO_SCALE, or the rad/s-per-LSB factor for the
// configured range when GYRO_SCALE is unset.
func (c *Config) EffectiveGyroScale() float64 {
	if c.GyroScale != 0 {
		return c.GyroScale
	}
	return c.GyroRangeDPS() / 32768.0 * math.Pi / 180.0
}

// SampleInterval is the producer tick derived from the sample rate.
func (c *Config) SampleInterval() time.Duration {
	return time.Duration(float64(time.Second) / c.GyroSampleRateHz)
}

// PipelineConfig maps the gyro settings onto the pipeline.
func (c *Config) PipelineConfig() gyro.PipelineConfig {
	return gyro.PipelineConfig{
		SampleFreq:          c.GyroSampleRateHz,
		CutoffFreq:          c.GyroCutoffHz,
		IntegrationInterval: c.GyroIntegrationInterval,
	}
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
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
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}

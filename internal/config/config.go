// Package config loads the node configuration from a KEY=VALUE file with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// DefaultPath is the config file looked up when none is given.
const DefaultPath = "telemetry_config.txt"

// EnvPrefix is prepended to every key for environment overrides, e.g.
// TELEMETRY_CYCLE_INTERVAL=500.
const EnvPrefix = "TELEMETRY"

// Config holds all application configuration values.
type Config struct {
	// I2C
	I2CBus string // periph bus name, "" for the first available

	// Pressure sensor (MPL115A2)
	PressureEnabled  bool
	PressureI2CAddr  uint8
	PressureSettleMS int // 3-5 ms

	// Motion sensor (MPU6050)
	MotionEnabled bool
	MotionI2CAddr uint8
	// Accelerometer: 0=±2g, 1=±4g, 2=±8g, 3=±16g
	MotionAccelRange byte
	// Gyroscope: 0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s
	MotionGyroRange  byte
	MotionSampleDiv  byte // output rate = internal rate / (1 + div)
	MotionDLPFConfig byte // 0-7

	// Calibration
	CalibrationSamples       int
	CalibrationSampleDelayMS int

	// Telemetry
	TelemetryTarget string // host:port
	CycleInterval   int    // milliseconds
	PacketVariant   string // auto, environment, motion, full
	PacketByteOrder string // little, big
	RandomSeed      uint64 // 0 seeds from the clock

	// MQTT mirror, disabled when MQTTBroker is empty
	MQTTBroker     string
	MQTTClientID   string
	TopicTelemetry string

	// GPS, disabled when GPSSerialPort is empty
	GPSSerialPort string
	GPSBaudRate   int
	GPSMaxAgeMS   int

	// Display, disabled when DisplayI2CAddr is 0
	DisplayI2CAddr uint16

	// Receiver
	ReceiverListen string
	WebServerPort  int

	LogLevel string
}

// defaults lists every accepted key. Keys absent here are rejected.
var defaults = map[string]any{
	"I2C_BUS":                     "",
	"PRESSURE_ENABLED":            true,
	"PRESSURE_I2C_ADDR":           "0x60",
	"PRESSURE_SETTLE_MS":          5,
	"MOTION_ENABLED":              true,
	"MOTION_I2C_ADDR":             "0x68",
	"MOTION_ACCEL_RANGE":          0,
	"MOTION_GYRO_RANGE":           0,
	"MOTION_SMPLRT_DIV":           7,
	"MOTION_DLPF_CFG":             6,
	"CALIBRATION_SAMPLES":         100,
	"CALIBRATION_SAMPLE_DELAY_MS": 10,
	"TELEMETRY_TARGET":            "127.0.0.1:3000",
	"CYCLE_INTERVAL":              2000,
	"PACKET_VARIANT":              "auto",
	"PACKET_BYTE_ORDER":           "little",
	"RANDOM_SEED":                 0,
	"MQTT_BROKER":                 "",
	"MQTT_CLIENT_ID":              "telemetry-node",
	"TOPIC_TELEMETRY":             "telemetry/node",
	"GPS_SERIAL_PORT":             "",
	"GPS_BAUD_RATE":               9600,
	"GPS_MAX_AGE_MS":              5000,
	"DISPLAY_I2C_ADDR":            "0",
	"RECEIVER_LISTEN":             ":3000",
	"WEB_SERVER_PORT":             8080,
	"LOG_LEVEL":                   "info",
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads configPath, applies TELEMETRY_* environment overrides on top
// and validates the result. An empty path loads DefaultPath if it exists
// and falls back to defaults otherwise.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	path := configPath
	if path == "" {
		if _, err := os.Stat(DefaultPath); err == nil {
			path = DefaultPath
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	if err := checkKeys(v); err != nil {
		return nil, err
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func checkKeys(v *viper.Viper) error {
	var unknown []string
	for _, k := range v.AllKeys() {
		if _, ok := defaults[strings.ToUpper(k)]; !ok {
			unknown = append(unknown, strings.ToUpper(k))
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("unknown config key: %s", strings.Join(unknown, ", "))
	}
	return nil
}

func decode(v *viper.Viper) (*Config, error) {
	c := &Config{
		I2CBus:          v.GetString("I2C_BUS"),
		TelemetryTarget: v.GetString("TELEMETRY_TARGET"),
		PacketVariant:   v.GetString("PACKET_VARIANT"),
		PacketByteOrder: v.GetString("PACKET_BYTE_ORDER"),
		MQTTBroker:      v.GetString("MQTT_BROKER"),
		MQTTClientID:    v.GetString("MQTT_CLIENT_ID"),
		TopicTelemetry:  v.GetString("TOPIC_TELEMETRY"),
		GPSSerialPort:   v.GetString("GPS_SERIAL_PORT"),
		ReceiverListen:  v.GetString("RECEIVER_LISTEN"),
		LogLevel:        v.GetString("LOG_LEVEL"),
	}

	var err error
	if c.PressureEnabled, err = boolKey(v, "PRESSURE_ENABLED"); err != nil {
		return nil, err
	}
	if c.MotionEnabled, err = boolKey(v, "MOTION_ENABLED"); err != nil {
		return nil, err
	}

	addr, err := uintKey(v, "PRESSURE_I2C_ADDR", 7)
	if err != nil {
		return nil, err
	}
	c.PressureI2CAddr = uint8(addr)
	if addr, err = uintKey(v, "MOTION_I2C_ADDR", 7); err != nil {
		return nil, err
	}
	c.MotionI2CAddr = uint8(addr)
	if addr, err = uintKey(v, "DISPLAY_I2C_ADDR", 16); err != nil {
		return nil, err
	}
	c.DisplayI2CAddr = uint16(addr)

	ints := []struct {
		key string
		dst *int
	}{
		{"PRESSURE_SETTLE_MS", &c.PressureSettleMS},
		{"CALIBRATION_SAMPLES", &c.CalibrationSamples},
		{"CALIBRATION_SAMPLE_DELAY_MS", &c.CalibrationSampleDelayMS},
		{"CYCLE_INTERVAL", &c.CycleInterval},
		{"GPS_BAUD_RATE", &c.GPSBaudRate},
		{"GPS_MAX_AGE_MS", &c.GPSMaxAgeMS},
		{"WEB_SERVER_PORT", &c.WebServerPort},
	}
	for _, f := range ints {
		if *f.dst, err = intKey(v, f.key); err != nil {
			return nil, err
		}
	}

	small := []struct {
		key string
		max int
		dst *byte
		doc string
	}{
		{"MOTION_ACCEL_RANGE", 3, &c.MotionAccelRange, "0-3 (0=±2g, 1=±4g, 2=±8g, 3=±16g)"},
		{"MOTION_GYRO_RANGE", 3, &c.MotionGyroRange, "0-3 (0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s)"},
		{"MOTION_SMPLRT_DIV", 255, &c.MotionSampleDiv, "0-255"},
		{"MOTION_DLPF_CFG", 7, &c.MotionDLPFConfig, "0-7"},
	}
	for _, f := range small {
		n, err := intKey(v, f.key)
		if err != nil {
			return nil, err
		}
		if n < 0 || n > f.max {
			return nil, fmt.Errorf("%s must be %s, got %d", f.key, f.doc, n)
		}
		*f.dst = byte(n)
	}

	seed, err := uintKey(v, "RANDOM_SEED", 64)
	if err != nil {
		return nil, err
	}
	c.RandomSeed = seed
	return c, nil
}

// The env file format yields strings, so numeric keys are parsed here
// rather than through viper's lenient casts, which swallow errors.
func raw(v *viper.Viper, key string) string {
	return strings.TrimSpace(v.GetString(key))
}

func intKey(v *viper.Viper, key string) (int, error) {
	n, err := strconv.Atoi(raw(v, key))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw(v, key), err)
	}
	return n, nil
}

func uintKey(v *viper.Viper, key string, bits int) (uint64, error) {
	n, err := strconv.ParseUint(raw(v, key), 0, bits)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw(v, key), err)
	}
	return n, nil
}

func boolKey(v *viper.Viper, key string) (bool, error) {
	b, err := strconv.ParseBool(raw(v, key))
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, raw(v, key), err)
	}
	return b, nil
}

// validate checks cross-field constraints and required values.
func (c *Config) validate() error {
	if c.TelemetryTarget == "" {
		return fmt.Errorf("TELEMETRY_TARGET is required")
	}
	if c.CycleInterval <= 0 {
		return fmt.Errorf("CYCLE_INTERVAL must be positive, got %d", c.CycleInterval)
	}
	if c.PressureSettleMS < 3 || c.PressureSettleMS > 5 {
		return fmt.Errorf("PRESSURE_SETTLE_MS must be 3-5, got %d", c.PressureSettleMS)
	}
	if c.MotionI2CAddr != 0x68 && c.MotionI2CAddr != 0x69 {
		return fmt.Errorf("MOTION_I2C_ADDR must be 0x68 or 0x69, got 0x%02X", c.MotionI2CAddr)
	}
	switch c.DisplayI2CAddr {
	case 0, 0x3C, 0x3D:
	default:
		return fmt.Errorf("DISPLAY_I2C_ADDR must be 0, 0x3C or 0x3D, got 0x%02X", c.DisplayI2CAddr)
	}
	if c.CalibrationSamples < 1 {
		return fmt.Errorf("CALIBRATION_SAMPLES must be at least 1, got %d", c.CalibrationSamples)
	}
	if c.CalibrationSampleDelayMS < 0 {
		return fmt.Errorf("CALIBRATION_SAMPLE_DELAY_MS must not be negative, got %d", c.CalibrationSampleDelayMS)
	}
	switch strings.ToLower(c.PacketVariant) {
	case "auto", "environment", "env", "motion", "full":
	default:
		return fmt.Errorf("PACKET_VARIANT must be auto, environment, motion or full, got %q", c.PacketVariant)
	}
	switch strings.ToLower(c.PacketByteOrder) {
	case "little", "le", "big", "be", "network":
	default:
		return fmt.Errorf("PACKET_BYTE_ORDER must be little or big, got %q", c.PacketByteOrder)
	}
	if c.MQTTBroker != "" && c.TopicTelemetry == "" {
		return fmt.Errorf("TOPIC_TELEMETRY is required when MQTT_BROKER is set")
	}
	if c.GPSSerialPort != "" && c.GPSBaudRate <= 0 {
		return fmt.Errorf("GPS_BAUD_RATE must be positive, got %d", c.GPSBaudRate)
	}
	return nil
}

// Cycle returns CycleInterval as a duration.
func (c *Config) Cycle() time.Duration {
	return time.Duration(c.CycleInterval) * time.Millisecond
}

// InitGlobal initializes the global configuration from file. Only the
// first call has any effect.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance, or nil before InitGlobal.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}

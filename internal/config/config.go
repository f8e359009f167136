package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/relabs-tech/gps_lorawan/internal/line"
	"github.com/relabs-tech/gps_lorawan/internal/radio"
	"github.com/relabs-tech/gps_lorawan/internal/record"
)

// Radio backends.
const (
	BackendAT   = "at"
	BackendMQTT = "mqtt"
)

// MinLineLength is the shortest line buffer that still holds a sentence id
// and checksum.
const MinLineLength = 12

// Config holds all application configuration values.
type Config struct {
	// GPS
	GPSSerialPort string
	GPSBaudRate   int
	LineMaxLength int

	// Pipeline
	TxBufferRecords int
	PeriodS         int

	// Radio
	RadioBackend    string
	RadioSerialPort string
	RadioBaudRate   int
	RadioTimeoutMS  int

	// LoRaWAN ABP
	LoRaWANDevEUI      string
	LoRaWANAppEUI      string
	LoRaWANDevAddr     record.DevAddr
	LoRaWANNwkSKey     string
	LoRaWANAppSKey     string
	LoRaWANChannelMask uint16
	LoRaWANDataRate    int
	LoRaWANFPort       int

	// MQTT
	MQTTBroker          string
	MQTTClientIDTracker string
	MQTTClientIDConsole string
	TopicUplink         string

	// Web Server
	WebServerPort int // 0 disables the monitor

	// Display
	DisplayEnable         bool
	DisplayI2CBus         string // empty selects the first bus
	DisplayUpdateInterval int    // milliseconds

	// Indicator
	LEDPin string // empty disables the LED

	// Logging
	LogLevel      string
	LogFile       string
	LogMaxAgeDays int

	haveDevAddr bool
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: only reachable through InitGlobal and Get.
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: write lock for initialization, read lock for Get().
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Defaults returns a Config holding every optional value at its default.
func Defaults() *Config {
	return &Config{
		GPSBaudRate:           9600,
		LineMaxLength:         line.DefaultMaxLength,
		TxBufferRecords:       128,
		PeriodS:               20,
		RadioBackend:          BackendAT,
		RadioBaudRate:         115200,
		RadioTimeoutMS:        10000,
		LoRaWANChannelMask:    0x00FF,
		LoRaWANDataRate:       5,
		LoRaWANFPort:          2,
		MQTTClientIDTracker:   "gps-tracker",
		MQTTClientIDConsole:   "gps-uplink-console",
		TopicUplink:           "lorawan/uplink",
		DisplayUpdateInterval: 1000,
		LogLevel:              "info",
		LogMaxAgeDays:         30,
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Defaults()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		text := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(text, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, text)
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

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func atoi(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return n, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// GPS
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		c.GPSBaudRate, err = atoi(key, value)
	case "LINE_MAX_LENGTH":
		c.LineMaxLength, err = atoi(key, value)

	// Pipeline
	case "TX_BUFFER_RECORDS":
		c.TxBufferRecords, err = atoi(key, value)
	case "PERIOD_S":
		c.PeriodS, err = atoi(key, value)

	// Radio
	case "RADIO_BACKEND":
		c.RadioBackend = strings.ToLower(value)
	case "RADIO_SERIAL_PORT":
		c.RadioSerialPort = value
	case "RADIO_BAUD_RATE":
		c.RadioBaudRate, err = atoi(key, value)
	case "RADIO_TIMEOUT_MS":
		c.RadioTimeoutMS, err = atoi(key, value)

	// LoRaWAN
	case "LORAWAN_DEV_EUI":
		c.LoRaWANDevEUI = strings.ToUpper(value)
	case "LORAWAN_APP_EUI":
		c.LoRaWANAppEUI = strings.ToUpper(value)
	case "LORAWAN_DEV_ADDR":
		addr, perr := record.ParseDevAddr(value)
		if perr != nil {
			return fmt.Errorf("invalid LORAWAN_DEV_ADDR %q: %w", value, perr)
		}
		c.LoRaWANDevAddr, c.haveDevAddr = addr, true
	case "LORAWAN_NWK_SKEY":
		c.LoRaWANNwkSKey = strings.ToUpper(value)
	case "LORAWAN_APP_SKEY":
		c.LoRaWANAppSKey = strings.ToUpper(value)
	case "LORAWAN_CHANNEL_MASK":
		mask, perr := strconv.ParseUint(value, 0, 16)
		if perr != nil {
			return fmt.Errorf("invalid LORAWAN_CHANNEL_MASK %q: %w", value, perr)
		}
		c.LoRaWANChannelMask = uint16(mask)
	case "LORAWAN_DATA_RATE":
		c.LoRaWANDataRate, err = atoi(key, value)
	case "LORAWAN_FPORT":
		c.LoRaWANFPort, err = atoi(key, value)

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_TRACKER":
		c.MQTTClientIDTracker = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "TOPIC_UPLINK":
		c.TopicUplink = value

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = atoi(key, value)

	// Display
	case "DISPLAY_ENABLE":
		b, perr := strconv.ParseBool(value)
		if perr != nil {
			return fmt.Errorf("invalid DISPLAY_ENABLE %q: %w", value, perr)
		}
		c.DisplayEnable = b
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value
	case "DISPLAY_UPDATE_INTERVAL":
		c.DisplayUpdateInterval, err = atoi(key, value)

	// Indicator
	case "LED_PIN":
		c.LEDPin = value

	// Logging
	case "LOG_LEVEL":
		c.LogLevel = value
	case "LOG_FILE":
		c.LogFile = value
	case "LOG_MAX_AGE_DAYS":
		c.LogMaxAgeDays, err = atoi(key, value)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

func isHex(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune("0123456789ABCDEFabcdef", r) {
			return false
		}
	}
	return true
}

// validate checks that all required fields are set and in range.
func (c *Config) validate() error {
	if c.GPSSerialPort == "" {
		return fmt.Errorf("GPS_SERIAL_PORT is required")
	}
	if c.GPSBaudRate <= 0 {
		return fmt.Errorf("GPS_BAUD_RATE must be positive")
	}
	if c.LineMaxLength < MinLineLength {
		return fmt.Errorf("LINE_MAX_LENGTH must be at least %d", MinLineLength)
	}
	if c.TxBufferRecords <= 0 {
		return fmt.Errorf("TX_BUFFER_RECORDS must be positive")
	}
	if c.PeriodS <= 0 {
		return fmt.Errorf("PERIOD_S must be positive")
	}
	if !c.haveDevAddr {
		return fmt.Errorf("LORAWAN_DEV_ADDR is required")
	}
	if c.RadioTimeoutMS <= 0 {
		return fmt.Errorf("RADIO_TIMEOUT_MS must be positive")
	}
	if c.LoRaWANFPort < 1 || c.LoRaWANFPort > 223 {
		return fmt.Errorf("LORAWAN_FPORT must be within 1..223")
	}

	switch c.RadioBackend {
	case BackendAT:
		if c.RadioSerialPort == "" {
			return fmt.Errorf("RADIO_SERIAL_PORT is required for RADIO_BACKEND=at")
		}
		if c.RadioBaudRate <= 0 {
			return fmt.Errorf("RADIO_BAUD_RATE must be positive")
		}
		if !isHex(c.LoRaWANDevEUI, 16) {
			return fmt.Errorf("LORAWAN_DEV_EUI must be 16 hex characters")
		}
		if !isHex(c.LoRaWANAppEUI, 16) {
			return fmt.Errorf("LORAWAN_APP_EUI must be 16 hex characters")
		}
		if !isHex(c.LoRaWANNwkSKey, 32) {
			return fmt.Errorf("LORAWAN_NWK_SKEY must be 32 hex characters")
		}
		if !isHex(c.LoRaWANAppSKey, 32) {
			return fmt.Errorf("LORAWAN_APP_SKEY must be 32 hex characters")
		}
		if c.LoRaWANDataRate < 0 || c.LoRaWANDataRate > 15 {
			return fmt.Errorf("LORAWAN_DATA_RATE must be within 0..15")
		}
	case BackendMQTT:
		if c.MQTTBroker == "" {
			return fmt.Errorf("MQTT_BROKER is required for RADIO_BACKEND=mqtt")
		}
	default:
		return fmt.Errorf("unknown RADIO_BACKEND %q (want %q or %q)", c.RadioBackend, BackendAT, BackendMQTT)
	}

	if c.WebServerPort < 0 || c.WebServerPort > 65535 {
		return fmt.Errorf("WEB_SERVER_PORT must be within 0..65535")
	}
	if c.DisplayEnable && c.DisplayUpdateInterval <= 0 {
		return fmt.Errorf("DISPLAY_UPDATE_INTERVAL must be positive")
	}
	return nil
}

// Period returns the sender period.
func (c *Config) Period() time.Duration { return time.Duration(c.PeriodS) * time.Second }

// RadioTimeout returns how long a send may wait for the radio.
func (c *Config) RadioTimeout() time.Duration {
	return time.Duration(c.RadioTimeoutMS) * time.Millisecond
}

// ABP returns the activation parameters for the AT modem.
func (c *Config) ABP() radio.ABP {
	return radio.ABP{
		DevEUI:      c.LoRaWANDevEUI,
		AppEUI:      c.LoRaWANAppEUI,
		DevAddr:     c.LoRaWANDevAddr.String(),
		NwkSKey:     c.LoRaWANNwkSKey,
		AppSKey:     c.LoRaWANAppSKey,
		ChannelMask: c.LoRaWANChannelMask,
		DataRate:    c.LoRaWANDataRate,
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

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const CONFILE = "presenced.yml"

// Config is the full configuration of the presenced application. It is
// read once at startup (and again on reload) and then passed by pointer
// into the components that need it; there is no global config instance.
type Config struct {
	RealHW     bool   `yaml:"-"`
	Configfile string `yaml:"-"`

	Detection DetectionConfig `yaml:"Detection"`
	Display   DisplayConfig   `yaml:"Display"`
	Sensors   SensorsConfig   `yaml:"Sensors"`
	NightCap  NightCapConfig  `yaml:"NightCap"`
	MQTT      MQTTConfig      `yaml:"MQTT"`
	Server    ServerConfig    `yaml:"Server"`
	Logging   LoggingConfig   `yaml:"Logging"`
}

// DetectionConfig tunes the presence state machine.
type DetectionConfig struct {
	ThresholdMM         int `yaml:"ThresholdMM" json:"ThresholdMM"`
	DetectionZones      int `yaml:"DetectionZones" json:"DetectionZones"`
	ConsecutiveRequired int `yaml:"ConsecutiveRequired" json:"ConsecutiveRequired"`
	NoPresenceRequired  int `yaml:"NoPresenceRequired" json:"NoPresenceRequired"`
}

// DisplayConfig tunes the fade engine and the adaptive brightness mapping.
type DisplayConfig struct {
	BrightnessPath     string        `yaml:"BrightnessPath" json:"-"`
	FadeInDuration     time.Duration `yaml:"FadeInDuration" json:"FadeInDuration"`
	FadeOutDuration    time.Duration `yaml:"FadeOutDuration" json:"FadeOutDuration"`
	RetargetDuration   time.Duration `yaml:"RetargetDuration" json:"RetargetDuration"`
	FadeSteps          int           `yaml:"FadeSteps" json:"FadeSteps"`
	FadeEasing         string        `yaml:"FadeEasing" json:"FadeEasing"`
	AdaptiveEnabled    bool          `yaml:"AdaptiveEnabled" json:"AdaptiveEnabled"`
	MinBrightness      int           `yaml:"MinBrightness" json:"MinBrightness"`
	MaxBrightness      int           `yaml:"MaxBrightness" json:"MaxBrightness"`
	LightFloorOffset   int           `yaml:"LightFloorOffset" json:"LightFloorOffset"`
	LightThresholdLow  float64       `yaml:"LightThresholdLow" json:"LightThresholdLow"`
	LightThresholdHigh float64       `yaml:"LightThresholdHigh" json:"LightThresholdHigh"`
	RetargetMargin     int           `yaml:"RetargetMargin" json:"RetargetMargin"`
}

// SensorsConfig holds the per-sensor polling setup.
type SensorsConfig struct {
	Proximity   ProximitySensorConfig   `yaml:"Proximity"`
	Light       LightSensorConfig       `yaml:"Light"`
	Environment EnvironmentSensorConfig `yaml:"Environment"`
}

type ProximitySensorConfig struct {
	Enabled      bool          `yaml:"Enabled"`
	PollInterval time.Duration `yaml:"PollInterval"`
	DevicePath   string        `yaml:"DevicePath"`
	InterruptPin int           `yaml:"InterruptPin"`
	ResetPin     int           `yaml:"ResetPin"`
}

type LightSensorConfig struct {
	Enabled       bool          `yaml:"Enabled"`
	PollInterval  time.Duration `yaml:"PollInterval"`
	DevicePath    string        `yaml:"DevicePath"`
	SmoothingSize int           `yaml:"SmoothingSize"`
}

type EnvironmentSensorConfig struct {
	Enabled      bool          `yaml:"Enabled"`
	PollInterval time.Duration `yaml:"PollInterval"`
	DevicePath   string        `yaml:"DevicePath"`
}

// NightCapConfig caps the wake target between local sunset and sunrise.
type NightCapConfig struct {
	Enabled       bool    `yaml:"Enabled" json:"Enabled"`
	Latitude      float64 `yaml:"Latitude" json:"Latitude"`
	Longitude     float64 `yaml:"Longitude" json:"Longitude"`
	MaxBrightness int     `yaml:"MaxBrightness" json:"MaxBrightness"`
}

// MQTTConfig configures the optional telemetry publisher.
type MQTTConfig struct {
	Enabled     bool   `yaml:"Enabled"`
	BrokerURL   string `yaml:"BrokerURL"`
	ClientID    string `yaml:"ClientID"`
	Username    string `yaml:"Username"`
	Password    string `yaml:"Password"`
	TopicPrefix string `yaml:"TopicPrefix"`
	DeviceID    string `yaml:"DeviceID"`
}

// ServerConfig configures the runtime-config HTTP endpoint.
type ServerConfig struct {
	Enabled bool   `yaml:"Enabled"`
	Listen  string `yaml:"Listen"`
}

type LoggingConfig struct {
	Level       string `yaml:"Level"`
	Format      string `yaml:"Format"`
	LogToFile   bool   `yaml:"LogToFile"`
	LogFilePath string `yaml:"LogFilePath"`
}

// DefaultConfig returns the built-in defaults. They match the modular
// configuration of the original deployment (40 cm threshold, 6 zones,
// quintic easing over 600 steps).
func DefaultConfig() *Config {
	return &Config{
		Detection: DetectionConfig{
			ThresholdMM:         400,
			DetectionZones:      6,
			ConsecutiveRequired: 3,
			NoPresenceRequired:  10,
		},
		Display: DisplayConfig{
			BrightnessPath:     "/sys/class/backlight/*/brightness",
			FadeInDuration:     2 * time.Second,
			FadeOutDuration:    3 * time.Second,
			RetargetDuration:   1 * time.Second,
			FadeSteps:          600,
			FadeEasing:         "quintic",
			AdaptiveEnabled:    true,
			MinBrightness:      0,
			MaxBrightness:      255,
			LightFloorOffset:   0,
			LightThresholdLow:  10.0,
			LightThresholdHigh: 500.0,
			RetargetMargin:     10,
		},
		Sensors: SensorsConfig{
			Proximity: ProximitySensorConfig{
				Enabled:      true,
				PollInterval: 50 * time.Millisecond,
				DevicePath:   "/sys/bus/iio/devices/iio:device0",
				InterruptPin: 18,
				ResetPin:     24,
			},
			Light: LightSensorConfig{
				Enabled:       true,
				PollInterval:  1 * time.Second,
				DevicePath:    "/sys/bus/iio/devices/iio:device1",
				SmoothingSize: 5,
			},
			Environment: EnvironmentSensorConfig{
				Enabled:      true,
				PollInterval: 5 * time.Second,
				DevicePath:   "/sys/bus/iio/devices/iio:device2",
			},
		},
		NightCap: NightCapConfig{
			Enabled:       false,
			MaxBrightness: 80,
		},
		MQTT: MQTTConfig{
			Enabled:     false,
			BrokerURL:   "tcp://localhost:1883",
			ClientID:    "presenced",
			TopicPrefix: "presenced",
			DeviceID:    "presenced",
		},
		Server: ServerConfig{
			Enabled: false,
			Listen:  ":8081",
		},
		Logging: LoggingConfig{
			Level:       "INFO",
			Format:      "text",
			LogFilePath: "presenced.log",
		},
	}
}

// ReadConfig loads the configuration file on top of the defaults.
func ReadConfig(cfile string, realhw bool) (*Config, error) {
	conf := DefaultConfig()

	f, err := os.Open(cfile)
	if err != nil {
		return nil, fmt.Errorf("can't open config file %s: %w", cfile, err)
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(conf); err != nil {
		return nil, fmt.Errorf("can't decode config file %s: %w", cfile, err)
	}

	conf.RealHW = realhw
	conf.Configfile = cfile

	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// Validate checks the ranges the rest of the application relies on.
func (c *Config) Validate() error {
	d := c.Detection
	if d.ThresholdMM <= 0 {
		return fmt.Errorf("Detection.ThresholdMM must be positive, got %d", d.ThresholdMM)
	}
	if d.DetectionZones < 1 {
		return fmt.Errorf("Detection.DetectionZones must be at least 1, got %d", d.DetectionZones)
	}
	if d.ConsecutiveRequired < 1 {
		return fmt.Errorf("Detection.ConsecutiveRequired must be at least 1, got %d", d.ConsecutiveRequired)
	}
	if d.NoPresenceRequired < 1 {
		return fmt.Errorf("Detection.NoPresenceRequired must be at least 1, got %d", d.NoPresenceRequired)
	}

	dp := c.Display
	if dp.FadeSteps < 1 {
		return fmt.Errorf("Display.FadeSteps must be at least 1, got %d", dp.FadeSteps)
	}
	switch dp.FadeEasing {
	case "linear", "ease_in_out", "quintic":
	default:
		return fmt.Errorf("Display.FadeEasing must be one of linear, ease_in_out, quintic; got %q", dp.FadeEasing)
	}
	if dp.MinBrightness < 0 {
		return fmt.Errorf("Display.MinBrightness must not be negative, got %d", dp.MinBrightness)
	}
	if dp.MaxBrightness <= dp.MinBrightness {
		return fmt.Errorf("Display.MaxBrightness (%d) must be greater than Display.MinBrightness (%d)",
			dp.MaxBrightness, dp.MinBrightness)
	}
	if dp.LightFloorOffset < 0 {
		return fmt.Errorf("Display.LightFloorOffset must not be negative, got %d", dp.LightFloorOffset)
	}
	if dp.LightThresholdHigh <= dp.LightThresholdLow {
		return fmt.Errorf("Display.LightThresholdHigh (%.1f) must be greater than Display.LightThresholdLow (%.1f)",
			dp.LightThresholdHigh, dp.LightThresholdLow)
	}
	if dp.RetargetMargin < 0 {
		return fmt.Errorf("Display.RetargetMargin must not be negative, got %d", dp.RetargetMargin)
	}
	if dp.FadeInDuration <= 0 || dp.FadeOutDuration <= 0 || dp.RetargetDuration <= 0 {
		return fmt.Errorf("display fade durations must be positive")
	}

	if c.Sensors.Proximity.PollInterval <= 0 {
		return fmt.Errorf("Sensors.Proximity.PollInterval must be positive")
	}
	if c.Sensors.Light.PollInterval <= 0 {
		return fmt.Errorf("Sensors.Light.PollInterval must be positive")
	}
	if c.Sensors.Environment.PollInterval <= 0 {
		return fmt.Errorf("Sensors.Environment.PollInterval must be positive")
	}
	if c.Sensors.Light.SmoothingSize < 1 {
		return fmt.Errorf("Sensors.Light.SmoothingSize must be at least 1, got %d", c.Sensors.Light.SmoothingSize)
	}

	if c.NightCap.Enabled {
		if c.NightCap.Latitude < -90 || c.NightCap.Latitude > 90 {
			return fmt.Errorf("NightCap.Latitude out of range: %.4f", c.NightCap.Latitude)
		}
		if c.NightCap.Longitude < -180 || c.NightCap.Longitude > 180 {
			return fmt.Errorf("NightCap.Longitude out of range: %.4f", c.NightCap.Longitude)
		}
		if c.NightCap.MaxBrightness <= 0 {
			return fmt.Errorf("NightCap.MaxBrightness must be positive, got %d", c.NightCap.MaxBrightness)
		}
	}

	if c.MQTT.Enabled && c.MQTT.BrokerURL == "" {
		return fmt.Errorf("MQTT.BrokerURL must be set when MQTT is enabled")
	}

	return nil
}

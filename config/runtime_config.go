package config

// RuntimeConfig defines the subset of the configuration that can be
// safely modified at runtime through the HTTP API. It excludes
// hardware paths, broker credentials and other sensitive settings.
type RuntimeConfig struct {
	Detection DetectionConfig `yaml:"Detection" json:"Detection"`
	Display   DisplayConfig   `yaml:"Display" json:"Display"`
	NightCap  NightCapConfig  `yaml:"NightCap" json:"NightCap"`
}

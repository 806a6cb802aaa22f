// Package config handles qmtile configuration loading.
package config

// Config holds all qmtile settings.
type Config struct {
	Decode  DecodeConfig  `yaml:"decode"`
	Output  OutputConfig  `yaml:"output"`
	Logging LoggingConfig `yaml:"logging"`
}

// DecodeConfig holds tile decoding settings.
type DecodeConfig struct {
	Strict bool `yaml:"strict"`
	// TMSCompatible selects the two root tile geodetic scheme used by Cesium.
	TMSCompatible bool `yaml:"tms_compatible"`
}

// OutputConfig controls how listings are printed.
type OutputConfig struct {
	Limit     int `yaml:"limit"` // 0 prints everything
	Precision int `yaml:"precision"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Decode: DecodeConfig{
			Strict:        false,
			TMSCompatible: true,
		},
		Output: OutputConfig{
			Limit:     0,
			Precision: 6,
		},
		Logging: LoggingConfig{
			Level:   "warn",
			LogFile: "",
		},
	}
}

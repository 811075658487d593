package internal

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config carries optional YAML defaults for the two drivers. Flags
// given on the command line take precedence over anything loaded here.
type Config struct {
	Sort struct {
		File     string `mapstructure:"file"`
		PageSize int    `mapstructure:"page_size"`
		Buffers  int    `mapstructure:"buffers"`
	} `mapstructure:"sort"`
	Store struct {
		Prefix    string  `mapstructure:"prefix"`
		Blocking  int     `mapstructure:"blocking"`
		Alpha     float64 `mapstructure:"alpha"`
		Threshold float64 `mapstructure:"threshold"`
	} `mapstructure:"store"`
	Verbose bool `mapstructure:"verbose"`
}

// LoadConfig reads a pagedb yaml config file.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// App captures process-wide runtime settings such as name, environment, metrics, and logging.
type App struct {
	Name        string
	Env         string
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
	LogFile     string `yaml:"log_file"`
}

// Alpaca describes venue connectivity. Credentials come from the environment, not this file.
type Alpaca struct {
	BaseURL   string `yaml:"base_url"`
	DataURL   string `yaml:"data_url"`
	StreamURL string `yaml:"stream_url"`
	Feed      string `yaml:"feed"`
}

// Data tunes the market state cache history buffers.
type Data struct {
	TradeHistory int `yaml:"trade_history"`
	BarHistory   int `yaml:"bar_history"`
}

// Trading groups the knobs shared by every pair engine.
type Trading struct {
	TotalCapital    float64 `yaml:"total_capital"`
	Downsample      int     `yaml:"downsample_secs"`
	BandWidth       float64 `yaml:"band_width"`
	ExecutionPolicy string  `yaml:"execution_policy"` // "ioc", "resting", or "" to derive from downsample
	CloseBufferSecs int     `yaml:"close_buffer_secs"`
	PositionTTLSecs int     `yaml:"position_ttl_secs"`
}

// Risk encodes guard-rails for how much size the engines may take on.
type Risk struct {
	MaxNotionalPerOrder float64 `yaml:"max_notional_per_order"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App       App     `yaml:"app"`
	Alpaca    Alpaca  `yaml:"alpaca"`
	Data      Data    `yaml:"data"`
	Trading   Trading `yaml:"trading"`
	Risk      Risk    `yaml:"risk"`
	PairsFile string  `yaml:"pairs_file"`
	FillsPath string  `yaml:"fills_path"`
}

// Load reads a YAML file from disk and hydrates a Config struct.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	config.applyDefaults()
	return &config, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Alpaca.BaseURL == "" {
		c.Alpaca.BaseURL = "https://paper-api.alpaca.markets"
	}
	if c.Alpaca.DataURL == "" {
		c.Alpaca.DataURL = "https://data.alpaca.markets"
	}
	if c.Alpaca.StreamURL == "" {
		c.Alpaca.StreamURL = "wss://stream.data.alpaca.markets"
	}
	if c.Alpaca.Feed == "" {
		c.Alpaca.Feed = "iex"
	}
	if c.Data.TradeHistory <= 0 {
		c.Data.TradeHistory = 100
	}
	if c.Data.BarHistory <= 0 {
		c.Data.BarHistory = 100
	}
	if c.Trading.Downsample <= 0 {
		c.Trading.Downsample = 30
	}
	if c.Trading.BandWidth <= 0 {
		c.Trading.BandWidth = 2
	}
	if c.Trading.CloseBufferSecs <= 0 {
		c.Trading.CloseBufferSecs = 300
	}
	if c.Trading.PositionTTLSecs <= 0 {
		c.Trading.PositionTTLSecs = 5
	}
}

package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the bot-level configuration. The per-exchange blocks carry the
// adapter settings (credentials, fees, timeout); required-field validation
// happens in the adapter constructors so a bad block fails the adapter it
// belongs to, loudly and before any network call.
type Config struct {
	Exchange string       `yaml:"exchange"`
	ItBit    ItBitConfig  `yaml:"itbit"`
	Kraken   KrakenConfig `yaml:"kraken"`
	Log      LogConfig    `yaml:"log"`
}

// ItBitConfig holds the itBit adapter settings. Fee fields are pointers so a
// missing fee is distinguishable from an explicit zero.
type ItBitConfig struct {
	UserID         string   `yaml:"user_id"`
	ClientKey      string   `yaml:"client_key"`
	ClientSecret   string   `yaml:"client_secret"`
	BuyFeePercent  *Decimal `yaml:"buy_fee_percent"`
	SellFeePercent *Decimal `yaml:"sell_fee_percent"`
	TimeoutSec     int64    `yaml:"timeout_sec"`
	BaseURL        string   `yaml:"base_url"`
}

// KrakenConfig holds the Kraken adapter settings. Secret is the base64 blob
// handed out by the exchange; it is decoded and checked at construction.
type KrakenConfig struct {
	Key            string   `yaml:"key"`
	Secret         string   `yaml:"secret"`
	BuyFeePercent  *Decimal `yaml:"buy_fee_percent"`
	SellFeePercent *Decimal `yaml:"sell_fee_percent"`
	TimeoutSec     int64    `yaml:"timeout_sec"`
	BaseURL        string   `yaml:"base_url"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads a single-document YAML config. Unknown fields are rejected so a
// typo in a credential key cannot silently produce a half-configured adapter.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return Config{}, fmt.Errorf("config must contain a single YAML document")
		}
		return Config{}, err
	}
	cfg.normalize()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) normalize() {
	c.Exchange = strings.ToLower(strings.TrimSpace(c.Exchange))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.ItBit.UserID = strings.TrimSpace(c.ItBit.UserID)
	c.ItBit.ClientKey = strings.TrimSpace(c.ItBit.ClientKey)
	c.ItBit.ClientSecret = strings.TrimSpace(c.ItBit.ClientSecret)
	c.ItBit.BaseURL = strings.TrimRight(strings.TrimSpace(c.ItBit.BaseURL), "/")
	c.Kraken.Key = strings.TrimSpace(c.Kraken.Key)
	c.Kraken.Secret = strings.TrimSpace(c.Kraken.Secret)
	c.Kraken.BaseURL = strings.TrimRight(strings.TrimSpace(c.Kraken.BaseURL), "/")
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

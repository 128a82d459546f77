package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Provider ProviderConfig `yaml:"provider"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Purchase PurchaseConfig `yaml:"purchase"`
	Payment  PaymentConfig  `yaml:"payment"`
}

type HTTPConfig struct {
	Address    string `yaml:"address"`
	SwaggerDir string `yaml:"swagger_dir"`
}

// ProviderConfig points at the booking provider backend that owns flights,
// tickets, purchases and payment settlement.
type ProviderConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers       []string `yaml:"brokers"`
	PurchaseTopic string   `yaml:"purchase_topic"`
	GroupID       string   `yaml:"group_id"`
}

type PurchaseConfig struct {
	FavorsCacheTTLSeconds  int `yaml:"favors_cache_ttl_seconds"`
	TicketsCacheTTLSeconds int `yaml:"tickets_cache_ttl_seconds"`
	SessionTTLMinutes      int `yaml:"session_ttl_minutes"`
	SweepMinutes           int `yaml:"sweep_minutes"`
}

type PaymentConfig struct {
	CountdownSeconds    int `yaml:"countdown_seconds"`
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}

package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config top-level struct
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Remote    RemoteConfig    `yaml:"remote"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Entity    EntityConfig    `yaml:"entity"`
	Detection DetectionConfig `yaml:"detection"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RemoteConfig struct {
	BaseURL        string        `yaml:"base_url"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type MQTTConfig struct {
	BrokerURL      string        `yaml:"broker_url"`
	ClientID       string        `yaml:"client_id"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	PublishTimeout time.Duration `yaml:"publish_timeout"`
}

type EntityConfig struct {
	EntityID string `yaml:"entity_id"`
	PocID    string `yaml:"poc_id"`
}

type DetectionConfig struct {
	DetectionConfidence float64       `yaml:"detection_confidence"`
	OCRConfidence       float64       `yaml:"ocr_confidence"`
	PlateDebounce       time.Duration `yaml:"plate_debounce"`
}

type RateLimitConfig struct {
	RPS   int `yaml:"rps"`
	Burst int `yaml:"burst"`
}

// Load reads yaml file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	// override remote credentials from env if present
	if user := os.Getenv("REMOTE_USERNAME"); user != "" {
		cfg.Remote.Username = user
	}
	if pw := os.Getenv("REMOTE_PASSWORD"); pw != "" {
		cfg.Remote.Password = pw
	}
	if cfg.Remote.RequestTimeout <= 0 {
		cfg.Remote.RequestTimeout = 10 * time.Second
	}
	if cfg.MQTT.ConnectTimeout <= 0 {
		cfg.MQTT.ConnectTimeout = 10 * time.Second
	}
	if cfg.MQTT.PublishTimeout <= 0 {
		cfg.MQTT.PublishTimeout = 5 * time.Second
	}
	return &cfg, nil
}

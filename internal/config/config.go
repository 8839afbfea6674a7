// File: internal/config/config.go
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token    string  `yaml:"token"`
	Mode     string  `yaml:"mode"` // polling | webhook (future)
	Username string  `yaml:"username"`
	Workers  int     `yaml:"workers"` // polling workers
	AdminIDs []int64 `yaml:"admin_ids"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type AssistantConfig struct {
	APIKey      string `yaml:"api_key"`
	BaseURL     string `yaml:"base_url"`
	AssistantID string `yaml:"assistant_id"`
	ImageModel  string `yaml:"image_model"`
	TokenModel  string `yaml:"token_model"` // encoding used for token counting

	TranscribeModel string `yaml:"transcribe_model"`
	SpeechModel     string `yaml:"speech_model"`
	SpeechVoice     string `yaml:"speech_voice"`
}

type KlingConfig struct {
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
}

type RunwayConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

type VideoConfig struct {
	Kling  KlingConfig  `yaml:"kling"`
	Runway RunwayConfig `yaml:"runway"`
}

type SchedulerConfig struct {
	ExpiryCheckEvery time.Duration `yaml:"expiry_check_every"`
}

type Config struct {
	Bot       BotConfig       `yaml:"bot"`
	Log       LogConfig       `yaml:"log"`
	Admin     AdminConfig     `yaml:"admin"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Assistant AssistantConfig `yaml:"assistant"`
	Video     VideoConfig     `yaml:"video"`
	Scheduler SchedulerConfig `yaml:"scheduler"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig() (*Config, error) {
	var configPath string = ""
	var dev bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config yaml")
	flag.BoolVar(&dev, "dev", false, "development mode")
	flag.Parse()

	b, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// defaults
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 8
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Assistant.BaseURL == "" {
		cfg.Assistant.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Assistant.ImageModel == "" {
		cfg.Assistant.ImageModel = "gpt-image-1"
	}
	if cfg.Assistant.TokenModel == "" {
		cfg.Assistant.TokenModel = "gpt-4o-mini"
	}
	if cfg.Assistant.TranscribeModel == "" {
		cfg.Assistant.TranscribeModel = "whisper-1"
	}
	if cfg.Assistant.SpeechModel == "" {
		cfg.Assistant.SpeechModel = "tts-1"
	}
	if cfg.Assistant.SpeechVoice == "" {
		cfg.Assistant.SpeechVoice = "alloy"
	}
	if cfg.Video.Kling.BaseURL == "" {
		cfg.Video.Kling.BaseURL = "https://api.klingai.com"
	}
	if cfg.Video.Kling.Model == "" {
		cfg.Video.Kling.Model = "kling-v1"
	}
	if cfg.Video.Runway.BaseURL == "" {
		cfg.Video.Runway.BaseURL = "https://api.dev.runwayml.com"
	}
	if cfg.Video.Runway.Model == "" {
		cfg.Video.Runway.Model = "gen3a_turbo"
	}
	if cfg.Scheduler.ExpiryCheckEvery <= 0 {
		cfg.Scheduler.ExpiryCheckEvery = time.Hour
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	// Minimal validation. Dev mode runs without credentials: the noop
	// assistant and bot and in-process stores take their place.
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if !dev {
		if cfg.Bot.Token == "" {
			return nil, errors.New("bot.token is required")
		}
		if cfg.Redis.URL == "" {
			return nil, errors.New("redis.url is required")
		}
		if cfg.Assistant.APIKey == "" {
			return nil, errors.New("assistant.api_key is required")
		}
		if cfg.Assistant.AssistantID == "" {
			return nil, errors.New("assistant.assistant_id is required")
		}
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}

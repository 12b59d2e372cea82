package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr      string `yaml:"addr"`
		Password  string `yaml:"password"`
		DB        int    `yaml:"db"`
		TicketTTL string `yaml:"ticket_ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Game struct {
		MaxPlayers                int    `yaml:"max_players"`
		AnswerAttempts            int    `yaml:"answer_attempts"`
		DefaultQuestionCount      int    `yaml:"default_question_count"`
		DefaultSecondsPerQuestion int    `yaml:"default_seconds_per_question"`
		BankTTL                   string `yaml:"bank_ttl"`
		ReapInterval              string `yaml:"reap_interval"`
		FinishedGrace             string `yaml:"finished_grace"`
		IdleGrace                 string `yaml:"idle_grace"`
		Heartbeat                 string `yaml:"heartbeat"`
	} `yaml:"game"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty
// or invalid.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

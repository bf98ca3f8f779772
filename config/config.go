package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP         HTTPConfig     `yaml:"http"`
	GRPC         GRPCConfig     `yaml:"grpc"`
	Database     DatabaseConfig `yaml:"database"`
	Redis        RedisConfig    `yaml:"redis"`
	Kafka        KafkaConfig    `yaml:"kafka"`
	Dialogue     DialogueConfig `yaml:"dialogue"`
	NLU          NLUConfig      `yaml:"nlu"`
	PoliciesFile string         `yaml:"policies_file"`
	Worker       WorkerConfig   `yaml:"worker"`
}

type HTTPConfig struct {
	Address string `yaml:"address"`
}

type GRPCConfig struct {
	Address string `yaml:"address"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	ConversationTopic  string   `yaml:"conversation_topic"`
	NotificationsTopic string   `yaml:"notifications_topic"`
	GroupID            string   `yaml:"group_id"`
}

// DialogueConfig holds the workflow engine knobs. MinYear is the lowest
// travel year accepted by date validation; a negative MaxAdvanceDays turns
// the booking horizon off.
type DialogueConfig struct {
	MinYear              int `yaml:"min_year"`
	MaxAdvanceDays       int `yaml:"max_advance_days"`
	WorkflowTTLSeconds   int `yaml:"workflow_ttl_seconds"`
	BackendTimeoutMillis int `yaml:"backend_timeout_ms"`
	IdleTimeoutMinutes   int `yaml:"idle_timeout_minutes"`
	SeatsCacheTTLSeconds int `yaml:"seats_cache_ttl_seconds"`
	CacheSweepSeconds    int `yaml:"cache_sweep_seconds"`
}

func (d DialogueConfig) WorkflowTTL() time.Duration {
	return time.Duration(d.WorkflowTTLSeconds) * time.Second
}

func (d DialogueConfig) BackendTimeout() time.Duration {
	return time.Duration(d.BackendTimeoutMillis) * time.Millisecond
}

func (d DialogueConfig) IdleTimeout() time.Duration {
	return time.Duration(d.IdleTimeoutMinutes) * time.Minute
}

func (d DialogueConfig) SeatsCacheTTL() time.Duration {
	return time.Duration(d.SeatsCacheTTLSeconds) * time.Second
}

func (d DialogueConfig) CacheSweepInterval() time.Duration {
	return time.Duration(d.CacheSweepSeconds) * time.Second
}

type NLUConfig struct {
	MinConfidence float64 `yaml:"min_confidence"`
	// Embedder is "local" or "openai".
	Embedder     string `yaml:"embedder"`
	OpenAIAPIKey string `yaml:"openai_api_key"`
	OpenAIModel  string `yaml:"openai_model"`
}

type WorkerConfig struct {
	IdleSweepMinutes int `yaml:"idle_sweep_minutes"`
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

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.NLU.OpenAIAPIKey = key
	}
	cfg.applyDefaults()

	return &cfg, nil
}

// Defaults returns a configuration usable for local development.
func Defaults() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8000"
	}
	if c.GRPC.Address == "" {
		c.GRPC.Address = ":9000"
	}
	if c.Kafka.ConversationTopic == "" {
		c.Kafka.ConversationTopic = "conversation_events"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "airbot-worker"
	}
	if c.Dialogue.MinYear == 0 {
		c.Dialogue.MinYear = 2025
	}
	if c.Dialogue.MaxAdvanceDays == 0 {
		c.Dialogue.MaxAdvanceDays = 365
	}
	if c.Dialogue.WorkflowTTLSeconds == 0 {
		c.Dialogue.WorkflowTTLSeconds = 600
	}
	if c.Dialogue.BackendTimeoutMillis == 0 {
		c.Dialogue.BackendTimeoutMillis = 3000
	}
	if c.Dialogue.IdleTimeoutMinutes == 0 {
		c.Dialogue.IdleTimeoutMinutes = 30
	}
	if c.Dialogue.SeatsCacheTTLSeconds == 0 {
		c.Dialogue.SeatsCacheTTLSeconds = 300
	}
	if c.Dialogue.CacheSweepSeconds == 0 {
		c.Dialogue.CacheSweepSeconds = 60
	}
	if c.NLU.MinConfidence == 0 {
		c.NLU.MinConfidence = 0.45
	}
	if c.NLU.Embedder == "" {
		c.NLU.Embedder = "local"
	}
	if c.NLU.OpenAIModel == "" {
		c.NLU.OpenAIModel = "text-embedding-3-small"
	}
	if c.Worker.IdleSweepMinutes == 0 {
		c.Worker.IdleSweepMinutes = 5
	}
}

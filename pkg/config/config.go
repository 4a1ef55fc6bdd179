package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Auth      AuthConfig
	Storage   StorageConfig
	Ingestion IngestionConfig
	Retrieval RetrievalConfig
	Redis     RedisConfig
	LLM       LLMConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    int
	WriteTimeout   int
	BodyLimit      int
	AllowedOrigins string
}

// AuthConfig holds the single shared secret; an empty secret disables the gate.
type AuthConfig struct {
	SharedSecret string
}

type StorageConfig struct {
	Backend      string
	Root         string
	FallbackRoot string
	UploadDir    string
}

type IngestionConfig struct {
	PDFChunkSize   int
	TXTChunkSize   int
	DOCXChunkSize  int
	TableGroupSize int
}

type RetrievalConfig struct {
	TopK               int
	MinTermLength      int
	TermWeight         int
	CaseNameBonus      int
	DescriptionBonus   int
	PeriodBonus        int
	PeriodBonusEnabled bool
	CacheTTLSeconds    int
}

type RedisConfig struct {
	Enabled   bool
	Host      string
	Port      int
	Password  string
	DB        int
	KeyPrefix string
}

type LLMConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	TimeoutSec  int
}

type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

// Load reads config.yaml from path (or the default search paths when path is
// empty), overlays DOCCHAT_* environment variables and applies defaults.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/docchat")
	}

	v.SetEnvPrefix("DOCCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "json", "sqlite", "bolt":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.topK must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Ingestion.TableGroupSize <= 0 {
		return fmt.Errorf("ingestion.tableGroupSize must be positive, got %d", c.Ingestion.TableGroupSize)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 60)
	v.SetDefault("server.writeTimeout", 120)
	v.SetDefault("server.bodyLimit", 50*1024*1024)
	v.SetDefault("server.allowedOrigins", "*")

	v.SetDefault("auth.sharedSecret", "")

	v.SetDefault("storage.backend", "json")
	v.SetDefault("storage.root", "./data")
	v.SetDefault("storage.fallbackRoot", "/tmp/docchat")
	v.SetDefault("storage.uploadDir", "uploads")

	v.SetDefault("ingestion.pdfChunkSize", 1000)
	v.SetDefault("ingestion.txtChunkSize", 1000)
	v.SetDefault("ingestion.docxChunkSize", 1500)
	v.SetDefault("ingestion.tableGroupSize", 20)

	v.SetDefault("retrieval.topK", 15)
	v.SetDefault("retrieval.minTermLength", 3)
	v.SetDefault("retrieval.termWeight", 1)
	v.SetDefault("retrieval.caseNameBonus", 3)
	v.SetDefault("retrieval.descriptionBonus", 2)
	v.SetDefault("retrieval.periodBonus", 2)
	v.SetDefault("retrieval.periodBonusEnabled", false)
	v.SetDefault("retrieval.cacheTTLSeconds", 300)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.keyPrefix", "docchat:search:")

	v.SetDefault("llm.apiKey", "")
	v.SetDefault("llm.baseURL", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.maxTokens", 2048)
	v.SetDefault("llm.timeoutSec", 120)

	v.SetDefault("rateLimit.requestsPerMinute", 30)
	v.SetDefault("rateLimit.burst", 10)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputPath", "stdout")
}

package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Load reads configuration from environment variables as raw strings
// Components handle validation and defaults during initialization
func Load() *Config {
	cfg := &Config{}
	applyEnv(cfg)
	return cfg
}

// LoadWithFile decodes a TOML file first and lets non-empty environment variables override it.
// An empty path behaves like Load.
func LoadWithFile(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file '%s': %w", path, err)
		}
	}
	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	set(&cfg.Server.Port, "SERVER_PORT")
	set(&cfg.Server.Environment, "SERVER_ENV")
	set(&cfg.Server.ReadTimeout, "SERVER_READ_TIMEOUT")
	set(&cfg.Server.WriteTimeout, "SERVER_WRITE_TIMEOUT")

	set(&cfg.Database.Host, "DB_HOST")
	set(&cfg.Database.Port, "DB_PORT")
	set(&cfg.Database.User, "DB_USER")
	set(&cfg.Database.Password, "DB_PASSWORD")
	set(&cfg.Database.DBName, "DB_NAME")
	set(&cfg.Database.SSLMode, "DB_SSLMODE")
	set(&cfg.Database.MaxOpenConns, "DB_MAX_OPEN_CONNS")
	set(&cfg.Database.MaxIdleConns, "DB_MAX_IDLE_CONNS")
	set(&cfg.Database.ConnMaxLifetime, "DB_CONN_MAX_LIFETIME")

	set(&cfg.JWT.Secret, "JWT_SECRET")
	set(&cfg.JWT.Expiration, "JWT_EXPIRATION")

	set(&cfg.Worker.RefreshInterval, "WORKER_REFRESH_INTERVAL")
	set(&cfg.Worker.RefreshRate, "WORKER_REFRESH_RATE")

	set(&cfg.Logging.Level, "LOG_LEVEL")
	set(&cfg.Logging.Format, "LOG_FORMAT")
	set(&cfg.Logging.ServiceName, "SERVICE_NAME")
	set(&cfg.Logging.Directory, "LOG_DIR")
	set(&cfg.Logging.MaxSizeMB, "LOG_MAX_SIZE_MB")
	set(&cfg.Logging.MaxBackups, "LOG_MAX_BACKUPS")

	set(&cfg.Search.CandidateK, "SEARCH_CANDIDATE_K")
	set(&cfg.Search.DefaultTopK, "SEARCH_DEFAULT_TOP_K")
	set(&cfg.Search.MaxTopK, "SEARCH_MAX_TOP_K")
	set(&cfg.Search.Alpha, "SEARCH_ALPHA")
	set(&cfg.Search.MinInteractions, "SEARCH_MIN_INTERACTIONS")
	set(&cfg.Search.RecommendationLimit, "SEARCH_RECOMMENDATION_LIMIT")

	set(&cfg.LLM.Provider, "LLM_PROVIDER")
	set(&cfg.LLM.APIKey, "LLM_API_KEY")
	set(&cfg.LLM.Model, "LLM_MODEL")
	set(&cfg.LLM.BaseURL, "LLM_BASE_URL")
	set(&cfg.LLM.Timeout, "LLM_TIMEOUT")

	set(&cfg.Embedding.Provider, "EMBEDDING_PROVIDER")
	set(&cfg.Embedding.APIKey, "EMBEDDING_API_KEY")
	set(&cfg.Embedding.Model, "EMBEDDING_MODEL")
	set(&cfg.Embedding.BaseURL, "EMBEDDING_BASE_URL")
	set(&cfg.Embedding.ServiceURL, "EMBEDDING_SERVICE_URL")
	set(&cfg.Embedding.Dimensions, "EMBEDDING_DIMENSIONS")
	set(&cfg.Embedding.Timeout, "EMBEDDING_TIMEOUT")

	set(&cfg.Store.Backend, "STORE_BACKEND")
	set(&cfg.Store.MilvusAddress, "MILVUS_ADDRESS")
	set(&cfg.Store.MilvusUsername, "MILVUS_USERNAME")
	set(&cfg.Store.MilvusPassword, "MILVUS_PASSWORD")
	set(&cfg.Store.MilvusDBName, "MILVUS_DB_NAME")
	set(&cfg.Store.CollectionPrefix, "MILVUS_COLLECTION_PREFIX")

	set(&cfg.Audit.Sinks, "AUDIT_SINKS")
	set(&cfg.Audit.KafkaBrokers, "AUDIT_KAFKA_BROKERS")
	set(&cfg.Audit.KafkaTopic, "AUDIT_KAFKA_TOPIC")
	set(&cfg.Audit.KafkaClient, "AUDIT_KAFKA_CLIENT_ID")
	set(&cfg.Audit.Timeout, "AUDIT_TIMEOUT")

	set(&cfg.Breaker.MaxRequests, "BREAKER_MAX_REQUESTS")
	set(&cfg.Breaker.Interval, "BREAKER_INTERVAL")
	set(&cfg.Breaker.Timeout, "BREAKER_TIMEOUT")
	set(&cfg.Breaker.FailureThreshold, "BREAKER_FAILURE_THRESHOLD")
}

// set overwrites the field only when the variable is present
func set(field *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*field = v
	}
}

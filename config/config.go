package config

// Config contains all configuration grouped by domain
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	JWT       JWTConfig       `toml:"jwt"`
	Worker    WorkerConfig    `toml:"worker"`
	Logging   LoggingConfig   `toml:"logging"`
	Search    SearchConfig    `toml:"search"`
	LLM       LLMConfig       `toml:"llm"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Store     StoreConfig     `toml:"store"`
	Audit     AuditConfig     `toml:"audit"`
	Breaker   BreakerConfig   `toml:"breaker"`
}

// All config structs use string fields only - packages handle conversion during initialization
type ServerConfig struct {
	Port         string `toml:"port"`
	Environment  string `toml:"environment"`
	ReadTimeout  string `toml:"read_timeout"`
	WriteTimeout string `toml:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string `toml:"host"`
	Port     string `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	DBName   string `toml:"db_name"`
	SSLMode  string `toml:"ssl_mode"`

	MaxOpenConns    string `toml:"max_open_conns"`
	MaxIdleConns    string `toml:"max_idle_conns"`
	ConnMaxLifetime string `toml:"conn_max_lifetime"`
}

type JWTConfig struct {
	Secret     string `toml:"secret"`
	Expiration string `toml:"expiration"`
}

type WorkerConfig struct {
	RefreshInterval string `toml:"refresh_interval"`
	RefreshRate     string `toml:"refresh_rate"`
}

type LoggingConfig struct {
	Level       string `toml:"level"`
	Format      string `toml:"format"`
	ServiceName string `toml:"service_name"`
	Directory   string `toml:"directory"`
	MaxSizeMB   string `toml:"max_size_mb"`
	MaxBackups  string `toml:"max_backups"`
}

// SearchConfig tunes retrieval and personalization
type SearchConfig struct {
	CandidateK          string `toml:"candidate_k"`
	DefaultTopK         string `toml:"default_top_k"`
	MaxTopK             string `toml:"max_top_k"`
	Alpha               string `toml:"alpha"`
	MinInteractions     string `toml:"min_interactions"`
	RecommendationLimit string `toml:"recommendation_limit"`
}

// LLMConfig selects the chat model behind the query interpreter
type LLMConfig struct {
	Provider string `toml:"provider"`
	APIKey   string `toml:"api_key"`
	Model    string `toml:"model"`
	BaseURL  string `toml:"base_url"`
	Timeout  string `toml:"timeout"`
}

type EmbeddingConfig struct {
	Provider   string `toml:"provider"`
	APIKey     string `toml:"api_key"`
	Model      string `toml:"model"`
	BaseURL    string `toml:"base_url"`
	ServiceURL string `toml:"service_url"`
	Dimensions string `toml:"dimensions"`
	Timeout    string `toml:"timeout"`
}

// StoreConfig selects the facet vector backend
type StoreConfig struct {
	Backend          string `toml:"backend"`
	MilvusAddress    string `toml:"milvus_address"`
	MilvusUsername   string `toml:"milvus_username"`
	MilvusPassword   string `toml:"milvus_password"`
	MilvusDBName     string `toml:"milvus_db_name"`
	CollectionPrefix string `toml:"collection_prefix"`
}

type AuditConfig struct {
	Sinks        string `toml:"sinks"`
	KafkaBrokers string `toml:"kafka_brokers"`
	KafkaTopic   string `toml:"kafka_topic"`
	KafkaClient  string `toml:"kafka_client_id"`
	Timeout      string `toml:"timeout"`
}

type BreakerConfig struct {
	MaxRequests      string `toml:"max_requests"`
	Interval         string `toml:"interval"`
	Timeout          string `toml:"timeout"`
	FailureThreshold string `toml:"failure_threshold"`
}

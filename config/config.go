package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	Server   ServerConfig
	Redis    RedisConfig
	Cache    CacheConfig
	API      APIConfig
	Socket   SocketConfig
	Cruise   CruiseConfig
	Schedule ScheduleConfig
	Log      LogConfig
	Kafka    KafkaConfig
}

type ServerConfig struct {
	HTTPPort        int
	GRpcPort        int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	MaxRetries   int
	PoolSize     int
	MinIdleConns int
}

const (
	CacheDriverMemory = "memory"
	CacheDriverRedis  = "redis"
	CacheDriverSQLite = "sqlite"
)

type CacheConfig struct {
	Driver     string
	SQLitePath string
	KeyPrefix  string
	// FreshFor is how long a cached response is served without refetching.
	FreshFor time.Duration
}

type APIConfig struct {
	BaseURL   string
	Token     string
	Timeout   time.Duration
	PageLimit int
}

type SocketConfig struct {
	BaseURL             string
	NotificationPath    string
	ConversationPath    string
	EnableNotification  bool
	EnableConversation  bool
	ReconnectBaseDelay  time.Duration
	ReconnectMaxDelay   time.Duration
	ReconnectMaxRetries int
	MessageBuffer       int
}

type CruiseConfig struct {
	StartDate      string
	Length         int
	PortTimeZoneID string
	ConfigFile     string
}

// ScheduleConfig holds the feature toggles consulted before any source fetch.
type ScheduleConfig struct {
	Enabled               bool
	LFGEnabled            bool
	PersonalEventsEnabled bool
	ShowJoinedLFGs        bool
	ShowOpenLFGs          bool
	NowRefreshSpec        string
}

type KafkaConfig struct {
	Brokers              []string
	ProducerRetryMax     int
	ProducerRequiredAcks int
	Enabled              bool
	ConsumerGroupID      string
	NotificationTopic    string
	InvalidationTopic    string
}

type LogConfig struct {
	Level    string
	Mode     string
	Encoding string
}

func Load() (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	cfg := &Config{
		Env: getEnv("ENV", "development"),
		Server: ServerConfig{
			HTTPPort:        getEnvAsInt("SERVER_HTTP_PORT", 8080),
			GRpcPort:        getEnvAsInt("SERVER_GRPC_PORT", 50057),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Redis: RedisConfig{
			Addr:         getEnv("REDIS_ADDR", "localhost:6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			MaxRetries:   getEnvAsInt("REDIS_MAX_RETRIES", 3),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 2),
		},
		Cache: CacheConfig{
			Driver:     strings.ToLower(getEnv("CACHE_DRIVER", CacheDriverMemory)),
			SQLitePath: getEnv("CACHE_SQLITE_PATH", "voyage-cache.db"),
			KeyPrefix:  getEnv("CACHE_KEY_PREFIX", "voyage"),
			FreshFor:   getEnvAsDuration("CACHE_FRESH_FOR", 5*time.Minute),
		},
		API: APIConfig{
			BaseURL:   strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:8081/api/v3"), "/"),
			Token:     getEnv("API_TOKEN", ""),
			Timeout:   getEnvAsDuration("API_TIMEOUT", 15*time.Second),
			PageLimit: getEnvAsInt("API_PAGE_LIMIT", 50),
		},
		Socket: SocketConfig{
			BaseURL:             strings.TrimRight(getEnv("SOCKET_BASE_URL", "ws://localhost:8081/api/v3"), "/"),
			NotificationPath:    getEnv("SOCKET_NOTIFICATION_PATH", "/notification/socket"),
			ConversationPath:    getEnv("SOCKET_CONVERSATION_PATH", "/fez/%s/socket"),
			EnableNotification:  getEnvAsBool("SOCKET_ENABLE_NOTIFICATION", true),
			EnableConversation:  getEnvAsBool("SOCKET_ENABLE_CONVERSATION", true),
			ReconnectBaseDelay:  getEnvAsDuration("SOCKET_RECONNECT_BASE_DELAY", time.Second),
			ReconnectMaxDelay:   getEnvAsDuration("SOCKET_RECONNECT_MAX_DELAY", 30*time.Second),
			ReconnectMaxRetries: getEnvAsInt("SOCKET_RECONNECT_MAX_RETRIES", 0),
			MessageBuffer:       getEnvAsInt("SOCKET_MESSAGE_BUFFER", 64),
		},
		Cruise: CruiseConfig{
			StartDate:      getEnv("CRUISE_START_DATE", "2025-03-08"),
			Length:         getEnvAsInt("CRUISE_LENGTH", 8),
			PortTimeZoneID: getEnv("CRUISE_PORT_TIMEZONE", "America/New_York"),
			ConfigFile:     getEnv("CRUISE_CONFIG_FILE", ""),
		},
		Schedule: ScheduleConfig{
			Enabled:               getEnvAsBool("SCHEDULE_ENABLED", true),
			LFGEnabled:            getEnvAsBool("SCHEDULE_LFG_ENABLED", true),
			PersonalEventsEnabled: getEnvAsBool("SCHEDULE_PERSONAL_EVENTS_ENABLED", true),
			ShowJoinedLFGs:        getEnvAsBool("SCHEDULE_SHOW_JOINED_LFGS", true),
			ShowOpenLFGs:          getEnvAsBool("SCHEDULE_SHOW_OPEN_LFGS", false),
			NowRefreshSpec:        getEnv("SCHEDULE_NOW_REFRESH_SPEC", "* * * * *"),
		},
		Log: LogConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Mode:     getEnv("LOG_MODE", "development"),
			Encoding: getEnv("LOG_ENCODING", "console"),
		},
		Kafka: KafkaConfig{
			Brokers:              getEnvAsSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			ProducerRetryMax:     getEnvAsInt("KAFKA_PRODUCER_RETRY_MAX", 3),
			ProducerRequiredAcks: getEnvAsInt("KAFKA_PRODUCER_REQUIRED_ACKS", 1),
			Enabled:              getEnvAsBool("KAFKA_ENABLED", false),
			ConsumerGroupID:      getEnv("KAFKA_CONSUMER_GROUP_ID", "voyage-sync"),
			NotificationTopic:    getEnv("KAFKA_NOTIFICATION_TOPIC", "notification.pushed"),
			InvalidationTopic:    getEnv("KAFKA_INVALIDATION_TOPIC", "cache.invalidated"),
		},
	}

	if cfg.Cruise.ConfigFile != "" {
		vf, err := LoadVoyageFile(cfg.Cruise.ConfigFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load voyage file: %w", err)
		}
		vf.Apply(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid http port: %d", c.Server.HTTPPort)
	}

	if c.Server.GRpcPort <= 0 || c.Server.GRpcPort > 65535 {
		return fmt.Errorf("invalid grpc port: %d", c.Server.GRpcPort)
	}

	switch c.Cache.Driver {
	case CacheDriverMemory, CacheDriverSQLite:
	case CacheDriverRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis address is required for the redis cache driver")
		}
	default:
		return fmt.Errorf("unknown cache driver: %q", c.Cache.Driver)
	}

	if c.Cruise.Length <= 0 {
		return fmt.Errorf("cruise length must be positive, got %d", c.Cruise.Length)
	}

	if _, err := time.Parse("2006-01-02", c.Cruise.StartDate); err != nil {
		return fmt.Errorf("invalid cruise start date %q: %w", c.Cruise.StartDate, err)
	}

	if c.API.PageLimit <= 0 {
		return fmt.Errorf("api page limit must be positive, got %d", c.API.PageLimit)
	}

	if !strings.Contains(c.Socket.ConversationPath, "%s") {
		return fmt.Errorf("socket conversation path must contain %%s: %q", c.Socket.ConversationPath)
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka brokers are required when kafka is enabled")
	}

	if c.API.Token == "" && c.Env == "production" {
		return fmt.Errorf("API token must be set in production")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}

	return result
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

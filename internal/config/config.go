package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	AppName    string          `mapstructure:"APP_NAME"`
	AppVersion string          `mapstructure:"APP_VERSION"`
	LogLevel   string          `mapstructure:"LOG_LEVEL"`
	Server     ServerConfig    `mapstructure:"SERVER"`
	Database   DatabaseConfig  `mapstructure:"DATABASE"`
	Redis      RedisConfig     `mapstructure:"REDIS"`
	Kafka      KafkaConfig     `mapstructure:"KAFKA"`
	Auth       AuthConfig      `mapstructure:"AUTH"`
	WebSocket  WebSocketConfig `mapstructure:"WEBSOCKET"`
	Push       PushConfig      `mapstructure:"PUSH"`
	Geocode    GeocodeConfig   `mapstructure:"GEOCODE"`
	SOS        SOSConfig       `mapstructure:"SOS"`
	Limits     LimitsConfig    `mapstructure:"LIMITS"`
	Presence   PresenceConfig  `mapstructure:"PRESENCE"`
}

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	Host           string        `mapstructure:"HOST"`
	Port           string        `mapstructure:"PORT"`
	ReadTimeout    time.Duration `mapstructure:"READ_TIMEOUT"`
	WriteTimeout   time.Duration `mapstructure:"WRITE_TIMEOUT"`
	MaxHeaderBytes int           `mapstructure:"MAX_HEADER_BYTES"`
	CORS           CORSConfig    `mapstructure:"CORS"`
}

// CORSConfig holds configuration for CORS.
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"ALLOWED_ORIGINS"`
	AllowedMethods   []string `mapstructure:"ALLOWED_METHODS"`
	AllowedHeaders   []string `mapstructure:"ALLOWED_HEADERS"`
	ExposedHeaders   []string `mapstructure:"EXPOSED_HEADERS"`
	AllowCredentials bool     `mapstructure:"ALLOW_CREDENTIALS"`
	MaxAge           int      `mapstructure:"MAX_AGE"`
}

// DatabaseConfig holds configuration for the database.
type DatabaseConfig struct {
	Type     string `mapstructure:"TYPE"`
	Host     string `mapstructure:"HOST"`
	Port     int    `mapstructure:"PORT"`
	User     string `mapstructure:"USER"`
	Password string `mapstructure:"PASSWORD"`
	DBName   string `mapstructure:"DB_NAME"`
	SSLMode  string `mapstructure:"SSL_MODE"`
}

// RedisConfig holds configuration for Redis.
type RedisConfig struct {
	Addr     string `mapstructure:"ADDR"`
	Password string `mapstructure:"PASSWORD"`
	DB       int    `mapstructure:"DB"`
}

// KafkaConfig holds configuration for Kafka.
type KafkaConfig struct {
	Brokers       []string `mapstructure:"BROKERS"`
	ClientID      string   `mapstructure:"CLIENT_ID"`
	ActivityTopic string   `mapstructure:"ACTIVITY_TOPIC"`
	ConsumerGroup string   `mapstructure:"CONSUMER_GROUP"`
	Protocol      string   `mapstructure:"PROTOCOL"`
}

// AuthConfig holds configuration for authentication (JWT).
type AuthConfig struct {
	JWTSecretKey string        `mapstructure:"JWT_SECRET_KEY"`
	JWTExpiry    time.Duration `mapstructure:"JWT_EXPIRY"`
}

// WebSocketConfig holds configuration for WebSocket connections.
type WebSocketConfig struct {
	WriteWaitSeconds    int `mapstructure:"WRITE_WAIT_SECONDS"`
	PongWaitSeconds     int `mapstructure:"PONG_WAIT_SECONDS"`
	PingPeriodSeconds   int `mapstructure:"PING_PERIOD_SECONDS"`
	MaxMessageSizeBytes int `mapstructure:"MAX_MESSAGE_SIZE_BYTES"`
}

// PushConfig holds configuration for the mobile push gateway (FCM).
type PushConfig struct {
	Enabled         bool          `mapstructure:"ENABLED"`
	CredentialsFile string        `mapstructure:"CREDENTIALS_FILE"`
	SendTimeout     time.Duration `mapstructure:"SEND_TIMEOUT"`
}

// GeocodeConfig holds configuration for the reverse-geocoding provider.
type GeocodeConfig struct {
	BaseURL string        `mapstructure:"BASE_URL"`
	Timeout time.Duration `mapstructure:"TIMEOUT"`
}

// SOSConfig holds tunables for the SOS alert engine.
type SOSConfig struct {
	NearbyRadiusMeters float64       `mapstructure:"NEARBY_RADIUS_METERS"`
	AlertTTL           time.Duration `mapstructure:"ALERT_TTL"`
	SweepInterval      time.Duration `mapstructure:"SWEEP_INTERVAL"`
	PageSize           int           `mapstructure:"PAGE_SIZE"`
}

// LimitsConfig holds the friend-request abuse caps.
type LimitsConfig struct {
	OutboundRequestsPerDay int `mapstructure:"OUTBOUND_REQUESTS_PER_DAY"`
	InboundPendingMax      int `mapstructure:"INBOUND_PENDING_MAX"`
}

// PresenceConfig holds presence-derived state tunables.
type PresenceConfig struct {
	OnlineThreshold time.Duration `mapstructure:"ONLINE_THRESHOLD"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()

	v.SetDefault("APP_NAME", "safelink")
	v.SetDefault("APP_VERSION", "0.1.0")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("SERVER.HOST", "0.0.0.0")
	v.SetDefault("SERVER.PORT", "8080")
	v.SetDefault("SERVER.READ_TIMEOUT", 30*time.Second)
	v.SetDefault("SERVER.WRITE_TIMEOUT", 30*time.Second)
	v.SetDefault("SERVER.MAX_HEADER_BYTES", 1<<20) // 1 MB
	v.SetDefault("SERVER.CORS.ALLOWED_ORIGINS", []string{"http://localhost:5173"})
	v.SetDefault("SERVER.CORS.ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("SERVER.CORS.ALLOWED_HEADERS", []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"})
	v.SetDefault("SERVER.CORS.EXPOSED_HEADERS", []string{"Content-Length"})
	v.SetDefault("SERVER.CORS.ALLOW_CREDENTIALS", true)
	v.SetDefault("SERVER.CORS.MAX_AGE", 300)

	v.SetDefault("DATABASE.TYPE", "postgres")
	v.SetDefault("DATABASE.HOST", "localhost")
	v.SetDefault("DATABASE.PORT", 5432)
	v.SetDefault("DATABASE.USER", "postgres")
	v.SetDefault("DATABASE.PASSWORD", "password")
	v.SetDefault("DATABASE.DB_NAME", "safelink_db")
	v.SetDefault("DATABASE.SSL_MODE", "disable")

	v.SetDefault("REDIS.ADDR", "localhost:6379")
	v.SetDefault("REDIS.PASSWORD", "")
	v.SetDefault("REDIS.DB", 0)

	v.SetDefault("KAFKA.BROKERS", []string{"localhost:9092"})
	v.SetDefault("KAFKA.CLIENT_ID", "safelink-server")
	v.SetDefault("KAFKA.ACTIVITY_TOPIC", "safelink-activity")
	v.SetDefault("KAFKA.CONSUMER_GROUP", "safelink-activity-group")

	v.SetDefault("AUTH.JWT_SECRET_KEY", "a_very_secret_key_that_should_be_changed")
	v.SetDefault("AUTH.JWT_EXPIRY", 24*time.Hour)

	v.SetDefault("WEBSOCKET.WRITE_WAIT_SECONDS", 10)
	v.SetDefault("WEBSOCKET.PONG_WAIT_SECONDS", 60)
	v.SetDefault("WEBSOCKET.PING_PERIOD_SECONDS", 54) // (60 * 9) / 10
	v.SetDefault("WEBSOCKET.MAX_MESSAGE_SIZE_BYTES", 1024)

	v.SetDefault("PUSH.ENABLED", true)
	v.SetDefault("PUSH.CREDENTIALS_FILE", "./firebase-service-account.json")
	v.SetDefault("PUSH.SEND_TIMEOUT", 20*time.Second)

	v.SetDefault("GEOCODE.BASE_URL", "https://nominatim.openstreetmap.org")
	v.SetDefault("GEOCODE.TIMEOUT", 10*time.Second)

	v.SetDefault("SOS.NEARBY_RADIUS_METERS", 5000.0)
	v.SetDefault("SOS.ALERT_TTL", 24*time.Hour)
	v.SetDefault("SOS.SWEEP_INTERVAL", 10*time.Minute)
	v.SetDefault("SOS.PAGE_SIZE", 20)

	v.SetDefault("LIMITS.OUTBOUND_REQUESTS_PER_DAY", 20)
	v.SetDefault("LIMITS.INBOUND_PENDING_MAX", 50)

	v.SetDefault("PRESENCE.ONLINE_THRESHOLD", 10*time.Minute)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err = v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
		// No config file is fine; defaults plus environment cover everything.
		err = nil
	}

	err = v.Unmarshal(&config)
	return
}

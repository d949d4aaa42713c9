package config

import "time"

type Config struct {
	Service  *ServiceConfig
	Redis    *RedisConfig
	Postgres *PostgresConfig
	Tracer   *TracerConfig
	Worker   *WorkerConfig
	Session  *SessionConfig
	Logger   *LoggerConfig
	Auth     *AuthConfig
	Pricing  *PricingConfig
}

type ServiceConfig struct {
	Name string
	Env  string
	Addr string
}

type RedisConfig struct {
	URL          string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
	PingTimeout  time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	AutoMigrate     bool
}

type TracerConfig struct {
	Enabled bool
	Address string
}

type WorkerConfig struct {
	CommandStream string
	CommandGroup  string
	StreamMaxLen  int64
	ConsumerName  string
	ClaimMinIdle  time.Duration
	ReadBlock     time.Duration
}

type SessionConfig struct {
	HeartbeatInterval time.Duration
	PresenceTTL       time.Duration
	SendBuffer        int
	WriteTimeout      time.Duration
	ReadLimit         int64
	AllowedOrigins    []string
}

type LoggerConfig struct {
	Level  string
	Format string
}

type AuthConfig struct {
	SecretToken string
	TokenTTL    time.Duration
}

type PricingConfig struct {
	TaxRate string
}

package config

import (
	"fmt"
	"time"
)

type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port" validate:"gte=0,lte=65535"`
	Mode           string   `mapstructure:"mode" validate:"omitempty,oneof=debug release test"`
	UpstreamURL    string   `mapstructure:"upstream_url" validate:"omitempty,url"`
	TrustedProxies []string `mapstructure:"trusted_proxies"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func (s *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

type RedisConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Password       string        `mapstructure:"password"`
	DB             int           `mapstructure:"db"`
	DialTimeout    time.Duration `mapstructure:"dial_timeout"`
	PoolSize       int           `mapstructure:"pool_size"`
	ConnectRetries uint64        `mapstructure:"connect_retries"`
}

func (r *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret           string `mapstructure:"secret"`
	AccessExpMinutes int    `mapstructure:"access_exp_minutes"`
}

type AuthConfig struct {
	JWT          JWTConfig `mapstructure:"jwt"`
	APIKeyHeader string    `mapstructure:"api_key_header"`
}

// TierMatchConfig restricts a tier to a subset of requests. Empty means every request.
type TierMatchConfig struct {
	Paths   []string `mapstructure:"paths" yaml:"paths,omitempty"`
	Methods []string `mapstructure:"methods" yaml:"methods,omitempty"`
}

// TierConfig is the on-disk form of one rate limit tier.
type TierConfig struct {
	Name         string          `mapstructure:"name" yaml:"name" validate:"required,excludes=:"`
	Kind         string          `mapstructure:"kind" yaml:"kind" validate:"required,oneof=global channel endpoint auth apikey"`
	WindowMs     int64           `mapstructure:"window_ms" yaml:"window_ms" validate:"gt=0"`
	Max          *int            `mapstructure:"max" yaml:"max,omitempty" validate:"omitempty,gte=0"`
	KeyStrategy  string          `mapstructure:"key_strategy" yaml:"key_strategy,omitempty" validate:"omitempty,oneof=identity address apikey"`
	Elevates     string          `mapstructure:"elevates" yaml:"elevates,omitempty"`
	OnStoreError string          `mapstructure:"on_store_error" yaml:"on_store_error,omitempty" validate:"omitempty,oneof=open closed"`
	Match        TierMatchConfig `mapstructure:"match" yaml:"match,omitempty"`
}

type RateLimitConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	KeyPrefix         string        `mapstructure:"key_prefix" validate:"required"`
	StoreTimeout      time.Duration `mapstructure:"store_timeout" validate:"gt=0"`
	UnavailableStatus int           `mapstructure:"unavailable_status" validate:"oneof=429 503"`
	APIKeyMultiplier  int           `mapstructure:"api_key_multiplier" validate:"gte=1"`
	ExemptPaths       []string      `mapstructure:"exempt_paths"`
	Tiers             []TierConfig  `mapstructure:"tiers" validate:"unique=Name,dive"`
}

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libconfig "fieldattendance/backend/libs/config"
	"fieldattendance/backend/services/attendance-service/internal/geofence"
	"fieldattendance/backend/services/attendance-service/internal/models"
)

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Port            string        `yaml:"port" env:"ATTENDANCE_HTTP_PORT"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" env:"ATTENDANCE_HTTP_SHUTDOWN_TIMEOUT"`
}

// DatabaseConfig configures the postgres pool.
type DatabaseConfig struct {
	DSN          string        `yaml:"dsn" env:"ATTENDANCE_POSTGRES_DSN"`
	MaxOpenConns int           `yaml:"maxOpenConns" env:"ATTENDANCE_POSTGRES_MAX_OPEN_CONNS"`
	MaxIdleConns int           `yaml:"maxIdleConns" env:"ATTENDANCE_POSTGRES_MAX_IDLE_CONNS"`
	ConnLifetime time.Duration `yaml:"connLifetime" env:"ATTENDANCE_POSTGRES_CONN_LIFETIME"`
}

// RedisConfig configures the active-session cache.
type RedisConfig struct {
	Addr     string        `yaml:"addr" env:"ATTENDANCE_REDIS_ADDR"`
	Password string        `yaml:"password" env:"ATTENDANCE_REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"ATTENDANCE_REDIS_DB"`
	TTL      time.Duration `yaml:"ttl" env:"ATTENDANCE_REDIS_TTL"`
}

// AuthConfig configures bearer token validation.
type AuthConfig struct {
	JWTSecret   string        `yaml:"jwtSecret" env:"ATTENDANCE_JWT_SECRET"`
	TokenTTL    time.Duration `yaml:"tokenTTL" env:"ATTENDANCE_TOKEN_TTL"`
	BcryptCost  int           `yaml:"bcryptCost" env:"ATTENDANCE_BCRYPT_COST"`
	Supervisors []string      `yaml:"supervisors" env:"ATTENDANCE_SUPERVISORS"`
}

// SiteConfig is the work site workers clock in at.
type SiteConfig struct {
	Name         string  `yaml:"name" env:"ATTENDANCE_SITE_NAME"`
	Latitude     float64 `yaml:"latitude" env:"ATTENDANCE_SITE_LATITUDE"`
	Longitude    float64 `yaml:"longitude" env:"ATTENDANCE_SITE_LONGITUDE"`
	RadiusMeters float64 `yaml:"radiusMeters" env:"ATTENDANCE_SITE_RADIUS_METERS"`
}

// SessionConfig tunes attendance sessions.
type SessionConfig struct {
	PingInterval     time.Duration `yaml:"pingInterval" env:"ATTENDANCE_PING_INTERVAL"`
	LocationMaxAge   time.Duration `yaml:"locationMaxAge" env:"ATTENDANCE_LOCATION_MAX_AGE"`
	SendTimeout      time.Duration `yaml:"sendTimeout" env:"ATTENDANCE_SEND_TIMEOUT"`
	EventQueueSize   int           `yaml:"eventQueueSize" env:"ATTENDANCE_EVENT_QUEUE_SIZE"`
	FeedWriteTimeout time.Duration `yaml:"feedWriteTimeout" env:"ATTENDANCE_FEED_WRITE_TIMEOUT"`
}

// TelemetryConfig points at downstream event consumers. Empty values disable
// the corresponding sink.
type TelemetryConfig struct {
	TrackURL     string `yaml:"trackURL" env:"ATTENDANCE_TRACK_URL"`
	AMQPURL      string `yaml:"amqpURL" env:"ATTENDANCE_AMQP_URL"`
	AMQPExchange string `yaml:"amqpExchange" env:"ATTENDANCE_AMQP_EXCHANGE"`
}

// Config defines attendance service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Site      SiteConfig      `yaml:"site"`
	Session   SessionConfig   `yaml:"session"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Port:            "8086",
			ShutdownTimeout: 10 * time.Second,
		},
		Auth: AuthConfig{
			TokenTTL: 12 * time.Hour,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
			TTL:  24 * time.Hour,
		},
		Site: SiteConfig{
			Name:         "metro-station",
			Latitude:     17.4221891,
			Longitude:    78.3819498,
			RadiusMeters: geofence.DefaultRadiusMeters,
		},
		Session: SessionConfig{
			PingInterval:     time.Minute,
			LocationMaxAge:   2 * time.Minute,
			SendTimeout:      5 * time.Second,
			EventQueueSize:   256,
			FeedWriteTimeout: 10 * time.Second,
		},
		Telemetry: TelemetryConfig{
			AMQPExchange: "attendance.events",
		},
	}
}

// Load reads configuration via shared helper.
func Load() (*Config, error) {
	cfg := Defaults()
	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("config: database dsn required")
	}
	if strings.TrimSpace(c.Redis.Addr) == "" {
		return errors.New("config: redis addr required")
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("config: jwt secret required")
	}
	if err := c.SiteLocation().Validate(); err != nil {
		return fmt.Errorf("config: site: %w", err)
	}
	if c.Site.RadiusMeters <= 0 {
		return errors.New("config: site radius must be positive")
	}
	if c.Session.PingInterval <= 0 {
		return errors.New("config: ping interval must be positive")
	}
	return nil
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8086"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// SiteLocation returns the configured site coordinate.
func (c *Config) SiteLocation() models.Coordinate {
	return models.Coordinate{Latitude: c.Site.Latitude, Longitude: c.Site.Longitude}
}

// GeofenceSite returns the site sessions are gated on.
func (c *Config) GeofenceSite() geofence.Site {
	return geofence.Site{
		Name:         c.Site.Name,
		Location:     c.SiteLocation(),
		RadiusMeters: c.Site.RadiusMeters,
	}
}

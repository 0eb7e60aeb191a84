package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaultsAndEnv(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("ATTENDANCE_POSTGRES_DSN", "postgres://localhost/attendance")
	t.Setenv("ATTENDANCE_JWT_SECRET", "secret")
	t.Setenv("ATTENDANCE_PING_INTERVAL", "30s")
	t.Setenv("ATTENDANCE_SUPERVISORS", "boss, lead")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Session.PingInterval != 30*time.Second {
		t.Fatalf("expected env ping interval, got %s", cfg.Session.PingInterval)
	}
	site := cfg.GeofenceSite()
	if site.RadiusMeters != 100 || site.Location.Latitude != 17.4221891 || site.Location.Longitude != 78.3819498 {
		t.Fatalf("unexpected default site %+v", site)
	}
	if cfg.HTTPAddress() != ":8086" {
		t.Fatalf("unexpected address %s", cfg.HTTPAddress())
	}
	if len(cfg.Auth.Supervisors) != 2 || cfg.Auth.Supervisors[1] != "lead" {
		t.Fatalf("unexpected supervisors %v", cfg.Auth.Supervisors)
	}
	if cfg.Auth.TokenTTL != 12*time.Hour {
		t.Fatalf("unexpected token ttl %s", cfg.Auth.TokenTTL)
	}
	if cfg.Redis.TTL != 24*time.Hour {
		t.Fatalf("unexpected ttl %s", cfg.Redis.TTL)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attendance.yaml")
	data := `
http:
  port: ":9000"
database:
  dsn: postgres://file/attendance
auth:
  jwtSecret: from-file
site:
  name: depot
  latitude: 51.5
  longitude: -0.12
  radiusMeters: 250
session:
  pingInterval: 2m
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("ATTENDANCE_SITE_RADIUS_METERS", "300")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddress() != ":9000" || cfg.Site.Name != "depot" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Site.RadiusMeters != 300 {
		t.Fatalf("env must override file, got %v", cfg.Site.RadiusMeters)
	}
	if cfg.Session.PingInterval != 2*time.Minute {
		t.Fatalf("unexpected interval %s", cfg.Session.PingInterval)
	}
	if cfg.Session.LocationMaxAge != 2*time.Minute {
		t.Fatalf("defaults must survive file load, got %s", cfg.Session.LocationMaxAge)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Defaults()
		cfg.Database.DSN = "postgres://x"
		cfg.Auth.JWTSecret = "s"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing dsn", mutate: func(c *Config) { c.Database.DSN = " " }, wantErr: "dsn"},
		{name: "missing redis", mutate: func(c *Config) { c.Redis.Addr = "" }, wantErr: "redis"},
		{name: "missing secret", mutate: func(c *Config) { c.Auth.JWTSecret = "" }, wantErr: "jwt"},
		{name: "bad latitude", mutate: func(c *Config) { c.Site.Latitude = 95 }, wantErr: "site"},
		{name: "zero radius", mutate: func(c *Config) { c.Site.RadiusMeters = 0 }, wantErr: "radius"},
		{name: "zero interval", mutate: func(c *Config) { c.Session.PingInterval = 0 }, wantErr: "interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

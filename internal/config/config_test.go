package config

import (
	"log/slog"
	"os"
	"testing"
	"time"
)

var allEnvVars = []string{
	"COMMS_URL", "SERVICE_NAME", "COMMS_ENABLED", "COMMS_EMBEDDED", "COMMS_EMBEDDED_HOST", "COMMS_EMBEDDED_PORT",
	"CIPHER_SUBJECT", "EVENTS_SUBJECT", "EVENTS_ENABLED",
	"CIPHER_DEFAULT_KEY", "CIPHER_DEFAULT_SHIFT", "REQUEST_TIMEOUT",
	"AUDIT_ENABLED", "DATABASE_URL", "RUN_MIGRATIONS", "MIGRATION_PATH",
	"HTTP_ADDR", "PORT",
	"CLIENT_REMOTE", "CLIENT_URL", "REMOTE_TIMEOUT", "REMOTE_COOLDOWN", "REMOTE_API_CONSTRAINT",
	"LOG_LEVEL",
}

func clearEnv() {
	for _, env := range allEnvVars {
		os.Unsetenv(env)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("config:config_test - unexpected error: %v", err)
	}

	if cfg.COMMSURL != "nats://127.0.0.1:4222" {
		t.Errorf("config:config_test - COMMSURL = %q, want %q", cfg.COMMSURL, "nats://127.0.0.1:4222")
	}
	if cfg.COMMSName != "cipherd" {
		t.Errorf("config:config_test - COMMSName = %q, want %q", cfg.COMMSName, "cipherd")
	}
	if !cfg.COMMSEnabled || cfg.COMMSEmbedded {
		t.Errorf("config:config_test - expected COMMS enabled and not embedded by default")
	}
	if cfg.TransformSubject != "cap.cipher.transform.v1" {
		t.Errorf("config:config_test - TransformSubject = %q", cfg.TransformSubject)
	}
	if cfg.EventsSubject != "cipher.transformed" {
		t.Errorf("config:config_test - EventsSubject = %q", cfg.EventsSubject)
	}
	if cfg.DefaultKey != "your-secret-key-32-chars-long!" {
		t.Errorf("config:config_test - DefaultKey = %q, unexpected default", cfg.DefaultKey)
	}
	if cfg.DefaultShift != 3 {
		t.Errorf("config:config_test - DefaultShift = %d, want 3", cfg.DefaultShift)
	}
	if cfg.RequestTimeout != 25*time.Second {
		t.Errorf("config:config_test - RequestTimeout = %v, want 25s", cfg.RequestTimeout)
	}
	if cfg.AuditEnabled {
		t.Error("config:config_test - expected AuditEnabled=false by default")
	}
	if cfg.MigrationPath != "migrations" {
		t.Errorf("config:config_test - MigrationPath = %q, want %q", cfg.MigrationPath, "migrations")
	}
	if cfg.HTTPPort != 3000 {
		t.Errorf("config:config_test - HTTPPort = %d, want 3000", cfg.HTTPPort)
	}
	if cfg.ClientRemote != RemoteNATS {
		t.Errorf("config:config_test - ClientRemote = %q, want nats", cfg.ClientRemote)
	}
	if cfg.RemoteTimeout != 3*time.Second || cfg.RemoteCooldown != 30*time.Second {
		t.Errorf("config:config_test - RemoteTimeout/RemoteCooldown = %v/%v", cfg.RemoteTimeout, cfg.RemoteCooldown)
	}
	if cfg.RemoteAPIConstraint != "^1.0.0" {
		t.Errorf("config:config_test - RemoteAPIConstraint = %q", cfg.RemoteAPIConstraint)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("config:config_test - LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	clearEnv()
	overrides := map[string]string{
		"COMMS_URL":            "nats://custom:4222",
		"SERVICE_NAME":         "test-server",
		"COMMS_EMBEDDED":       "true",
		"COMMS_EMBEDDED_PORT":  "14222",
		"CIPHER_SUBJECT":       "cap.cipher.transform.v2",
		"EVENTS_SUBJECT":       "audit.cipher",
		"CIPHER_DEFAULT_KEY":   "another-demo-key",
		"CIPHER_DEFAULT_SHIFT": "7",
		"REQUEST_TIMEOUT":      "10s",
		"AUDIT_ENABLED":        "true",
		"DATABASE_URL":         "postgres://test@localhost/test",
		"HTTP_ADDR":            "127.0.0.1:9090",
		"CLIENT_REMOTE":        "http",
		"REMOTE_COOLDOWN":      "1m",
		"LOG_LEVEL":            "debug",
	}

	for key, val := range overrides {
		os.Setenv(key, val)
	}
	defer clearEnv()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("config:config_test - unexpected error: %v", err)
	}

	if cfg.COMMSURL != "nats://custom:4222" || cfg.COMMSName != "test-server" {
		t.Errorf("config:config_test - COMMS = %q/%q", cfg.COMMSURL, cfg.COMMSName)
	}
	if !cfg.COMMSEmbedded || cfg.COMMSEmbeddedPort != 14222 {
		t.Errorf("config:config_test - embedded = %v:%d", cfg.COMMSEmbedded, cfg.COMMSEmbeddedPort)
	}
	if cfg.TransformSubject != "cap.cipher.transform.v2" || cfg.EventsSubject != "audit.cipher" {
		t.Errorf("config:config_test - subjects = %q/%q", cfg.TransformSubject, cfg.EventsSubject)
	}
	if cfg.DefaultKey != "another-demo-key" || cfg.DefaultShift != 7 {
		t.Errorf("config:config_test - defaults = %q/%d", cfg.DefaultKey, cfg.DefaultShift)
	}
	if cfg.RequestTimeout != 10*time.Second {
		t.Errorf("config:config_test - RequestTimeout = %v, want 10s", cfg.RequestTimeout)
	}
	if !cfg.AuditEnabled || cfg.DatabaseURL != "postgres://test@localhost/test" {
		t.Errorf("config:config_test - audit = %v %q", cfg.AuditEnabled, cfg.DatabaseURL)
	}
	if cfg.ListenAddr() != "127.0.0.1:9090" {
		t.Errorf("config:config_test - ListenAddr = %q", cfg.ListenAddr())
	}
	if cfg.ClientRemote != RemoteHTTP || cfg.RemoteCooldown != time.Minute {
		t.Errorf("config:config_test - client = %q %v", cfg.ClientRemote, cfg.RemoteCooldown)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("config:config_test - SlogLevel = %v, want debug", cfg.SlogLevel())
	}
}

func TestLoadConfig_InvalidDuration(t *testing.T) {
	clearEnv()
	os.Setenv("REMOTE_TIMEOUT", "soon")
	defer clearEnv()

	if _, err := LoadConfig(); err == nil {
		t.Error("config:config_test - expected error for invalid REMOTE_TIMEOUT")
	}
}

func TestListenAddr_Port(t *testing.T) {
	cfg := &Config{HTTPPort: 3000}
	if got := cfg.ListenAddr(); got != ":3000" {
		t.Errorf("config:config_test - ListenAddr = %q, want :3000", got)
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		cfg := &Config{LogLevel: tt.level}
		if got := cfg.SlogLevel(); got != tt.want {
			t.Errorf("config:config_test - SlogLevel(%q) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func validConfig() *Config {
	return &Config{
		COMMSURL:            "nats://127.0.0.1:4222",
		COMMSEnabled:        true,
		COMMSEmbeddedPort:   4222,
		TransformSubject:    "cap.cipher.transform.v1",
		DefaultShift:        3,
		RequestTimeout:      time.Second,
		DatabaseURL:         "postgres://localhost/cipher",
		ClientRemote:        RemoteNATS,
		ClientURL:           "http://127.0.0.1:3000",
		RemoteTimeout:       time.Second,
		RemoteAPIConstraint: "^1.0.0",
	}
}

func TestValidateForServe(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }, true},
		{"negative shift", func(c *Config) { c.DefaultShift = -1 }, true},
		{"missing subject", func(c *Config) { c.TransformSubject = "" }, true},
		{"missing subject without comms", func(c *Config) { c.TransformSubject = ""; c.COMMSEnabled = false }, false},
		{"bad embedded port", func(c *Config) { c.COMMSEmbedded = true; c.COMMSEmbeddedPort = 70000 }, true},
		{"audit without db", func(c *Config) { c.AuditEnabled = true; c.DatabaseURL = "" }, true},
		{"no audit without db", func(c *Config) { c.DatabaseURL = "" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			if err := c.ValidateForServe(); (err != nil) != tt.wantErr {
				t.Errorf("config:config_test - ValidateForServe() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateForClient(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"nats", func(c *Config) {}, false},
		{"http", func(c *Config) { c.ClientRemote = RemoteHTTP }, false},
		{"none", func(c *Config) { c.ClientRemote = RemoteNone; c.COMMSURL = "" }, false},
		{"unknown mode", func(c *Config) { c.ClientRemote = "grpc" }, true},
		{"http without url", func(c *Config) { c.ClientRemote = RemoteHTTP; c.ClientURL = "" }, true},
		{"nats without url", func(c *Config) { c.COMMSURL = "" }, true},
		{"zero timeout", func(c *Config) { c.RemoteTimeout = 0 }, true},
		{"negative cooldown", func(c *Config) { c.RemoteCooldown = -time.Second }, true},
		{"bad constraint", func(c *Config) { c.RemoteAPIConstraint = "^^nope" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			if err := c.ValidateForClient(); (err != nil) != tt.wantErr {
				t.Errorf("config:config_test - ValidateForClient() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateForDB(t *testing.T) {
	c := validConfig()
	if err := c.ValidateForDB(); err != nil {
		t.Errorf("config:config_test - unexpected error: %v", err)
	}
	c.DatabaseURL = ""
	if err := c.ValidateForDB(); err == nil {
		t.Error("config:config_test - expected error for empty DATABASE_URL")
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsWithSecretFromEnv(t *testing.T) {
	t.Setenv("MILLBROOK_AUTH_JWT_SECRET", "test-secret")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("server addr = %q", cfg.Server.Addr)
	}
	if cfg.Catalog.DefaultCurrency != "USD" {
		t.Fatalf("currency = %q", cfg.Catalog.DefaultCurrency)
	}
	if cfg.Auth.TokenTTL != 24*time.Hour {
		t.Fatalf("token ttl = %v", cfg.Auth.TokenTTL)
	}
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("missing jwt secret must fail validation")
	}
}

func TestLoadReadsFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := []byte("server:\n  addr: \":9090\"\nmysql:\n  database: shopdb\nauth:\n  jwt_secret: file-secret\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("MILLBROOK_SERVER_ADDR", ":7070")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":7070" {
		t.Fatalf("env must override file, got %q", cfg.Server.Addr)
	}
	if cfg.MySQL.Database != "shopdb" {
		t.Fatalf("database = %q", cfg.MySQL.Database)
	}
}

func TestMySQLDSN(t *testing.T) {
	c := MySQLConfig{Host: "db", Port: 3306, User: "u", Password: "p", Database: "shop"}
	want := "u:p@tcp(db:3306)/shop?charset=utf8mb4&parseTime=True&loc=UTC"
	if got := c.DSN(); got != want {
		t.Fatalf("dsn = %q", got)
	}
}

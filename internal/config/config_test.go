//go:build !integration

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoadConfig_DefaultsAndEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
storage:
  driver: bolt
  bolt_path: /tmp/x.db
pix:
  app_id: from-file
checkout:
  poll_interval: 3s
`)
	t.Setenv("PIX_APP_ID", "from-env")
	t.Setenv("TELEGRAM_CHAT_ID", "4242")

	cfg, err := LoadConfig(path, false)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Pix.AppID != "from-env" {
		t.Errorf("expected env to override app id, got %q", cfg.Pix.AppID)
	}
	if cfg.Telegram.ChatID != 4242 {
		t.Errorf("expected chat id 4242, got %d", cfg.Telegram.ChatID)
	}
	if cfg.Checkout.PollInterval != 3*time.Second {
		t.Errorf("expected poll interval from file, got %s", cfg.Checkout.PollInterval)
	}
	if cfg.Checkout.NavigateDelay != 2*time.Second {
		t.Errorf("expected default navigate delay 2s, got %s", cfg.Checkout.NavigateDelay)
	}
	if cfg.Checkout.MaxPollDuration != 0 {
		t.Errorf("expected unbounded polling by default, got %s", cfg.Checkout.MaxPollDuration)
	}
	if cfg.Checkout.Currency != "BRL" {
		t.Errorf("expected BRL, got %s", cfg.Checkout.Currency)
	}
	if cfg.Pix.WebhookPath != "/webhook/pix" {
		t.Errorf("unexpected webhook path %s", cfg.Pix.WebhookPath)
	}
}

func TestLoadConfig_Validation(t *testing.T) {
	t.Run("postgres without url", func(t *testing.T) {
		path := writeConfig(t, "pix:\n  app_id: x\n")
		t.Setenv("DATABASE_URL", "")
		if _, err := LoadConfig(path, false); err == nil {
			t.Fatal("expected error for missing database url")
		}
	})

	t.Run("missing gateway credentials", func(t *testing.T) {
		path := writeConfig(t, "storage:\n  driver: bolt\n")
		t.Setenv("PIX_APP_ID", "")
		if _, err := LoadConfig(path, false); err == nil {
			t.Fatal("expected error for missing pix app id")
		}
	})

	t.Run("noop provider requires dev mode", func(t *testing.T) {
		path := writeConfig(t, "storage:\n  driver: bolt\npix:\n  provider: noop\n")
		if _, err := LoadConfig(path, false); err == nil {
			t.Fatal("expected error for noop provider outside dev")
		}
		if _, err := LoadConfig(path, true); err != nil {
			t.Fatalf("expected noop provider to load in dev, got %v", err)
		}
	})

	t.Run("admin user without secrets", func(t *testing.T) {
		path := writeConfig(t, "storage:\n  driver: bolt\npix:\n  app_id: x\nadmin:\n  username: root\n")
		t.Setenv("ADMIN_PASSWORD_HASH", "")
		t.Setenv("ADMIN_JWT_SECRET", "")
		if _, err := LoadConfig(path, false); err == nil {
			t.Fatal("expected error for admin without hash/secret")
		}
	})
}

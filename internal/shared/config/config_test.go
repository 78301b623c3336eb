package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "OBJECT_STORE", "MAIL_PROVIDER", "EMAIL_USER", "RESEND_API_KEY", "RENDER_TIMEOUT", "MAX_UPLOAD_BYTES"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.ObjectStoreType != "local" {
		t.Fatalf("expected local store, got %s", cfg.ObjectStoreType)
	}
	if cfg.MaxUploadBytes != 10<<20 {
		t.Fatalf("expected 10MB upload cap, got %d", cfg.MaxUploadBytes)
	}
	if cfg.Mail.Provider != "none" {
		t.Fatalf("expected mail provider none without credentials, got %s", cfg.Mail.Provider)
	}
	if cfg.Mail.Host != "smtp.gmail.com" || cfg.Mail.Port != 465 || !cfg.Mail.SSL {
		t.Fatalf("unexpected smtp defaults: %+v", cfg.Mail)
	}
	if cfg.RenderTimeout != 30*time.Second {
		t.Fatalf("expected 30s render timeout, got %s", cfg.RenderTimeout)
	}
}

func TestLoadInfersSMTPFromCredentials(t *testing.T) {
	t.Setenv("MAIL_PROVIDER", "")
	t.Setenv("RESEND_API_KEY", "")
	t.Setenv("EMAIL_USER", "merge@example.com")
	t.Setenv("EMAIL_PASS", "secret")

	cfg := Load()
	if cfg.Mail.Provider != "smtp" {
		t.Fatalf("expected smtp provider, got %s", cfg.Mail.Provider)
	}
	if cfg.Mail.User != "merge@example.com" {
		t.Fatalf("expected EMAIL_USER to be read, got %s", cfg.Mail.User)
	}
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("SMTP_PORT", "not-a-port")
	t.Setenv("DELIVERY_TIMEOUT", "-5s")
	t.Setenv("SMTP_SSL", "maybe")

	cfg := Load()
	if cfg.Mail.Port != 465 {
		t.Fatalf("expected fallback port 465, got %d", cfg.Mail.Port)
	}
	if cfg.DeliveryTimeout != 60*time.Second {
		t.Fatalf("expected fallback delivery timeout, got %s", cfg.DeliveryTimeout)
	}
	if !cfg.Mail.SSL {
		t.Fatalf("expected fallback SSL=true")
	}
}

func TestParseEnvLine(t *testing.T) {
	cases := map[string][2]string{
		"EMAIL_USER=a@b.com":       {"EMAIL_USER", "a@b.com"},
		`export EMAIL_PASS="x y"`:  {"EMAIL_PASS", "x y"},
		"  PORT = 5000 ":           {"PORT", "5000"},
		"CORS_ORIGIN='http://x:1'": {"CORS_ORIGIN", "http://x:1"},
	}
	for line, want := range cases {
		key, val, ok := parseEnvLine(line)
		if !ok || key != want[0] || val != want[1] {
			t.Fatalf("parseEnvLine(%q) = %q, %q, %t", line, key, val, ok)
		}
	}
	for _, line := range []string{"", "# comment", "NOEQUALS", "=value"} {
		if _, _, ok := parseEnvLine(line); ok {
			t.Fatalf("expected %q to be skipped", line)
		}
	}
}

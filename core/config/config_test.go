package config

import (
	"strings"
	"testing"
)

func baseConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{Token: "123:abc"},
	}
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := baseConfig()
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Errorf("run_mode = %q, want longpoll", cfg.Telegram.RunMode)
	}
	if cfg.Schedule.SendTime != "07:00" {
		t.Errorf("send_time = %q, want 07:00", cfg.Schedule.SendTime)
	}
	if cfg.Schedule.Timezone != "UTC" {
		t.Errorf("timezone = %q, want UTC", cfg.Schedule.Timezone)
	}
	if cfg.Schedule.OnComplete != OnCompleteDeactivate {
		t.Errorf("on_complete = %q, want deactivate", cfg.Schedule.OnComplete)
	}
	if cfg.Database.Path == "" || cfg.Plan.Path == "" {
		t.Error("expected default database and plan paths")
	}
	if cfg.Dispatch.Workers == 0 || cfg.Dispatch.RatePerSecond == 0 {
		t.Error("expected dispatch defaults")
	}
}

func TestNormalizeMissingToken(t *testing.T) {
	cfg := &Config{}
	err := Normalize(cfg)
	if err == nil || !strings.Contains(err.Error(), "token") {
		t.Fatalf("expected token error, got %v", err)
	}
}

func TestNormalizeSendTime(t *testing.T) {
	cfg := baseConfig()
	cfg.Schedule.SendTime = "25:99"
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected error for invalid send_time")
	}

	cfg = baseConfig()
	cfg.Schedule.SendTime = "06:30"
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Schedule.SendTime != "06:30" {
		t.Errorf("send_time = %q, want 06:30", cfg.Schedule.SendTime)
	}
}

func TestNormalizeOnComplete(t *testing.T) {
	cfg := baseConfig()
	cfg.Schedule.OnComplete = "Reset"
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Schedule.OnComplete != OnCompleteReset {
		t.Errorf("on_complete = %q, want reset", cfg.Schedule.OnComplete)
	}

	cfg = baseConfig()
	cfg.Schedule.OnComplete = "loop"
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected error for invalid on_complete")
	}
}

func TestNormalizeWebhookValidation(t *testing.T) {
	cfg := baseConfig()
	cfg.Telegram.RunMode = "webhook"
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected error for webhook mode without url")
	}

	cfg = baseConfig()
	cfg.Telegram.RunMode = "webhook"
	cfg.Webhook = WebhookConfig{URL: "https://bot.example.org", Listen: "0.0.0.0", Port: 8443}
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
}

func TestNormalizeTimezone(t *testing.T) {
	cfg := baseConfig()
	cfg.Schedule.Timezone = "Europe/Berlin"
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Schedule.Location().String() != "Europe/Berlin" {
		t.Errorf("location = %q", cfg.Schedule.Location())
	}

	cfg = baseConfig()
	cfg.Schedule.Timezone = "Mars/Olympus"
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}

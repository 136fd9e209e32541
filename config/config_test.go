package config

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{
		"ZONE_ID", "POLL_INTERVAL", "LOG_LIMIT", "HEARTBEAT_SECONDS", "STALE_SECONDS",
		"DEFAULT_START_PCT", "DEFAULT_STOP_PCT",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("DISPLAY_TIMEZONE", "UTC")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.ZoneID != "Z1" {
		t.Errorf("ZoneID = %q, expected Z1", cfg.ZoneID)
	}
	if cfg.PollInterval != 5*time.Second {
		t.Errorf("PollInterval = %s, expected 5s", cfg.PollInterval)
	}
	if cfg.LogLimit != 300 {
		t.Errorf("LogLimit = %d, expected 300", cfg.LogLimit)
	}
	if cfg.HeartbeatAge() != 45*time.Second || cfg.StaleAge() != 240*time.Second {
		t.Errorf("liveness = %s/%s, expected 45s/240s", cfg.HeartbeatAge(), cfg.StaleAge())
	}
	if cfg.DefaultStartPct != 30 || cfg.DefaultStopPct != 45 {
		t.Errorf("default thresholds = %d/%d, expected 30/45", cfg.DefaultStartPct, cfg.DefaultStopPct)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("ZONE_ID", "Z9")
	t.Setenv("POLL_INTERVAL", "12")
	t.Setenv("STORE_TIMEOUT", "1500ms")
	t.Setenv("LOG_DEVELOPMENT", "true")
	t.Setenv("DISPLAY_TIMEZONE", "UTC")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.ZoneID != "Z9" {
		t.Errorf("ZoneID = %q, expected Z9", cfg.ZoneID)
	}
	if cfg.PollInterval != 12*time.Second {
		t.Errorf("PollInterval = %s, expected 12s", cfg.PollInterval)
	}
	if cfg.StoreTimeout != 1500*time.Millisecond {
		t.Errorf("StoreTimeout = %s, expected 1.5s", cfg.StoreTimeout)
	}
	if !cfg.LogDevelopment {
		t.Error("LogDevelopment = false, expected true")
	}
	if cfg.Location() != time.UTC {
		t.Errorf("Location() = %v, expected UTC", cfg.Location())
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			ZoneID:           "Z1",
			PollInterval:     5 * time.Second,
			LogLimit:         300,
			HeartbeatSeconds: 45,
			StaleSeconds:     240,
			DefaultStartPct:  30,
			DefaultStopPct:   45,
			DisplayTimezone:  "UTC",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"empty zone", func(c *Config) { c.ZoneID = " " }, true},
		{"zero poll interval", func(c *Config) { c.PollInterval = 0 }, true},
		{"zero limit", func(c *Config) { c.LogLimit = 0 }, true},
		{"heartbeat equals stale", func(c *Config) { c.HeartbeatSeconds = 240 }, true},
		{"start equals stop", func(c *Config) { c.DefaultStartPct = 45 }, true},
		{"unknown timezone", func(c *Config) { c.DisplayTimezone = "Mars/Olympus" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRedactedHidesSecrets(t *testing.T) {
	cfg := &Config{FirebaseServiceAccountJSON: `{"private_key":"x"}`, TelegramBotToken: "123:abc"}
	r := cfg.Redacted()
	if r["firebase_sa_json"] != "***" || r["telegram_token"] != "***" {
		t.Errorf("Redacted() leaked secrets: %v", r)
	}
	if r["rabbitmq_url"] != "" {
		t.Errorf("Redacted() rabbitmq_url = %q, expected empty", r["rabbitmq_url"])
	}
}

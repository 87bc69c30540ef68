package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
app:
  name: courtbook
  environment: development
  port: 8080
database:
  driver: sqlite
  filename: courtbook.db
booking:
  hold_ttl: 15m
  sweep_cron: "*/5 * * * *"
  max_advance_days: 30
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.App.Port)
	}
	if cfg.Booking.HoldTTL != 15*time.Minute {
		t.Errorf("hold_ttl = %v, want 15m", cfg.Booking.HoldTTL)
	}
	if cfg.Booking.SweepCron != "*/5 * * * *" {
		t.Errorf("sweep_cron = %q", cfg.Booking.SweepCron)
	}
	if cfg.Booking.MaxAdvanceDays != 30 {
		t.Errorf("max_advance_days = %d, want 30", cfg.Booking.MaxAdvanceDays)
	}
}

func TestLoadAppliesBookingDefaults(t *testing.T) {
	path := writeConfig(t, `
app:
  name: courtbook
  port: 8080
database:
  driver: sqlite
  filename: courtbook.db
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Booking.HoldTTL != 10*time.Minute {
		t.Errorf("hold_ttl = %v, want default 10m", cfg.Booking.HoldTTL)
	}
	if cfg.Booking.SweepCron != "* * * * *" {
		t.Errorf("sweep_cron = %q, want default", cfg.Booking.SweepCron)
	}
	if cfg.Booking.MaxAdvanceDays != 60 {
		t.Errorf("max_advance_days = %d, want default 60", cfg.Booking.MaxAdvanceDays)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "missing app name",
			yaml: `
app:
  port: 8080
database:
  driver: sqlite
  filename: courtbook.db
`,
			wantErr: "app name is required",
		},
		{
			name: "unsupported driver",
			yaml: `
app:
  name: courtbook
  port: 8080
database:
  driver: postgres
  filename: courtbook.db
`,
			wantErr: "unsupported database driver",
		},
		{
			name: "bad sweep cron",
			yaml: `
app:
  name: courtbook
  port: 8080
database:
  driver: sqlite
  filename: courtbook.db
booking:
  sweep_cron: "every minute"
`,
			wantErr: "invalid booking sweep_cron",
		},
		{
			name: "negative hold ttl",
			yaml: `
app:
  name: courtbook
  port: 8080
database:
  driver: sqlite
  filename: courtbook.db
booking:
  hold_ttl: -5m
`,
			wantErr: "hold_ttl must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

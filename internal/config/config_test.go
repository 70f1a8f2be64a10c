package config

import (
	"testing"
	"time"

	"github.com/riskibarqy/scrim-scheduler/internal/platform/logging"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.PollThreshold != 8 {
		t.Fatalf("unexpected PollThreshold: %d", cfg.PollThreshold)
	}
	if cfg.MinPerTeam != 4 {
		t.Fatalf("unexpected MinPerTeam: %d", cfg.MinPerTeam)
	}
	if cfg.ReminderLead != 30*time.Minute {
		t.Fatalf("unexpected ReminderLead: %s", cfg.ReminderLead)
	}
	if cfg.LobbyCallTimeout != 20*time.Second {
		t.Fatalf("unexpected LobbyCallTimeout: %s", cfg.LobbyCallTimeout)
	}
	want := []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday}
	if len(cfg.PollSlotDays) != len(want) {
		t.Fatalf("unexpected PollSlotDays: %v", cfg.PollSlotDays)
	}
	for i := range want {
		if cfg.PollSlotDays[i] != want[i] {
			t.Fatalf("unexpected PollSlotDays[%d]: %s", i, cfg.PollSlotDays[i])
		}
	}
	if cfg.PollStartHour != 18 || cfg.PollStartMinute != 0 {
		t.Fatalf("unexpected start time %02d:%02d", cfg.PollStartHour, cfg.PollStartMinute)
	}
	if cfg.PollCadence.Weekday != time.Saturday || cfg.PollCadence.Hour != 12 {
		t.Fatalf("unexpected cadence: %+v", cfg.PollCadence)
	}
	if cfg.DBDriver != DriverMemory || cfg.ChannelDriver != DriverMemory || cfg.LobbyDriver != DriverMemory {
		t.Fatalf("expected memory drivers by default, got %s/%s/%s", cfg.DBDriver, cfg.ChannelDriver, cfg.LobbyDriver)
	}
	if len(cfg.AffiliationLabels) != 3 || cfg.AffiliationLabels[0] != "A-Team" {
		t.Fatalf("unexpected AffiliationLabels: %v", cfg.AffiliationLabels)
	}
	if cfg.PyroscopeAppName != cfg.ServiceName {
		t.Fatalf("expected pyroscope app name to default to service name, got %q", cfg.PyroscopeAppName)
	}
}

func TestLoad_AppEnvValidation(t *testing.T) {
	t.Setenv("APP_ENV", "invalid")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for invalid APP_ENV")
	}
}

func TestLoad_ProdRequiresInternalToken(t *testing.T) {
	t.Setenv("APP_ENV", EnvProd)
	t.Setenv("INTERNAL_TOKEN", " ")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when INTERNAL_TOKEN is missing in prod")
	}
}

func TestLoad_UptraceRequiresDSNWhenEnabled(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "true")
	t.Setenv("UPTRACE_DSN", " ")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", " ")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when UPTRACE_ENABLED=true without UPTRACE_DSN")
	}
}

func TestLoad_UptraceDSNFromOTLPHeaders(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "true")
	t.Setenv("UPTRACE_DSN", " ")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "foo=bar, uptrace-dsn='https://token@api.uptrace.dev?grpc=4317'")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.UptraceDSN != "https://token@api.uptrace.dev?grpc=4317" {
		t.Fatalf("unexpected UptraceDSN: %q", cfg.UptraceDSN)
	}
}

func TestLoad_PyroscopeRequiresServerAddressWhenEnabled(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("PYROSCOPE_ENABLED", "true")
	t.Setenv("PYROSCOPE_SERVER_ADDRESS", " ")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when PYROSCOPE_ENABLED=true without PYROSCOPE_SERVER_ADDRESS")
	}
}

func TestLoad_DriverValidation(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown db driver", env: map[string]string{"DB_DRIVER": "mysql"}},
		{name: "postgres without url", env: map[string]string{"DB_DRIVER": "postgres", "DB_URL": " "}},
		{name: "relay without base url", env: map[string]string{"CHANNEL_DRIVER": "relay", "RELAY_BASE_URL": " ", "RELAY_CHANNEL_ID": "c1"}},
		{name: "relay without channel", env: map[string]string{"CHANNEL_DRIVER": "relay", "RELAY_BASE_URL": "http://relay", "RELAY_CHANNEL_ID": " "}},
		{name: "http lobby without url", env: map[string]string{"LOBBY_DRIVER": "http", "LOBBY_API_URL": " "}},
		{name: "unknown lobby driver", env: map[string]string{"LOBBY_DRIVER": "grpc"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("APP_ENV", EnvDev)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoad_PollValidation(t *testing.T) {
	cases := []struct {
		name string
		key  string
		val  string
	}{
		{name: "unknown weekday", key: "POLL_SLOTS", val: "monday,funday"},
		{name: "duplicate weekday", key: "POLL_SLOTS", val: "monday,mon"},
		{name: "bad start time", key: "POLL_START_TIME", val: "6pm"},
		{name: "zero threshold", key: "POLL_THRESHOLD", val: "0"},
		{name: "zero rounds", key: "POLL_ROUNDS_PER_MAP", val: "0"},
		{name: "bad cadence weekday", key: "POLL_CADENCE_WEEKDAY", val: "someday"},
		{name: "zero min per team", key: "MIN_PER_TEAM", val: "0"},
		{name: "negative ready timeout", key: "READY_TIMEOUT", val: "-1s"},
		{name: "zero lobby call timeout", key: "LOBBY_CALL_TIMEOUT", val: "0s"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("APP_ENV", EnvDev)
			t.Setenv(tc.key, tc.val)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%q", tc.key, tc.val)
			}
		})
	}
}

func TestLoad_ParsesCustomValues(t *testing.T) {
	t.Setenv("APP_ENV", EnvStage)
	t.Setenv("APP_LOG_LEVEL", "warn")
	t.Setenv("POLL_SLOTS", "fri, sat")
	t.Setenv("POLL_START_TIME", "20:30")
	t.Setenv("POLL_THRESHOLD", "2")
	t.Setenv("AFFILIATION_LABELS", "Red, ,Blue")
	t.Setenv("JOIN_TIMEOUT", "5m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.LogLevel != logging.LevelWarn {
		t.Fatalf("unexpected LogLevel: %s", cfg.LogLevel)
	}
	if len(cfg.PollSlotDays) != 2 || cfg.PollSlotDays[0] != time.Friday || cfg.PollSlotDays[1] != time.Saturday {
		t.Fatalf("unexpected PollSlotDays: %v", cfg.PollSlotDays)
	}
	if cfg.PollStartHour != 20 || cfg.PollStartMinute != 30 {
		t.Fatalf("unexpected start time %02d:%02d", cfg.PollStartHour, cfg.PollStartMinute)
	}
	if cfg.PollThreshold != 2 {
		t.Fatalf("unexpected PollThreshold: %d", cfg.PollThreshold)
	}
	if len(cfg.AffiliationLabels) != 2 || cfg.AffiliationLabels[1] != "Blue" {
		t.Fatalf("unexpected AffiliationLabels: %v", cfg.AffiliationLabels)
	}
	if cfg.JoinTimeout != 5*time.Minute {
		t.Fatalf("unexpected JoinTimeout: %s", cfg.JoinTimeout)
	}
}

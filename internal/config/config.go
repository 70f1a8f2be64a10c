package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/riskibarqy/scrim-scheduler/internal/platform/clock"
	"github.com/riskibarqy/scrim-scheduler/internal/platform/logging"
)

// Config stores runtime configuration for the service.
type Config struct {
	AppEnv         string        `env:"APP_ENV" envDefault:"dev"`
	ServiceName    string        `env:"APP_SERVICE_NAME" envDefault:"scrim-scheduler"`
	ServiceVersion string        `env:"APP_SERVICE_VERSION" envDefault:"dev"`
	HTTPAddr       string        `env:"APP_HTTP_ADDR" envDefault:":8080"`
	ReadTimeout    time.Duration `env:"APP_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout   time.Duration `env:"APP_WRITE_TIMEOUT" envDefault:"15s"`
	LogLevelName   string        `env:"APP_LOG_LEVEL" envDefault:"info"`
	InternalToken  string        `env:"INTERNAL_TOKEN"`

	DBDriver string `env:"DB_DRIVER" envDefault:"memory"`
	DBURL    string `env:"DB_URL"`

	ChannelDriver  string        `env:"CHANNEL_DRIVER" envDefault:"memory"`
	RelayBaseURL   string        `env:"RELAY_BASE_URL"`
	RelayToken     string        `env:"RELAY_TOKEN"`
	RelayChannelID string        `env:"RELAY_CHANNEL_ID"`
	RelayTimeout   time.Duration `env:"RELAY_TIMEOUT" envDefault:"5s"`

	LobbyDriver                string        `env:"LOBBY_DRIVER" envDefault:"memory"`
	LobbyAPIURL                string        `env:"LOBBY_API_URL"`
	LobbyTimeout               time.Duration `env:"LOBBY_TIMEOUT" envDefault:"10s"`
	LobbyCircuitEnabled        bool          `env:"LOBBY_CIRCUIT_ENABLED" envDefault:"true"`
	LobbyCircuitFailureCount   int           `env:"LOBBY_CIRCUIT_FAILURE_COUNT" envDefault:"5"`
	LobbyCircuitOpenTimeout    time.Duration `env:"LOBBY_CIRCUIT_OPEN_TIMEOUT" envDefault:"15s"`
	LobbyCircuitHalfOpenMaxReq int           `env:"LOBBY_CIRCUIT_HALF_OPEN_MAX_REQ" envDefault:"1"`

	PollSlotNames      []string `env:"POLL_SLOTS" envDefault:"monday,tuesday,wednesday,thursday" envSeparator:","`
	PollStartTime      string   `env:"POLL_START_TIME" envDefault:"18:00"`
	PollThreshold      int      `env:"POLL_THRESHOLD" envDefault:"8"`
	PollCadenceEnabled bool     `env:"POLL_CADENCE_ENABLED" envDefault:"true"`
	PollCadenceWeekday string   `env:"POLL_CADENCE_WEEKDAY" envDefault:"saturday"`
	PollCadenceTime    string   `env:"POLL_CADENCE_TIME" envDefault:"12:00"`
	PollMatchSpec      string   `env:"POLL_MATCH_SPEC" envDefault:"4-All"`
	PollRoundsPerMap   int      `env:"POLL_ROUNDS_PER_MAP" envDefault:"3"`

	ReminderLead     time.Duration `env:"REMINDER_LEAD" envDefault:"30m"`
	MinPerTeam       int           `env:"MIN_PER_TEAM" envDefault:"4"`
	ReadyTimeout     time.Duration `env:"READY_TIMEOUT" envDefault:"0s"`
	JoinTimeout      time.Duration `env:"JOIN_TIMEOUT" envDefault:"0s"`
	JoinMinHeadcount int           `env:"JOIN_MIN_HEADCOUNT" envDefault:"0"`
	LobbyCallTimeout time.Duration `env:"LOBBY_CALL_TIMEOUT" envDefault:"20s"`

	MapsCatalogPath       string        `env:"MAPS_CATALOG_PATH" envDefault:"configs/maps.json"`
	AffiliationLabels     []string      `env:"AFFILIATION_LABELS" envDefault:"A-Team,B-Team,C-Team" envSeparator:","`
	AffiliationMainSuffix string        `env:"AFFILIATION_MAIN_SUFFIX" envDefault:"-Main"`
	IdentityRolePrefix    string        `env:"IDENTITY_ROLE_PREFIX" envDefault:"id-"`
	IdentityCacheTTL      time.Duration `env:"IDENTITY_CACHE_TTL" envDefault:"5m"`
	WorkerPoolSize        int           `env:"WORKER_POOL_SIZE" envDefault:"16"`

	UptraceEnabled     bool   `env:"UPTRACE_ENABLED" envDefault:"false"`
	UptraceDSN         string `env:"UPTRACE_DSN"`
	UptraceLogsEnabled bool   `env:"UPTRACE_LOGS_ENABLED" envDefault:"true"`
	OTLPHeaders        string `env:"OTEL_EXPORTER_OTLP_HEADERS"`

	PyroscopeEnabled       bool          `env:"PYROSCOPE_ENABLED" envDefault:"false"`
	PyroscopeServerAddress string        `env:"PYROSCOPE_SERVER_ADDRESS"`
	PyroscopeAppName       string        `env:"PYROSCOPE_APP_NAME"`
	PyroscopeAuthToken     string        `env:"PYROSCOPE_AUTH_TOKEN"`
	PyroscopeUploadRate    time.Duration `env:"PYROSCOPE_UPLOAD_RATE" envDefault:"15s"`

	// Derived during Load; untagged so the env parser leaves them alone.
	LogLevel        logging.Level
	PollSlotDays    []time.Weekday
	PollStartHour   int
	PollStartMinute int
	PollCadence     clock.Weekly
}

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverRelay    = "relay"
	DriverHTTP     = "http"
)

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	appEnv, err := parseAppEnv(cfg.AppEnv)
	if err != nil {
		return Config{}, err
	}
	cfg.AppEnv = appEnv
	cfg.LogLevel = parseLogLevel(cfg.LogLevelName)

	if cfg.AppEnv == EnvProd && strings.TrimSpace(cfg.InternalToken) == "" {
		return Config{}, fmt.Errorf("INTERNAL_TOKEN is required when APP_ENV=prod")
	}
	if cfg.ReadTimeout <= 0 {
		return Config{}, fmt.Errorf("APP_READ_TIMEOUT must be > 0")
	}
	if cfg.WriteTimeout <= 0 {
		return Config{}, fmt.Errorf("APP_WRITE_TIMEOUT must be > 0")
	}

	if err := validateStorage(&cfg); err != nil {
		return Config{}, err
	}
	if err := validateChannel(&cfg); err != nil {
		return Config{}, err
	}
	if err := validateLobby(&cfg); err != nil {
		return Config{}, err
	}
	if err := validatePoll(&cfg); err != nil {
		return Config{}, err
	}
	if err := validateSession(&cfg); err != nil {
		return Config{}, err
	}

	if strings.TrimSpace(cfg.UptraceDSN) == "" {
		cfg.UptraceDSN = parseUptraceDSNFromOTLPHeaders(cfg.OTLPHeaders)
	}
	if cfg.UptraceEnabled && cfg.UptraceDSN == "" {
		return Config{}, fmt.Errorf("UPTRACE_DSN is required when UPTRACE_ENABLED=true")
	}
	if cfg.PyroscopeEnabled && strings.TrimSpace(cfg.PyroscopeServerAddress) == "" {
		return Config{}, fmt.Errorf("PYROSCOPE_SERVER_ADDRESS is required when PYROSCOPE_ENABLED=true")
	}
	if strings.TrimSpace(cfg.PyroscopeAppName) == "" {
		cfg.PyroscopeAppName = cfg.ServiceName
	}

	return cfg, nil
}

func validateStorage(cfg *Config) error {
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	switch cfg.DBDriver {
	case DriverMemory:
		return nil
	case DriverPostgres, DriverSQLite:
		if strings.TrimSpace(cfg.DBURL) == "" {
			return fmt.Errorf("DB_URL is required when DB_DRIVER=%s", cfg.DBDriver)
		}
		return nil
	default:
		return fmt.Errorf("invalid DB_DRIVER %q: valid values are %s, %s, %s", cfg.DBDriver, DriverMemory, DriverPostgres, DriverSQLite)
	}
}

func validateChannel(cfg *Config) error {
	cfg.ChannelDriver = strings.ToLower(strings.TrimSpace(cfg.ChannelDriver))
	switch cfg.ChannelDriver {
	case DriverMemory:
		return nil
	case DriverRelay:
		if strings.TrimSpace(cfg.RelayBaseURL) == "" {
			return fmt.Errorf("RELAY_BASE_URL is required when CHANNEL_DRIVER=relay")
		}
		if strings.TrimSpace(cfg.RelayChannelID) == "" {
			return fmt.Errorf("RELAY_CHANNEL_ID is required when CHANNEL_DRIVER=relay")
		}
		if cfg.RelayTimeout <= 0 {
			return fmt.Errorf("RELAY_TIMEOUT must be > 0")
		}
		return nil
	default:
		return fmt.Errorf("invalid CHANNEL_DRIVER %q: valid values are %s, %s", cfg.ChannelDriver, DriverMemory, DriverRelay)
	}
}

func validateLobby(cfg *Config) error {
	cfg.LobbyDriver = strings.ToLower(strings.TrimSpace(cfg.LobbyDriver))
	switch cfg.LobbyDriver {
	case DriverMemory:
		return nil
	case DriverHTTP:
	default:
		return fmt.Errorf("invalid LOBBY_DRIVER %q: valid values are %s, %s", cfg.LobbyDriver, DriverMemory, DriverHTTP)
	}

	if strings.TrimSpace(cfg.LobbyAPIURL) == "" {
		return fmt.Errorf("LOBBY_API_URL is required when LOBBY_DRIVER=http")
	}
	if cfg.LobbyTimeout <= 0 {
		return fmt.Errorf("LOBBY_TIMEOUT must be > 0")
	}
	if cfg.LobbyCircuitFailureCount < 1 {
		return fmt.Errorf("LOBBY_CIRCUIT_FAILURE_COUNT must be >= 1")
	}
	if cfg.LobbyCircuitOpenTimeout <= 0 {
		return fmt.Errorf("LOBBY_CIRCUIT_OPEN_TIMEOUT must be > 0")
	}
	if cfg.LobbyCircuitHalfOpenMaxReq < 1 {
		return fmt.Errorf("LOBBY_CIRCUIT_HALF_OPEN_MAX_REQ must be >= 1")
	}
	return nil
}

func validatePoll(cfg *Config) error {
	if len(cfg.PollSlotNames) == 0 {
		return fmt.Errorf("POLL_SLOTS must list at least one weekday")
	}
	if len(cfg.PollSlotNames) > 10 {
		return fmt.Errorf("POLL_SLOTS supports at most 10 weekdays")
	}

	seen := make(map[time.Weekday]struct{}, len(cfg.PollSlotNames))
	cfg.PollSlotDays = make([]time.Weekday, 0, len(cfg.PollSlotNames))
	for _, name := range cfg.PollSlotNames {
		day, err := clock.ParseWeekday(name)
		if err != nil {
			return fmt.Errorf("parse POLL_SLOTS: %w", err)
		}
		if _, dup := seen[day]; dup {
			return fmt.Errorf("POLL_SLOTS lists %s twice", day)
		}
		seen[day] = struct{}{}
		cfg.PollSlotDays = append(cfg.PollSlotDays, day)
	}

	hour, minute, err := clock.ParseTimeOfDay(cfg.PollStartTime)
	if err != nil {
		return fmt.Errorf("parse POLL_START_TIME: %w", err)
	}
	cfg.PollStartHour, cfg.PollStartMinute = hour, minute

	if cfg.PollThreshold < 1 {
		return fmt.Errorf("POLL_THRESHOLD must be >= 1")
	}
	if cfg.PollRoundsPerMap < 1 {
		return fmt.Errorf("POLL_ROUNDS_PER_MAP must be >= 1")
	}
	if strings.TrimSpace(cfg.PollMatchSpec) == "" {
		return fmt.Errorf("POLL_MATCH_SPEC is required")
	}

	weekday, err := clock.ParseWeekday(cfg.PollCadenceWeekday)
	if err != nil {
		return fmt.Errorf("parse POLL_CADENCE_WEEKDAY: %w", err)
	}
	cadenceHour, cadenceMinute, err := clock.ParseTimeOfDay(cfg.PollCadenceTime)
	if err != nil {
		return fmt.Errorf("parse POLL_CADENCE_TIME: %w", err)
	}
	cfg.PollCadence = clock.Weekly{Weekday: weekday, Hour: cadenceHour, Minute: cadenceMinute}
	return nil
}

func validateSession(cfg *Config) error {
	if cfg.MinPerTeam < 1 {
		return fmt.Errorf("MIN_PER_TEAM must be >= 1")
	}
	if cfg.ReminderLead < 0 {
		return fmt.Errorf("REMINDER_LEAD must be >= 0")
	}
	if cfg.ReadyTimeout < 0 {
		return fmt.Errorf("READY_TIMEOUT must be >= 0")
	}
	if cfg.JoinTimeout < 0 {
		return fmt.Errorf("JOIN_TIMEOUT must be >= 0")
	}
	if cfg.JoinMinHeadcount < 0 {
		return fmt.Errorf("JOIN_MIN_HEADCOUNT must be >= 0")
	}
	if cfg.LobbyCallTimeout <= 0 {
		return fmt.Errorf("LOBBY_CALL_TIMEOUT must be > 0")
	}
	if cfg.WorkerPoolSize < 1 {
		return fmt.Errorf("WORKER_POOL_SIZE must be >= 1")
	}
	if cfg.IdentityCacheTTL < 0 {
		return fmt.Errorf("IDENTITY_CACHE_TTL must be >= 0")
	}
	if strings.TrimSpace(cfg.IdentityRolePrefix) == "" {
		return fmt.Errorf("IDENTITY_ROLE_PREFIX is required")
	}

	labels := make([]string, 0, len(cfg.AffiliationLabels))
	for _, label := range cfg.AffiliationLabels {
		if label = strings.TrimSpace(label); label != "" {
			labels = append(labels, label)
		}
	}
	cfg.AffiliationLabels = labels
	return nil
}

func parseLogLevel(v string) logging.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return logging.LevelDebug
	case "warn", "warning":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func parseUptraceDSNFromOTLPHeaders(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	for _, item := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(item), "=", 2)
		if len(parts) != 2 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(parts[0]), "uptrace-dsn") {
			return strings.Trim(strings.TrimSpace(parts[1]), "\"'")
		}
	}

	return ""
}

func parseAppEnv(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case EnvDev, EnvStage, EnvProd:
		return value, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}

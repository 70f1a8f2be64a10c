package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/panjf2000/ants/v2"
	"github.com/riskibarqy/scrim-scheduler/external/lobbyapi"
	"github.com/riskibarqy/scrim-scheduler/external/relay"
	"github.com/riskibarqy/scrim-scheduler/internal/config"
	"github.com/riskibarqy/scrim-scheduler/internal/domain/channel"
	"github.com/riskibarqy/scrim-scheduler/internal/domain/identity"
	"github.com/riskibarqy/scrim-scheduler/internal/domain/lobby"
	"github.com/riskibarqy/scrim-scheduler/internal/domain/round"
	"github.com/riskibarqy/scrim-scheduler/internal/domain/session"
	chmemory "github.com/riskibarqy/scrim-scheduler/internal/infrastructure/channel/memory"
	lobbymemory "github.com/riskibarqy/scrim-scheduler/internal/infrastructure/lobby/memory"
	"github.com/riskibarqy/scrim-scheduler/internal/infrastructure/repository/cache"
	repomemory "github.com/riskibarqy/scrim-scheduler/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/scrim-scheduler/internal/infrastructure/repository/sqlstore"
	"github.com/riskibarqy/scrim-scheduler/internal/infrastructure/roster"
	"github.com/riskibarqy/scrim-scheduler/internal/interfaces/httpapi"
	basecache "github.com/riskibarqy/scrim-scheduler/internal/platform/cache"
	"github.com/riskibarqy/scrim-scheduler/internal/platform/clock"
	idgen "github.com/riskibarqy/scrim-scheduler/internal/platform/id"
	"github.com/riskibarqy/scrim-scheduler/internal/platform/logging"
	"github.com/riskibarqy/scrim-scheduler/internal/platform/resilience"
	"github.com/riskibarqy/scrim-scheduler/internal/usecase"
	"golang.org/x/sync/errgroup"
)

const (
	journalCacheTTL   = time.Minute
	lobbyMaxRetries   = 2
	rosterConcurrency = 8
	shutdownTimeout   = 10 * time.Second
)

// App owns the wired service: the orchestrator loop, the poll cadence and the
// internal HTTP server.
type App struct {
	cfg          config.Config
	logger       *logging.Logger
	clock        clock.Clock
	orchestrator *usecase.Orchestrator
	server       *http.Server
	db           *sqlx.DB
	pool         *ants.Pool
}

// New builds every dependency selected by cfg. Close must be called once the
// app is no longer needed, whether or not Run was called.
func New(ctx context.Context, cfg config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.HTTPAddr == "" {
		return nil, fmt.Errorf("http server addr cannot be empty")
	}

	a := &App{cfg: cfg, logger: logger, clock: clock.Real{}}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	catalog, err := round.LoadCatalog(cfg.MapsCatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load maps catalog: %w", err)
	}

	journal, err := a.buildJournal(ctx)
	if err != nil {
		return nil, err
	}

	hub := chmemory.NewHub()
	ch, calendar, roles, err := a.buildChannel(hub)
	if err != nil {
		return nil, err
	}

	lobbies, err := a.buildLobbies()
	if err != nil {
		return nil, err
	}

	a.pool, err = ants.NewPool(cfg.WorkerPoolSize, ants.WithNonblocking(true))
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	resolver := roster.NewResolver(roles, roster.RoleParser{
		Labels:     cfg.AffiliationLabels,
		MainSuffix: cfg.AffiliationMainSuffix,
		IDPrefix:   cfg.IdentityRolePrefix,
	}, cfg.IdentityCacheTTL, rosterConcurrency)

	a.orchestrator, err = usecase.NewOrchestrator(usecase.OrchestratorDeps{
		Channel:  ch,
		Calendar: calendar,
		Lobbies:  lobbies,
		Roster:   resolver,
		Journal:  journal,
		Catalog:  catalog,
		Clock:    a.clock,
		IDs:      idgen.NewUUIDGenerator(),
		Pool:     a.pool,
		Logger:   logger.Named("orchestrator"),
	}, usecase.OrchestratorConfig{
		SlotDays:         cfg.PollSlotDays,
		StartHour:        cfg.PollStartHour,
		StartMinute:      cfg.PollStartMinute,
		Threshold:        cfg.PollThreshold,
		ReminderLead:     cfg.ReminderLead,
		MinPerTeam:       cfg.MinPerTeam,
		PollMatchSpec:    cfg.PollMatchSpec,
		PollRoundsPerMap: cfg.PollRoundsPerMap,
		ReadyTimeout:     cfg.ReadyTimeout,
		JoinTimeout:      cfg.JoinTimeout,
		JoinMinHeadcount: cfg.JoinMinHeadcount,
		LobbyCallTimeout: cfg.LobbyCallTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("build orchestrator: %w", err)
	}

	handler := httpapi.NewHandler(a.orchestrator, hub, logger.Named("httpapi"))
	a.server = &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewRouter(handler, logger, cfg.InternalToken),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	logger.InfoContext(ctx, "app wired",
		"db_driver", cfg.DBDriver,
		"channel_driver", cfg.ChannelDriver,
		"lobby_driver", cfg.LobbyDriver,
		"maps_categories", len(catalog.Categories()),
		"poll_cadence_enabled", cfg.PollCadenceEnabled,
	)
	ok = true
	return a, nil
}

// Handler exposes the HTTP router, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Run serves until ctx is cancelled or one of the components fails, then shuts
// the HTTP server down gracefully.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.orchestrator.Run(gctx)
	})

	if a.cfg.PollCadenceEnabled {
		g.Go(func() error {
			a.logger.InfoContext(gctx, "poll cadence started",
				"weekday", a.cfg.PollCadence.Weekday.String(),
				"next_run", a.cfg.PollCadence.Next(a.clock.Now()).Format(time.RFC3339),
			)
			clock.RunWeekly(gctx, a.clock, a.cfg.PollCadence, a.openScheduledPoll)
			return nil
		})
	}

	g.Go(func() error {
		a.logger.InfoContext(gctx, "http server starting", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		a.logger.Info("http server stopped")
		return nil
	})

	return g.Wait()
}

func (a *App) openScheduledPoll(ctx context.Context) {
	view, err := a.orchestrator.OpenPoll(ctx)
	if err != nil {
		a.logger.WarnContext(ctx, "scheduled poll open failed", "error", err)
		return
	}
	a.logger.InfoContext(ctx, "scheduled poll opened", "poll_id", view.ID, "slots", len(view.Slots))
}

// Close releases the worker pool and the database handle.
func (a *App) Close() error {
	if a.pool != nil {
		a.pool.Release()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			return fmt.Errorf("close db: %w", err)
		}
	}
	return nil
}

func (a *App) buildJournal(ctx context.Context) (session.Repository, error) {
	switch a.cfg.DBDriver {
	case config.DriverPostgres, config.DriverSQLite:
		db, err := openDB(ctx, a.cfg.DBDriver, a.cfg.DBURL)
		if err != nil {
			return nil, err
		}
		a.db = db
		return cache.NewSessionEventRepository(
			sqlstore.NewSessionEventRepository(db),
			basecache.NewStore[[]session.Event](journalCacheTTL),
		), nil
	default:
		return repomemory.NewSessionEventRepository(), nil
	}
}

func (a *App) buildChannel(hub *chmemory.Hub) (channel.Channel, channel.EventScheduler, identity.RoleSource, error) {
	if a.cfg.ChannelDriver == config.DriverRelay {
		client, err := relay.NewClient(relay.ClientConfig{
			BaseURL:   a.cfg.RelayBaseURL,
			Token:     a.cfg.RelayToken,
			ChannelID: a.cfg.RelayChannelID,
			Timeout:   a.cfg.RelayTimeout,
			Logger:    a.logger,
			Hub:       hub,
		})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("build relay client: %w", err)
		}
		return client, client, client, nil
	}

	// Without a relay nobody carries role data, so every reactor resolves as
	// unaffiliated with no external id.
	return chmemory.NewChannel(hub), chmemory.NewCalendar(), roster.NewStaticDirectory(nil), nil
}

func (a *App) buildLobbies() (lobby.Service, error) {
	if a.cfg.LobbyDriver == config.DriverHTTP {
		client, err := lobbyapi.NewClient(lobbyapi.ClientConfig{
			BaseURL:    a.cfg.LobbyAPIURL,
			Timeout:    a.cfg.LobbyTimeout,
			MaxRetries: lobbyMaxRetries,
			Logger:     a.logger,
			CircuitBreaker: resilience.CircuitBreakerConfig{
				Enabled:          a.cfg.LobbyCircuitEnabled,
				FailureThreshold: a.cfg.LobbyCircuitFailureCount,
				OpenTimeout:      a.cfg.LobbyCircuitOpenTimeout,
				HalfOpenMaxReq:   a.cfg.LobbyCircuitHalfOpenMaxReq,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("build lobby client: %w", err)
		}
		return client, nil
	}
	return lobbymemory.NewService(), nil
}

// Package app wires the punishment engine together for the standalone binary.
package app

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"punish-engine/api"
	"punish-engine/ledger"
	"punish-engine/model"
	"punish-engine/notifier"
	"punish-engine/scanner"
	"punish-engine/tasks"
	punishments_db "punish-engine/utils/database/punishments"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

type App struct {
	cfg *model.Config
	log logrus.FieldLogger

	store    *punishments_db.Store
	ledger   *ledger.Ledger
	facade   *api.Facade
	registry *prometheus.Registry

	sweeper       *scanner.PunishmentSweeper
	session       *discordgo.Session
	audit         *notifier.AuditNotifier
	stats         *tasks.StatsReporter
	scheduler     *Scheduler
	metricsServer *http.Server
}

// New opens the store and builds the ledger and facade. Background work
// starts in Run.
func New(cfg *model.Config, log logrus.FieldLogger) (*App, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), os.ModePerm); err != nil {
		return nil, errors.Wrap(err, "failed to create data directory")
	}
	store, err := punishments_db.Open(cfg.DatabasePath, cfg.StoreTimeout)
	if err != nil {
		return nil, errors.Wrap(err, "error initializing punishment database")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	l := ledger.New(store, nil, log.WithField("pkg", "ledger"), ledger.Options{
		LockStripes: cfg.LockStripes,
		Escalation:  cfg.Escalation,
		Metrics:     ledger.NewMetrics(registry),
		// Stored timestamps have millisecond precision.
		Clock: func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	})

	facade := api.NewFacade(api.FailPolicy{
		BanFailOpen:    cfg.BanFailOpen,
		MuteFailClosed: cfg.MuteFailClosed,
	}, store, log.WithField("pkg", "api"))

	a := &App{
		cfg:      cfg,
		log:      log,
		store:    store,
		ledger:   l,
		facade:   facade,
		registry: registry,
	}

	if cfg.Discord.BotToken != "" {
		if err := a.initDiscord(); err != nil {
			store.Close()
			return nil, err
		}
	} else {
		log.Info("PUNISH_DISCORD_BOT_TOKEN not set, Discord notifications are disabled")
	}

	a.scheduler = NewScheduler(a)
	return a, nil
}

func (a *App) initDiscord() error {
	dg, err := discordgo.New("Bot " + a.cfg.Discord.BotToken)
	if err != nil {
		return errors.Wrap(err, "error creating Discord session")
	}
	dg.Identify.Intents = discordgo.IntentsGuilds
	dg.StateEnabled = false
	a.session = dg

	if a.cfg.Discord.AuditChannelID != "" {
		a.audit = notifier.NewAuditNotifier(dg, a.cfg.Discord.AuditChannelID, a.log)
		a.audit.Subscribe(a.ledger.Bus())
	}
	if a.cfg.Discord.StatsChannelID != "" {
		a.stats = tasks.NewStatsReporter(dg, a.store, a.cfg.Discord.StatsChannelID, a.cfg.Discord.StatsWindow, a.log)
	}
	return nil
}

// Facade is the entry point for callers embedding the engine.
func (a *App) Facade() *api.Facade {
	return a.facade
}

func (a *App) GetConfig() *model.Config {
	return a.cfg
}

func (a *App) GetStatsReporter() *tasks.StatsReporter {
	return a.stats
}

func (a *App) GetLedger() *ledger.Ledger {
	return a.ledger
}

func (a *App) GetLogger() logrus.FieldLogger {
	return a.log
}

// Start attaches the ledger and starts background work.
func (a *App) Start() error {
	if a.session != nil {
		if err := a.session.Open(); err != nil {
			return errors.Wrap(err, "error opening Discord connection")
		}
	}

	a.facade.Attach(a.ledger)
	a.sweeper = scanner.StartPunishmentSweeper(a.ledger, a.cfg.SweepInterval, a.log)
	a.scheduler.Start()

	if a.cfg.MetricsAddr != "" {
		a.metricsServer = &http.Server{
			Addr:              a.cfg.MetricsAddr,
			Handler:           a.metricsHandler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.WithError(err).Error("Metrics server stopped")
			}
		}()
		a.log.WithField("addr", a.cfg.MetricsAddr).Info("Serving metrics")
	}
	return nil
}

func (a *App) metricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	return mux
}

// Close stops background work, detaches the ledger and closes the store.
// Every step runs even if an earlier one fails.
func (a *App) Close() {
	a.log.Info("Gracefully shutting down.")

	if a.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			a.log.WithError(err).Warn("Failed to stop metrics server")
		}
		cancel()
	}
	a.scheduler.Stop()
	if a.sweeper != nil {
		a.sweeper.Stop()
	}
	a.facade.Detach()
	if a.audit != nil {
		a.audit.Close()
	}
	if a.session != nil {
		if err := a.session.Close(); err != nil {
			a.log.WithError(err).Warn("Failed to close Discord session")
		}
	}
	if err := a.store.Close(); err != nil {
		a.log.WithError(err).Warn("Failed to close punishment database")
	}
}

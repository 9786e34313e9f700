package app

import (
	"context"
	"sync"
	"time"

	"punish-engine/ledger"
	"punish-engine/model"
	"punish-engine/tasks"

	"github.com/sirupsen/logrus"
)

const (
	statsUpdateInterval = 1 * time.Hour
	statusLogInterval   = 30 * time.Minute
)

// EngineProvider defines the methods the scheduler needs from the App.
type EngineProvider interface {
	GetConfig() *model.Config
	GetStatsReporter() *tasks.StatsReporter
	GetLedger() *ledger.Ledger
	GetLogger() logrus.FieldLogger
}

// Scheduler manages all scheduled tasks.
type Scheduler struct {
	engine EngineProvider
	log    logrus.FieldLogger
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewScheduler creates a new scheduler.
func NewScheduler(engine EngineProvider) *Scheduler {
	return &Scheduler{
		engine: engine,
		log:    engine.GetLogger().WithField("pkg", "scheduler"),
		done:   make(chan struct{}),
	}
}

// Start begins all scheduled tasks.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.startScheduledTasks()
}

// Stop terminates all scheduled tasks gracefully.
func (s *Scheduler) Stop() {
	s.once.Do(func() {
		s.log.Info("Stopping scheduler...")
		close(s.done)
	})
	s.wg.Wait()
}

func (s *Scheduler) startScheduledTasks() {
	defer s.wg.Done()
	statsTicker := time.NewTicker(statsUpdateInterval)
	statusTicker := time.NewTicker(statusLogInterval)
	defer statsTicker.Stop()
	defer statusTicker.Stop()

	s.updatePunishmentStats()
	s.logStatus()

	for {
		select {
		case <-statsTicker.C:
			s.updatePunishmentStats()
		case <-statusTicker.C:
			s.logStatus()
		case <-s.done:
			return
		}
	}
}

func (s *Scheduler) updatePunishmentStats() {
	reporter := s.engine.GetStatsReporter()
	if reporter == nil {
		return
	}
	s.log.Debug("Updating punishment stats...")
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	// Failures are logged by the reporter.
	_ = reporter.UpdatePunishmentStats(ctx)
}

func (s *Scheduler) logStatus() {
	status := CollectStatus(s.engine.GetLedger())
	s.log.WithFields(status.Fields()).Info("Engine status")
}

package scanner

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultSweepInterval = 5 * time.Minute

// Evictor drops cached targets whose punishments have all lapsed.
type Evictor interface {
	EvictInactive() int
}

// PunishmentSweeper periodically evicts expired punishments from the cache.
// Expiry itself is computed at read time; sweeping only bounds memory.
type PunishmentSweeper struct {
	evictor  Evictor
	interval time.Duration
	log      logrus.FieldLogger
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// StartPunishmentSweeper starts a background goroutine that sweeps every interval.
func StartPunishmentSweeper(evictor Evictor, interval time.Duration, log logrus.FieldLogger) *PunishmentSweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	s := &PunishmentSweeper{
		evictor:  evictor,
		interval: interval,
		log:      log.WithField("pkg", "scanner"),
		done:     make(chan struct{}),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

func (s *PunishmentSweeper) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-s.done:
			return
		}
	}
}

// Sweep runs one eviction pass and returns the number of targets dropped.
func (s *PunishmentSweeper) Sweep() int {
	evicted := s.evictor.EvictInactive()
	if evicted > 0 {
		s.log.WithField("evicted", evicted).Debug("Evicted targets without active punishments")
	}
	return evicted
}

// Stop terminates the sweeper and waits for it to exit.
func (s *PunishmentSweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
	s.wg.Wait()
}

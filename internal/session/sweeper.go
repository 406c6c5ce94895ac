package session

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"courier-dashboard/internal/kv"
)

const defaultSweepInterval = 10 * time.Minute

// SweeperConfig configures a Sweeper.
type SweeperConfig struct {
	Interval time.Duration
	Now      func() time.Time
	Logger   logrus.FieldLogger
}

// Sweeper periodically removes expired entries from backends that do not expire
// values on their own. Load still checks expiry, so a sweep never changes which
// sessions are live.
type Sweeper struct {
	cfg    SweeperConfig
	purger kv.Purger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSweeper(purger kv.Purger, cfg SweeperConfig) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultSweepInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return &Sweeper{cfg: cfg, purger: purger}
}

// Start runs a sweep immediately and then on every interval until ctx ends or
// Shutdown is called.
func (s *Sweeper) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()

		s.Sweep(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep(ctx)
			}
		}
	}()
	s.cfg.Logger.Infof("session sweeper started, interval %s", s.cfg.Interval)
}

// Sweep runs a single purge.
func (s *Sweeper) Sweep(ctx context.Context) int64 {
	n, err := s.purger.PurgeExpired(ctx, s.cfg.Now())
	if err != nil {
		if ctx.Err() == nil {
			s.cfg.Logger.WithError(err).Warn("purge expired sessions")
		}
		return 0
	}
	if n > 0 {
		s.cfg.Logger.WithField("entries", n).Debug("purged expired session entries")
	}
	return n
}

func (s *Sweeper) Shutdown() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.cfg.Logger.Info("session sweeper stopped")
}

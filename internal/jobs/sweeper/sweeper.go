package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/yungbote/mes-backend/internal/pkg/logger"
)

// Purger removes unbound trace records older than the expiry window.
type Purger interface {
	PurgeStaleUnbound(ctx context.Context, expiryMinutes, batch int) (int64, error)
}

type Config struct {
	Interval      time.Duration
	ExpiryMinutes int
	Batch         int
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Minute
	}
	if c.ExpiryMinutes <= 0 {
		c.ExpiryMinutes = 24 * 60
	}
	if c.Batch <= 0 {
		c.Batch = 500
	}
	return c
}

type Sweeper struct {
	log    *logger.Logger
	purger Purger
	cfg    Config
}

func New(baseLog *logger.Logger, purger Purger, cfg Config) *Sweeper {
	if baseLog == nil {
		baseLog = logger.NewNop()
	}
	return &Sweeper{
		log:    baseLog.With("component", "TraceSweeper"),
		purger: purger,
		cfg:    cfg.withDefaults(),
	}
}

// RunOnce drains every stale batch. A short batch ends the pass.
func (s *Sweeper) RunOnce(ctx context.Context) (purged int64, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Sweep panic", "panic", r)
			err = fmt.Errorf("sweep panic: %v", r)
		}
	}()
	for {
		if err := ctx.Err(); err != nil {
			return purged, err
		}
		n, err := s.purger.PurgeStaleUnbound(ctx, s.cfg.ExpiryMinutes, s.cfg.Batch)
		purged += n
		if err != nil {
			return purged, err
		}
		if n < int64(s.cfg.Batch) {
			return purged, nil
		}
	}
}

// Run sweeps on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	s.log.Info("Sweeper started",
		"interval", s.cfg.Interval.String(),
		"expiry_minutes", s.cfg.ExpiryMinutes,
		"batch", s.cfg.Batch,
	)
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := s.RunOnce(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.log.Warn("Sweep failed", "error", err, "purged", n)
				continue
			}
			if n > 0 {
				s.log.Info("Sweep purged unbound trace records", "purged", n)
			}
		}
	}
}

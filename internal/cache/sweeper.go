package cache

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"tiercache/internal/common/errors"
)

// sweeper runs the expired-entry sweep on a fixed interval. It performs no
// capacity eviction; that happens only on the insert path.
type sweeper struct {
	cron *cron.Cron
}

func newSweeper(interval time.Duration, job func()) (*sweeper, error) {
	if interval < time.Second {
		return nil, errors.ConfigError(fmt.Sprintf("cleanup interval must be at least 1s, got %s", interval))
	}

	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", interval), job); err != nil {
		return nil, errors.InternalError("failed to schedule cleanup sweep", err)
	}
	return &sweeper{cron: c}, nil
}

func (s *sweeper) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for a running sweep to finish.
func (s *sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

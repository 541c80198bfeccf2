// Package cleanup runs the periodic housekeeping jobs: session history
// eviction and rate-limiter pruning.
package cleanup

import (
	"github.com/robfig/cron/v3"

	"github.com/coppice-labs/switchboard/internal/auth"
	"github.com/coppice-labs/switchboard/internal/logger"
	"github.com/coppice-labs/switchboard/internal/session"
)

// DefaultSchedule runs housekeeping every five minutes.
const DefaultSchedule = "*/5 * * * *"

// Cleaner schedules the background housekeeping jobs.
type Cleaner struct {
	cron       *cron.Cron
	manager    *session.Manager
	limiter    *auth.RateLimiter
	maxHistory int
}

// New creates a cleaner over the given manager and limiter.
func New(manager *session.Manager, limiter *auth.RateLimiter, maxHistory int) *Cleaner {
	return &Cleaner{
		cron:       cron.New(),
		manager:    manager,
		limiter:    limiter,
		maxHistory: maxHistory,
	}
}

// Start schedules the jobs and begins running them. The schedule is a
// standard 5-field cron expression; an empty string uses DefaultSchedule.
func (c *Cleaner) Start(schedule string) error {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if _, err := c.cron.AddFunc(schedule, c.Run); err != nil {
		return err
	}
	c.cron.Start()
	logger.Info("Cleanup scheduled (%s)", schedule)
	return nil
}

// Stop halts the scheduler. Jobs already running finish.
func (c *Cleaner) Stop() {
	ctx := c.cron.Stop()
	<-ctx.Done()
	logger.Info("Cleanup stopped")
}

// Run executes one housekeeping pass.
func (c *Cleaner) Run() {
	if evicted := c.manager.Cleanup(c.maxHistory); evicted > 0 {
		logger.Info("Evicted %d terminal sessions", evicted)
	}
	if pruned := c.limiter.Prune(); pruned > 0 {
		logger.Info("Pruned %d idle rate-limit entries", pruned)
	}
}

package session

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Janitor periodically purges expired sessions from a Store.
type Janitor struct {
	store  Store
	cron   *cron.Cron
	logger *zap.Logger
}

// NewJanitor schedules a purge of store on the given cron spec, for example
// "@every 1h". Call Start to begin running.
func NewJanitor(store Store, spec string, logger *zap.Logger) (*Janitor, error) {
	j := &Janitor{
		store:  store,
		cron:   cron.New(cron.WithLocation(time.UTC)),
		logger: logger,
	}

	if _, err := j.cron.AddFunc(spec, j.Sweep); err != nil {
		return nil, fmt.Errorf("scheduling session cleanup %q: %w", spec, err)
	}
	return j, nil
}

// Start runs the schedule in the background.
func (j *Janitor) Start() {
	j.logger.Info("starting session janitor")
	j.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
	j.logger.Info("session janitor stopped")
}

// Sweep deletes expired sessions once.
func (j *Janitor) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := j.store.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("purging expired sessions", zap.Error(err))
		return
	}
	if n > 0 {
		j.logger.Info("purged expired sessions", zap.Int64("count", n))
	}
}

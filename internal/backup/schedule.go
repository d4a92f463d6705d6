package backup

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// Schedule runs Backup of table on a standard cron spec (5 fields or
// descriptors such as "@daily") until ctx is done, pruning to keep artifacts
// after each success. A run that is still going when the next one is due is
// skipped. Failures are logged and do not stop the schedule.
func (c *Coordinator) Schedule(ctx context.Context, spec, table string, keep int) error {
	logger := cron.PrintfLogger(log.WithField("engine", c.Name))
	sched := cron.New(cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))
	_, err := sched.AddFunc(spec, func() {
		if ctx.Err() != nil {
			return
		}
		a, err := c.Backup(ctx, table)
		if err != nil {
			log.WithFields(log.Fields{"engine": c.Name, "table": table}).WithError(err).Error("scheduled backup failed")
			return
		}
		removed, err := Prune(c.Dir, c.Name, table, keep)
		if err != nil {
			log.WithField("engine", c.Name).WithError(err).Warn("pruning old backups failed")
		}
		log.WithFields(log.Fields{"engine": c.Name, "artifact": a.Path, "pruned": len(removed)}).Info("scheduled backup done")
	})
	if err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	sched.Start()
	log.WithFields(log.Fields{"engine": c.Name, "table": table, "cron": spec, "keep": keep}).Info("backup schedule started")
	<-ctx.Done()
	<-sched.Stop().Done()
	return nil
}

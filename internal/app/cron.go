package app

import (
	"context"
	"time"

	"github.com/wikiquiz/server/internal/config"
	"github.com/wikiquiz/server/internal/modules/quiz"
	pkgcron "github.com/wikiquiz/server/internal/pkg/cron"
	"go.uber.org/zap"
)

const (
	purgeJobName     = "purge_expired_quizzes"
	purgeJobInterval = time.Hour
)

// registerCronJobs registers the background jobs enabled by cfg.
func registerCronJobs(sched *pkgcron.Scheduler, svc *quiz.Service, cfg *config.AppConfig, logger *zap.Logger) {
	if cfg.RetentionDays <= 0 {
		return
	}
	maxAge := time.Duration(cfg.RetentionDays) * 24 * time.Hour
	cronLogger := logger.Named("CronService")

	sched.Register(pkgcron.Job{
		Name:        purgeJobName,
		Description: "Delete quizzes older than the retention window",
		Interval:    purgeJobInterval,
		Fn: func(ctx context.Context) error {
			n, err := svc.PurgeOlderThan(ctx, maxAge)
			if err != nil {
				cronLogger.Warn("purge expired quizzes failed", zap.Error(err))
				return err
			}
			cronLogger.Info("purge expired quizzes finished", zap.Int("deleted", n))
			return nil
		},
	})
}

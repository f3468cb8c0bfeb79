// Package scheduler runs the periodic housekeeping jobs: purging expired
// notifications and sweeping video sessions that never received an end.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/Rohith-Das/Med360-sub001/databases"
	"github.com/Rohith-Das/Med360-sub001/models"
	"github.com/Rohith-Das/Med360-sub001/notifications"
)

// staleSessionCutoff bounds how long a session may sit waiting or active
// before the sweep declares it abandoned.
const staleSessionCutoff = 4 * time.Hour

// Scheduler handles periodic background jobs
type Scheduler struct {
	cron       *cron.Cron
	Dispatcher *notifications.Dispatcher
	Sessions   databases.VideoSessionDatabase
}

// NewScheduler creates a new scheduler instance
func NewScheduler(dispatcher *notifications.Dispatcher, sessions databases.VideoSessionDatabase) *Scheduler {
	return &Scheduler{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		Dispatcher: dispatcher,
		Sessions:   sessions,
	}
}

// Start begins the scheduler with all registered jobs
func (s *Scheduler) Start() {
	// Purge expired notifications hourly
	_, err := s.cron.AddFunc("0 * * * *", s.purgeExpiredNotifications)
	if err != nil {
		zap.S().Errorw("failed to register notification purge job", "error", err)
	}

	// Sweep abandoned video sessions every 10 minutes
	_, err = s.cron.AddFunc("*/10 * * * *", s.sweepStaleSessions)
	if err != nil {
		zap.S().Errorw("failed to register session sweep job", "error", err)
	}

	s.cron.Start()
	zap.S().Info("housekeeping scheduler started")
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("housekeeping scheduler stopped")
}

func (s *Scheduler) purgeExpiredNotifications() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	deleted, err := s.Dispatcher.PurgeExpired(ctx)
	if err != nil {
		zap.S().Errorw("failed to purge expired notifications", "error", err)
		return
	}
	if deleted > 0 {
		zap.S().Infow("purged expired notifications", "count", deleted)
	}
}

// sweepStaleSessions force-ends sessions whose end event was lost, so
// their rooms stop accepting signaling.
func (s *Scheduler) sweepStaleSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	now := time.Now().UTC()
	cutoff := now.Add(-staleSessionCutoff)

	modified, err := s.Sessions.UpdateMany(ctx,
		bson.M{
			"status":    bson.M{"$in": []string{models.SessionStatusWaiting, models.SessionStatusActive}},
			"updatedAt": bson.M{"$lt": cutoff},
		},
		bson.M{"$set": bson.M{
			"status":    models.SessionStatusEnded,
			"endedAt":   now,
			"updatedAt": now,
		}},
	)
	if err != nil {
		zap.S().Errorw("failed to sweep stale video sessions", "error", err)
		return
	}
	if modified > 0 {
		zap.S().Infow("ended stale video sessions", "count", modified)
	}
}

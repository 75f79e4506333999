// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"

	"github.com/seedlab/seedlab/internal/auth"
	"github.com/seedlab/seedlab/internal/health"
	"github.com/seedlab/seedlab/internal/telemetry"
)

// DefaultNotificationRetention is how long read notifications are kept.
const DefaultNotificationRetention = 90 * 24 * time.Hour

type (
	AuthPurger interface {
		Purge(ctx context.Context) (auth.PurgeReport, error)
	}
	NotificationPurger interface {
		PurgeRead(ctx context.Context, cutoff time.Time) (int, error)
	}
)

// PurgeJob periodically drops expired sessions, trusted devices and recovery
// codes, plus read notifications older than Retention.
type PurgeJob struct {
	Interval      time.Duration
	Retention     time.Duration
	Auth          AuthPurger
	Notifications NotificationPurger
	// Checker, when set, records every run for the readiness probe.
	Checker *health.LastRunChecker
	Logger  zerolog.Logger

	now func() time.Time
}

// Run purges once immediately and then every Interval until ctx is cancelled.
func (j *PurgeJob) Run(ctx context.Context) error {
	if j.Interval <= 0 {
		j.Logger.Info().Msg("purge job disabled")
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()
	for {
		j.runOnce(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (j *PurgeJob) runOnce(ctx context.Context) {
	now := time.Now
	if j.now != nil {
		now = j.now
	}
	start := now()
	ctx, span := telemetry.Tracer("seedlab/daemon").Start(ctx, "purge")
	defer span.End()
	var (
		rep      auth.PurgeReport
		notes    int
		firstErr error
	)

	if j.Auth != nil {
		var err error
		if rep, err = j.Auth.Purge(ctx); err != nil {
			firstErr = err
		}
	}
	if j.Notifications != nil {
		retention := j.Retention
		if retention <= 0 {
			retention = DefaultNotificationRetention
		}
		var err error
		if notes, err = j.Notifications.PurgeRead(ctx, start.Add(-retention)); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if j.Checker != nil {
		j.Checker.Record(start, firstErr)
	}
	status := "ok"
	if firstErr != nil {
		status = "failed"
		span.SetStatus(codes.Error, firstErr.Error())
	}
	span.SetAttributes(telemetry.JobAttributes("purge", status, now().Sub(start).Milliseconds())...)
	if firstErr != nil {
		if ctx.Err() == nil {
			j.Logger.Warn().Err(firstErr).Str("event", "purge.failed").Msg("purge failed")
		}
		return
	}
	j.Logger.Info().
		Str("event", "purge.completed").
		Int("sessions", rep.Sessions).
		Int("devices", rep.Devices).
		Int("recovery_codes", rep.RecoveryCodes).
		Int("notifications", notes).
		Dur("duration", now().Sub(start)).
		Msg("purge completed")
}

package services

import (
	"context"
	"time"

	"crudadmin/internal/logger"
)

// retentionEvery is how often log retention and blacklist purging run.
const retentionEvery = 24 * time.Hour

// Maintenance runs the periodic housekeeping of the admin store.
type Maintenance struct {
	Sessions      SessionServicer
	Events        EventServicer
	Tokens        TokenServicer
	Interval      time.Duration
	RetentionDays int
	// TrackEvents disables log retention when false.
	TrackEvents bool
}

// Run sweeps idle sessions every Interval and applies retention once a day
// until ctx is cancelled. The first sweep runs immediately.
func (m *Maintenance) Run(ctx context.Context) {
	interval := m.Interval
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.SweepSessions(ctx)
	m.ApplyRetention(ctx)
	lastRetention := time.Now()

	for {
		select {
		case <-ctx.Done():
			logger.Get().Infow("maintenance stopped")
			return
		case <-ticker.C:
			m.SweepSessions(ctx)
			if time.Since(lastRetention) >= retentionEvery {
				m.ApplyRetention(ctx)
				lastRetention = time.Now()
			}
		}
	}
}

// SweepSessions deactivates idle sessions once.
func (m *Maintenance) SweepSessions(ctx context.Context) {
	n, err := m.Sessions.CleanupExpiredSessions(ctx)
	if err != nil {
		logger.Get().Errorw("session sweep failed", "error", err)
		return
	}
	if n > 0 {
		logger.Get().Infow("deactivated idle sessions", "count", n)
	}
}

// ApplyRetention deletes old logs, old inactive sessions and expired
// blacklist entries once.
func (m *Maintenance) ApplyRetention(ctx context.Context) {
	log := logger.Get()

	if m.TrackEvents && m.Events != nil && m.RetentionDays > 0 {
		res, err := m.Events.CleanupOldLogs(ctx, m.RetentionDays)
		if err != nil {
			log.Errorw("log retention failed", "error", err)
		} else if res.Events > 0 || res.Audits > 0 {
			log.Infow("removed old logs", "events", res.Events, "audits", res.Audits)
		}
	}

	if m.RetentionDays > 0 {
		cutoff := time.Now().UTC().AddDate(0, 0, -m.RetentionDays)
		if n, err := m.Sessions.PurgeInactiveSessions(ctx, cutoff); err != nil {
			log.Errorw("session retention failed", "error", err)
		} else if n > 0 {
			log.Infow("removed old sessions", "count", n)
		}
	}

	if m.Tokens != nil {
		if n, err := m.Tokens.PurgeExpired(ctx); err != nil {
			log.Errorw("blacklist purge failed", "error", err)
		} else if n > 0 {
			log.Infow("removed expired blacklist entries", "count", n)
		}
	}
}

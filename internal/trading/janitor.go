package trading

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Janitor periodically removes expired idempotency records
type Janitor struct {
	db       *Database
	interval time.Duration
}

func NewJanitor(db *Database, interval time.Duration) *Janitor {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Janitor{db: db, interval: interval}
}

// Start runs the cleanup loop until ctx is cancelled
func (j *Janitor) Start(ctx context.Context) {
	logger := log.With().Str("component", "idempotency_janitor").Logger()
	logger.Info().Dur("interval", j.interval).Msg("starting idempotency janitor")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down idempotency janitor")
			return
		case now := <-ticker.C:
			purged, err := j.db.PurgeExpiredIdempotency(ctx, now)
			if err != nil {
				logger.Error().Err(err).Msg("failed to purge idempotency records")
				continue
			}
			if purged > 0 {
				logger.Info().Int64("purged", purged).Msg("purged expired idempotency records")
			}
		}
	}
}

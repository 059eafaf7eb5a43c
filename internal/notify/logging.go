package notify

import (
	"github.com/rs/zerolog/log"

	"github.com/ksred/klear-exec/internal/execution"
)

// LogListener logs every notification it receives
func LogListener() execution.Listener {
	logger := log.With().Str("component", "execution_log").Logger()

	return execution.ListenerFunc(func(n execution.Notification) {
		report := n.Report()
		if report == nil {
			return
		}

		event := logger.Info().
			Str("notification_id", n.ID().String()).
			Str("source", n.Source()).
			Int64("order_id", report.Order().ID()).
			Int("fill_count", report.Len()).
			Int64("total_size", report.TotalSize())
		if avg, err := report.AveragePrice(); err == nil {
			event = event.Str("average_price", avg.String())
		}
		event.Msg("order executed")
	})
}

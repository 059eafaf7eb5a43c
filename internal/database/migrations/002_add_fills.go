package migrations

import (
	"gorm.io/gorm"

	"github.com/ksred/klear-exec/internal/trading"
)

// AddFills creates the fill table and the idempotency records that guard
// broker fill batches
func AddFills(db *gorm.DB) error {
	if err := db.AutoMigrate(&trading.Fill{}, &trading.IdempotencyRecord{}); err != nil {
		return err
	}

	indexes := []string{
		// Replay reads fills per order in arrival order
		`CREATE INDEX IF NOT EXISTS idx_fills_order_sequence
		 ON fills(order_id, sequence)`,

		// Janitor purges by expiry
		`CREATE INDEX IF NOT EXISTS idx_idempotency_records_expires_at
		 ON idempotency_records(expires_at)`,
	}
	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}

	return nil
}

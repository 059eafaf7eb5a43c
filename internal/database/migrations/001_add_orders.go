package migrations

import (
	"gorm.io/gorm"

	"github.com/ksred/klear-exec/internal/trading"
)

// AddOrders creates the order and attribute tables
func AddOrders(db *gorm.DB) error {
	if err := db.AutoMigrate(&trading.Order{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&trading.Attribute{}); err != nil {
		return err
	}

	indexes := []string{
		// Status scans per client
		`CREATE INDEX IF NOT EXISTS idx_orders_client_status
		 ON orders(client_id, status)`,
	}
	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}

	return nil
}

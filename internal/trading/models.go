package trading

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Order is the persisted form of an order. Prices are stored as text so
// sqlite does not coerce them to floating point.
type Order struct {
	gorm.Model
	OrderID     int64               `gorm:"uniqueIndex"`
	ClientID    string              `gorm:"index"`
	Symbol      string              `gorm:"index"`
	Exchange    string
	Currency    string
	OrderType   string
	Direction   string
	Size        int64
	StopPrice   decimal.NullDecimal `gorm:"type:text"`
	LimitPrice  decimal.NullDecimal `gorm:"type:text"`
	Status      string              `gorm:"index"`
	SubmittedAt *time.Time
	Comment     string
}

// Fill is one persisted fill. Sequence preserves arrival order.
type Fill struct {
	gorm.Model
	FillID     string          `gorm:"uniqueIndex"`
	OrderID    int64           `gorm:"index"`
	Sequence   int
	BatchKey   string          `gorm:"index"`
	Direction  string
	Size       int64
	Price      decimal.Decimal `gorm:"type:text"`
	Commission decimal.Decimal `gorm:"type:text"`
	FilledAt   time.Time
}

// Attribute is one persisted order property
type Attribute struct {
	gorm.Model
	OrderID int64  `gorm:"uniqueIndex:idx_order_attribute"`
	Name    string `gorm:"uniqueIndex:idx_order_attribute"`
	Kind    string
	Value   string
}

type IdempotencyRecord struct {
	gorm.Model
	IdempotencyKey string    `gorm:"uniqueIndex" json:"idempotency_key"`
	ResourceID     string    `json:"resource_id"`
	ResourceType   string    `json:"resource_type"`
	ExpiresAt      time.Time `json:"expires_at"`
}

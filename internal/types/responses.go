package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderView is the API representation of an order
type OrderView struct {
	OrderID       int64            `json:"order_id"`
	ClientID      string           `json:"client_id"`
	Symbol        string           `json:"symbol"`
	OrderType     string           `json:"order_type"`
	Direction     string           `json:"direction"`
	Size          int64            `json:"size"`
	StopPrice     *decimal.Decimal `json:"stop_price,omitempty"`
	LimitPrice    *decimal.Decimal `json:"limit_price,omitempty"`
	Status        string           `json:"status"`
	SubmittedAt   *time.Time       `json:"submitted_at,omitempty"`
	Comment       string           `json:"comment"`
	FilledSize    int64            `json:"filled_size"`
	RemainingSize int64            `json:"remaining_size"`
	Description   string           `json:"description"`
}

// FillView is one fill inside a report
type FillView struct {
	FillID     string          `json:"fill_id"`
	Direction  string          `json:"direction"`
	Size       int64           `json:"size"`
	Price      decimal.Decimal `json:"price"`
	Value      decimal.Decimal `json:"value"`
	Commission decimal.Decimal `json:"commission"`
	FilledAt   time.Time       `json:"filled_at"`
}

// ReportView is an execution report. AveragePrice is omitted until the
// first fill arrives.
type ReportView struct {
	OrderID       int64            `json:"order_id"`
	Status        string           `json:"status"`
	Fills         []FillView       `json:"fills"`
	TotalSize     int64            `json:"total_size"`
	TotalValue    decimal.Decimal  `json:"total_value"`
	AveragePrice  *decimal.Decimal `json:"average_price,omitempty"`
	RemainingSize int64            `json:"remaining_size"`
	Commission    decimal.Decimal  `json:"commission"`
}

// RecordFillsResponse is returned for a fill batch. Replayed is set when
// the idempotency key had already been processed.
type RecordFillsResponse struct {
	BatchKey       string     `json:"batch_key"`
	NotificationID string     `json:"notification_id,omitempty"`
	Replayed       bool       `json:"replayed"`
	Report         ReportView `json:"report"`
}

type AttributeView struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

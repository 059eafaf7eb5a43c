package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateOrderRequest is the body of POST /orders. Size and direction are
// validated by order construction, not by binding.
type CreateOrderRequest struct {
	OrderID    int64              `json:"order_id" binding:"required"`
	Symbol     string             `json:"symbol" binding:"required"`
	Exchange   string             `json:"exchange" binding:"required"`
	Currency   string             `json:"currency" binding:"required,len=3"`
	OrderType  string             `json:"order_type" binding:"required"`
	Direction  string             `json:"direction"`
	Size       int64              `json:"size"`
	StopPrice  *decimal.Decimal   `json:"stop_price,omitempty"`
	LimitPrice *decimal.Decimal   `json:"limit_price,omitempty"`
	Comment    string             `json:"comment,omitempty"`
	Attributes []AttributeRequest `json:"attributes,omitempty" validate:"dive"`
}

// AttributeRequest carries one typed property as text
type AttributeRequest struct {
	Name  string `json:"name" validate:"required"`
	Kind  string `json:"kind" validate:"required,oneof=string int decimal bool time"`
	Value string `json:"value"`
}

// FillRequest is one broker-reported execution
type FillRequest struct {
	Direction string    `json:"direction" validate:"required,oneof=LONG SHORT BUY SELL long short buy sell"`
	Size      int64     `json:"size"`
	Price     string    `json:"price" validate:"required,numeric"`
	FilledAt  time.Time `json:"filled_at"`
}

// RecordFillsRequest is a batch of fills delivered in one step
type RecordFillsRequest struct {
	Fills []FillRequest `json:"fills" validate:"required,min=1,dive"`
}

type SubmitOrderRequest struct {
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type UpdateCommentRequest struct {
	Comment string `json:"comment"`
}

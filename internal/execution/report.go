package execution

import (
	"errors"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/ksred/klear-exec/internal/orders"
	"github.com/ksred/klear-exec/internal/settings"
)

var (
	ErrNilOrder = errors.New("execution: report requires an order")
	ErrNoFills  = errors.New("execution: no fills")
)

// Report aggregates the fills received for one order. Fills are only
// appended, in arrival order; derived values are computed on each call.
type Report struct {
	order     orders.Order
	precision settings.Provider

	// emit serialises Record so notifications leave in append order
	emit  sync.Mutex
	mu    sync.RWMutex
	fills []Fill
}

// NewReport starts an empty report. A nil precision provider falls back
// to the process-wide setting.
func NewReport(order orders.Order, precision settings.Provider) (*Report, error) {
	if order == nil {
		return nil, ErrNilOrder
	}
	if precision == nil {
		precision = settings.Global
	}
	return &Report{order: order, precision: precision}, nil
}

func (r *Report) Order() orders.Order { return r.order }

func (r *Report) AddFill(f Fill) {
	r.mu.Lock()
	r.fills = append(r.fills, f)
	r.mu.Unlock()
}

// AddFills appends a batch atomically with respect to readers
func (r *Report) AddFills(fs ...Fill) {
	r.mu.Lock()
	r.fills = append(r.fills, fs...)
	r.mu.Unlock()
}

// Fills returns a copy of the fills in arrival order
func (r *Report) Fills() []Fill {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Fill, len(r.fills))
	copy(out, r.fills)
	return out
}

func (r *Report) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.fills)
}

func (r *Report) TotalSize() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return totalSize(r.fills)
}

// TotalValue is the unrounded sum of fill values
func (r *Report) TotalValue() decimal.Decimal {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return totalValue(r.fills)
}

// RemainingSize is the order size minus the filled size. Over-fills are
// not rejected, so the result may be negative.
func (r *Report) RemainingSize() int64 {
	return r.order.Size() - r.TotalSize()
}

// AveragePrice is the volume weighted average fill price, rounded half up
// to the configured price precision. It fails with ErrNoFills when nothing
// has been filled yet.
func (r *Report) AveragePrice() (decimal.Decimal, error) {
	r.mu.RLock()
	size := totalSize(r.fills)
	value := totalValue(r.fills)
	r.mu.RUnlock()

	if size == 0 {
		return decimal.Zero, ErrNoFills
	}
	return value.DivRound(decimal.NewFromInt(size), r.precision.PricePrecision()), nil
}

// Snapshot returns a detached report holding the fills seen so far
func (r *Report) Snapshot() *Report {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

func (r *Report) snapshotLocked() *Report {
	fills := make([]Fill, len(r.fills))
	copy(fills, r.fills)
	return &Report{order: r.order, precision: r.precision, fills: fills}
}

// Record appends a batch of fills and hands exactly one notification for
// the batch to l. Listeners may read the report but must not call Record
// on it.
func (r *Report) Record(source string, l Listener, fs ...Fill) (Notification, error) {
	if len(fs) == 0 {
		return Notification{}, ErrNoFills
	}

	r.emit.Lock()
	defer r.emit.Unlock()

	r.mu.Lock()
	r.fills = append(r.fills, fs...)
	snap := r.snapshotLocked()
	r.mu.Unlock()

	n := NewNotification(source, snap)
	if l != nil {
		l.OrderExecuted(n)
	}
	return n, nil
}

func totalSize(fills []Fill) int64 {
	var n int64
	for _, f := range fills {
		n += f.size
	}
	return n
}

func totalValue(fills []Fill) decimal.Decimal {
	sum := decimal.Zero
	for _, f := range fills {
		sum = sum.Add(f.Value())
	}
	return sum
}

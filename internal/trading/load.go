package trading

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ksred/klear-exec/internal/attributes"
	"github.com/ksred/klear-exec/internal/execution"
	"github.com/ksred/klear-exec/internal/orders"
)

// Load rebuilds live orders and their reports from the database. Fills
// are replayed in sequence order without emitting notifications.
func (s *Service) Load(ctx context.Context) (int, error) {
	records, err := s.db.ListOrders(ctx)
	if err != nil {
		return 0, err
	}

	loaded := make(map[int64]*entry, len(records))
	for i := range records {
		e, err := s.restore(ctx, &records[i])
		if err != nil {
			return 0, fmt.Errorf("restore order %d: %w", records[i].OrderID, err)
		}
		loaded[e.order.ID()] = e
	}

	s.mu.Lock()
	for id, e := range loaded {
		s.entries[id] = e
	}
	s.mu.Unlock()

	s.logger.Info().Int("order_count", len(loaded)).Msg("orders loaded")
	return len(loaded), nil
}

func (s *Service) restore(ctx context.Context, rec *Order) (*entry, error) {
	contract, err := newContract(rec.Symbol, rec.Exchange, rec.Currency)
	if err != nil {
		return nil, err
	}
	direction, err := orders.ParseDirection(rec.Direction)
	if err != nil {
		return nil, err
	}

	var stop, limit *decimal.Decimal
	if rec.StopPrice.Valid {
		stop = &rec.StopPrice.Decimal
	}
	if rec.LimitPrice.Valid {
		limit = &rec.LimitPrice.Decimal
	}

	order, err := newOrder(rec.OrderID, contract, rec.OrderType, direction, rec.Size, stop, limit)
	if err != nil {
		return nil, err
	}
	order.SetStatus(orders.Status(rec.Status))
	order.SetComment(rec.Comment)
	if rec.SubmittedAt != nil {
		order.SetSubmitTime(*rec.SubmittedAt)
	}

	attrs, err := s.db.AttributesForOrder(ctx, rec.OrderID)
	if err != nil {
		return nil, err
	}
	for _, a := range attrs {
		p, err := attributes.Decode(a.Name, attributes.Kind(a.Kind), a.Value)
		if err != nil {
			return nil, err
		}
		if err := order.Attributes().Set(p); err != nil {
			return nil, err
		}
	}

	report, err := execution.NewReport(order, s.precision)
	if err != nil {
		return nil, err
	}
	e := &entry{clientID: rec.ClientID, order: order, report: report}

	fills, err := s.db.FillsForOrder(ctx, rec.OrderID)
	if err != nil {
		return nil, err
	}
	replay := make([]execution.Fill, 0, len(fills))
	for _, f := range fills {
		d, err := orders.ParseDirection(f.Direction)
		if err != nil {
			return nil, err
		}
		fill, err := execution.NewFill(d, f.Size, f.Price, f.FilledAt)
		if err != nil {
			return nil, err
		}
		replay = append(replay, fill)
		e.fillIDs = append(e.fillIDs, f.FillID)
		e.commissions = append(e.commissions, f.Commission)
	}
	report.AddFills(replay...)

	return e, nil
}

package trading

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ksred/klear-exec/internal/attributes"
	"github.com/ksred/klear-exec/internal/commissions"
	"github.com/ksred/klear-exec/internal/execution"
	"github.com/ksred/klear-exec/internal/instrument"
	"github.com/ksred/klear-exec/internal/metrics"
	"github.com/ksred/klear-exec/internal/orders"
	"github.com/ksred/klear-exec/internal/settings"
	"github.com/ksred/klear-exec/internal/types"
)

var (
	ErrOrderNotFound       = errors.New("trading: order not found")
	ErrDuplicateOrder      = errors.New("trading: duplicate order id")
	ErrUnknownOrderType    = errors.New("trading: unknown order type")
	ErrInvalidRequest      = errors.New("trading: invalid request")
	ErrIdempotencyConflict = errors.New("trading: idempotency key belongs to another order")
)

// entry is a live order with its execution report. mu serialises writes
// to the order so persisted and in-memory state move together.
type entry struct {
	clientID string
	order    orders.Order
	report   *execution.Report

	mu          sync.Mutex
	fillIDs     []string
	commissions []decimal.Decimal
}

// Options configures a Service. Zero values fall back to defaults.
type Options struct {
	Source     string
	Precision  settings.Provider
	Commission commissions.Calculator
	Listener   execution.Listener
	Metrics    *metrics.Metrics
}

// Service records orders and broker fills, keeps their execution reports
// and emits an order executed notification for every fill batch
type Service struct {
	db         *Database
	source     string
	precision  settings.Provider
	commission commissions.Calculator
	listener   execution.Listener
	metrics    *metrics.Metrics
	logger     zerolog.Logger

	mu      sync.RWMutex
	entries map[int64]*entry
}

// NewService creates a new trading service with the given database connection
func NewService(gormDB *gorm.DB, opts Options) *Service {
	if opts.Source == "" {
		opts.Source = "klear-exec"
	}
	if opts.Precision == nil {
		opts.Precision = settings.Global
	}
	if opts.Commission == nil {
		opts.Commission = commissions.Zero{}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}

	return &Service{
		db:         NewDatabase(gormDB),
		source:     opts.Source,
		precision:  opts.Precision,
		commission: opts.Commission,
		listener:   opts.Listener,
		metrics:    opts.Metrics,
		logger:     log.With().Str("component", "trading_service").Logger(),
		entries:    make(map[int64]*entry),
	}
}

// DB exposes the repository for background jobs
func (s *Service) DB() *Database {
	return s.db
}

// CreateOrder validates and stores a new order for clientID.
// Order ids are unique across the service.
func (s *Service) CreateOrder(clientID string, req types.CreateOrderRequest) (types.OrderView, error) {
	if err := types.Validate(req); err != nil {
		return types.OrderView{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	var direction orders.Direction
	if req.Direction != "" {
		d, err := orders.ParseDirection(req.Direction)
		if err != nil {
			return types.OrderView{}, err
		}
		direction = d
	}

	contract, err := newContract(req.Symbol, req.Exchange, req.Currency)
	if err != nil {
		return types.OrderView{}, err
	}

	order, err := newOrder(req.OrderID, contract, req.OrderType, direction, req.Size, req.StopPrice, req.LimitPrice)
	if err != nil {
		return types.OrderView{}, err
	}
	order.SetComment(req.Comment)

	attrRecords := make([]Attribute, 0, len(req.Attributes))
	for _, a := range req.Attributes {
		p, err := attributes.Decode(a.Name, attributes.Kind(a.Kind), a.Value)
		if err != nil {
			return types.OrderView{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		if err := order.Attributes().Add(p); err != nil {
			return types.OrderView{}, err
		}
		attrRecords = append(attrRecords, Attribute{OrderID: order.ID(), Name: a.Name, Kind: a.Kind, Value: a.Value})
	}

	report, err := execution.NewReport(order, s.precision)
	if err != nil {
		return types.OrderView{}, err
	}
	e := &entry{clientID: clientID, order: order, report: report}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[order.ID()]; exists {
		return types.OrderView{}, fmt.Errorf("%w: %d", ErrDuplicateOrder, order.ID())
	}

	if err := s.db.CreateOrder(orderRecord(clientID, order), attrRecords); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return types.OrderView{}, fmt.Errorf("%w: %d", ErrDuplicateOrder, order.ID())
		}
		return types.OrderView{}, err
	}
	s.entries[order.ID()] = e

	s.metrics.OrdersCreated.Inc()
	s.logger.Info().
		Int64("order_id", order.ID()).
		Str("client_id", clientID).
		Str("order", order.String()).
		Msg("order created")

	return orderView(e), nil
}

// GetOrder returns an order owned by clientID
func (s *Service) GetOrder(clientID string, orderID int64) (types.OrderView, error) {
	e, err := s.lookup(clientID, orderID)
	if err != nil {
		return types.OrderView{}, err
	}
	return orderView(e), nil
}

// ListOrders returns the orders owned by clientID in id order
func (s *Service) ListOrders(clientID string) []types.OrderView {
	s.mu.RLock()
	out := make([]types.OrderView, 0, len(s.entries))
	for _, e := range s.entries {
		if e.clientID == clientID {
			out = append(out, orderView(e))
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].OrderID < out[j].OrderID })
	return out
}

// SubmitOrder stamps the submit time and moves the order to SUBMITTED
func (s *Service) SubmitOrder(clientID string, orderID int64, at time.Time) (types.OrderView, error) {
	e, err := s.lookup(clientID, orderID)
	if err != nil {
		return types.OrderView{}, err
	}
	if at.IsZero() {
		at = time.Now()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := s.db.UpdateOrderState(orderID, string(orders.StatusSubmitted), &at, e.order.Comment()); err != nil {
		return types.OrderView{}, err
	}
	e.order.SetSubmitTime(at)
	e.order.SetStatus(orders.StatusSubmitted)
	s.metrics.StatusChanges.WithLabelValues(string(orders.StatusSubmitted)).Inc()

	s.logger.Info().Int64("order_id", orderID).Time("submitted_at", at).Msg("order submitted")
	return orderView(e), nil
}

// UpdateStatus overwrites the order status. Transitions are not checked.
func (s *Service) UpdateStatus(clientID string, orderID int64, status string) (types.OrderView, error) {
	next := orders.ParseStatus(status)
	if next == "" {
		return types.OrderView{}, fmt.Errorf("%w: status is required", ErrInvalidRequest)
	}

	e, err := s.lookup(clientID, orderID)
	if err != nil {
		return types.OrderView{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := s.db.UpdateOrderState(orderID, string(next), submittedAt(e.order), e.order.Comment()); err != nil {
		return types.OrderView{}, err
	}
	prev := e.order.Status()
	e.order.SetStatus(next)
	s.metrics.StatusChanges.WithLabelValues(string(next)).Inc()

	s.logger.Info().
		Int64("order_id", orderID).
		Str("from", string(prev)).
		Str("to", string(next)).
		Msg("order status updated")
	return orderView(e), nil
}

func (s *Service) SetComment(clientID string, orderID int64, comment string) (types.OrderView, error) {
	e, err := s.lookup(clientID, orderID)
	if err != nil {
		return types.OrderView{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := s.db.UpdateOrderState(orderID, string(e.order.Status()), submittedAt(e.order), comment); err != nil {
		return types.OrderView{}, err
	}
	e.order.SetComment(comment)
	return orderView(e), nil
}

// RecordFills appends a batch of broker fills to the order's report.
// The whole batch is validated before anything is stored, and a repeated
// idempotency key returns the current report without appending again.
func (s *Service) RecordFills(orderID int64, idempotencyKey string, req types.RecordFillsRequest) (types.RecordFillsResponse, error) {
	if idempotencyKey == "" {
		return types.RecordFillsResponse{}, fmt.Errorf("%w: idempotency key is required", ErrInvalidRequest)
	}
	if err := types.Validate(req); err != nil {
		return types.RecordFillsResponse{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	e, err := s.lookup("", orderID)
	if err != nil {
		return types.RecordFillsResponse{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	record, err := s.db.GetIdempotencyRecord(idempotencyKey)
	if err != nil {
		return types.RecordFillsResponse{}, err
	}
	if record != nil {
		if record.ResourceID != fmt.Sprint(orderID) {
			return types.RecordFillsResponse{}, ErrIdempotencyConflict
		}
		return types.RecordFillsResponse{
			BatchKey: idempotencyKey,
			Replayed: true,
			Report:   s.reportViewLocked(e),
		}, nil
	}

	now := time.Now()
	fills := make([]execution.Fill, 0, len(req.Fills))
	var batchSize int64
	for i, fr := range req.Fills {
		f, err := newFill(fr, now)
		if err != nil {
			return types.RecordFillsResponse{}, fmt.Errorf("%w: fill %d: %w", ErrInvalidRequest, i, err)
		}
		fills = append(fills, f)
		batchSize += f.Size()
	}

	next := nextStatus(e.order.Status(), e.report.TotalSize()+batchSize, e.order.Size())

	offset := e.report.Len()
	ids := make([]string, len(fills))
	fees := make([]decimal.Decimal, len(fills))
	records := make([]Fill, len(fills))
	for i, f := range fills {
		ids[i] = uuid.New().String()
		fees[i] = commissions.ForFill(s.commission, f)
		records[i] = Fill{
			FillID:     ids[i],
			OrderID:    orderID,
			Sequence:   offset + i,
			BatchKey:   idempotencyKey,
			Direction:  f.Direction().String(),
			Size:       f.Size(),
			Price:      f.Price(),
			Commission: fees[i],
			FilledAt:   f.Time(),
		}
	}

	if err := s.db.RecordFillBatch(orderID, records, string(next), idempotencyKey); err != nil {
		// another order claimed the key between the lookup and the insert
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return types.RecordFillsResponse{}, fmt.Errorf("%w: %s", ErrIdempotencyConflict, idempotencyKey)
		}
		return types.RecordFillsResponse{}, err
	}

	e.fillIDs = append(e.fillIDs, ids...)
	e.commissions = append(e.commissions, fees...)
	if prev := e.order.Status(); prev != next {
		e.order.SetStatus(next)
		s.metrics.StatusChanges.WithLabelValues(string(next)).Inc()
	}

	n, err := e.report.Record(s.source, s.listener, fills...)
	if err != nil {
		return types.RecordFillsResponse{}, err
	}

	for _, f := range fills {
		s.metrics.FillsRecorded.WithLabelValues(f.Direction().String()).Inc()
		s.metrics.FilledQuantity.WithLabelValues(f.Direction().String()).Add(float64(f.Size()))
	}

	view := s.reportViewLocked(e)
	event := s.logger.Info().
		Int64("order_id", orderID).
		Int("fill_count", len(fills)).
		Int64("batch_size", batchSize).
		Int64("total_size", view.TotalSize).
		Str("status", string(next))
	if view.AveragePrice != nil {
		event = event.Str("average_price", view.AveragePrice.String())
	}
	event.Msg("fills recorded")

	return types.RecordFillsResponse{
		BatchKey:       idempotencyKey,
		NotificationID: n.ID().String(),
		Report:         view,
	}, nil
}

// Report returns the execution report of an order owned by clientID
func (s *Service) Report(clientID string, orderID int64) (types.ReportView, error) {
	e, err := s.lookup(clientID, orderID)
	if err != nil {
		return types.ReportView{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return s.reportViewLocked(e), nil
}

func (s *Service) Attributes(clientID string, orderID int64) ([]types.AttributeView, error) {
	e, err := s.lookup(clientID, orderID)
	if err != nil {
		return nil, err
	}

	props := e.order.Attributes().List()
	out := make([]types.AttributeView, 0, len(props))
	for _, p := range props {
		kind, value, err := attributes.Encode(p)
		if err != nil {
			return nil, err
		}
		out = append(out, types.AttributeView{Name: p.Name(), Kind: string(kind), Value: value})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// AddAttribute inserts a new attribute, failing if the name is taken
func (s *Service) AddAttribute(clientID string, orderID int64, req types.AttributeRequest) (types.AttributeView, error) {
	return s.writeAttribute(clientID, orderID, req, false)
}

// SetAttribute inserts or replaces an attribute of the same kind
func (s *Service) SetAttribute(clientID string, orderID int64, req types.AttributeRequest) (types.AttributeView, error) {
	return s.writeAttribute(clientID, orderID, req, true)
}

func (s *Service) writeAttribute(clientID string, orderID int64, req types.AttributeRequest, overwrite bool) (types.AttributeView, error) {
	if err := types.Validate(req); err != nil {
		return types.AttributeView{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	p, err := attributes.Decode(req.Name, attributes.Kind(req.Kind), req.Value)
	if err != nil {
		return types.AttributeView{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	e, err := s.lookup(clientID, orderID)
	if err != nil {
		return types.AttributeView{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	store := e.order.Attributes()
	if prev, err := store.GetByName(req.Name); err == nil {
		if !overwrite {
			return types.AttributeView{}, fmt.Errorf("%w: %s", attributes.ErrDuplicateName, req.Name)
		}
		if prev.Type() != p.Type() {
			return types.AttributeView{}, fmt.Errorf("%w: %s is %s, not %s", attributes.ErrTypeConflict, req.Name, prev.Type(), p.Type())
		}
	}

	kind, value, _ := attributes.Encode(p)
	if err := s.db.UpsertAttribute(&Attribute{OrderID: orderID, Name: req.Name, Kind: string(kind), Value: value}); err != nil {
		return types.AttributeView{}, err
	}
	if err := store.Set(p); err != nil {
		return types.AttributeView{}, err
	}

	return types.AttributeView{Name: req.Name, Kind: string(kind), Value: value}, nil
}

// RemoveAttribute deletes an attribute; removing a missing name succeeds
func (s *Service) RemoveAttribute(clientID string, orderID int64, name string) error {
	e, err := s.lookup(clientID, orderID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := s.db.DeleteAttribute(orderID, name); err != nil {
		return err
	}
	e.order.Attributes().RemoveByName(name)
	return nil
}

// lookup finds an order; an empty clientID skips the ownership check
func (s *Service) lookup(clientID string, orderID int64) (*entry, error) {
	s.mu.RLock()
	e, ok := s.entries[orderID]
	s.mu.RUnlock()

	if !ok || (clientID != "" && e.clientID != clientID) {
		return nil, fmt.Errorf("%w: %d", ErrOrderNotFound, orderID)
	}
	return e, nil
}

func (s *Service) reportViewLocked(e *entry) types.ReportView {
	snap := e.report.Snapshot()
	fills := snap.Fills()

	view := types.ReportView{
		OrderID:       e.order.ID(),
		Status:        string(e.order.Status()),
		Fills:         make([]types.FillView, len(fills)),
		TotalSize:     snap.TotalSize(),
		TotalValue:    snap.TotalValue(),
		RemainingSize: snap.RemainingSize(),
		Commission:    decimal.Zero,
	}
	for i, f := range fills {
		fv := types.FillView{
			Direction: f.Direction().String(),
			Size:      f.Size(),
			Price:     f.Price(),
			Value:     f.Value(),
			FilledAt:  f.Time(),
		}
		if i < len(e.fillIDs) {
			fv.FillID = e.fillIDs[i]
			fv.Commission = e.commissions[i]
		} else {
			fv.Commission = commissions.ForFill(s.commission, f)
		}
		view.Commission = view.Commission.Add(fv.Commission)
		view.Fills[i] = fv
	}
	if avg, err := snap.AveragePrice(); err == nil {
		view.AveragePrice = &avg
	}
	return view
}

func orderView(e *entry) types.OrderView {
	o := e.order
	stop, limit := orders.Prices(o)
	filled := e.report.TotalSize()
	return types.OrderView{
		OrderID:       o.ID(),
		ClientID:      e.clientID,
		Symbol:        o.Contract().Symbol(),
		OrderType:     o.Type(),
		Direction:     o.Direction().String(),
		Size:          o.Size(),
		StopPrice:     stop,
		LimitPrice:    limit,
		Status:        string(o.Status()),
		SubmittedAt:   submittedAt(o),
		Comment:       o.Comment(),
		FilledSize:    filled,
		RemainingSize: o.Size() - filled,
		Description:   o.String(),
	}
}

func submittedAt(o orders.Order) *time.Time {
	if t, ok := o.SubmitTime(); ok {
		return &t
	}
	return nil
}

// nextStatus derives the status after a fill batch. Orders that ended
// without filling keep their status when late fills arrive.
func nextStatus(current orders.Status, filled, size int64) orders.Status {
	if current.IsTerminal() && current != orders.StatusFilled {
		return current
	}
	if filled >= size {
		return orders.StatusFilled
	}
	return orders.StatusPartiallyFilled
}

func newContract(symbol, exchange, currency string) (instrument.Contract, error) {
	venue, ok := instrument.ExchangeByCode(exchange)
	if !ok {
		code := strings.ToUpper(strings.TrimSpace(exchange))
		venue = instrument.Exchange{Code: code, Name: code}
	}
	stock, err := instrument.NewStock(symbol, venue, instrument.Currency{Code: strings.ToUpper(currency)})
	if err != nil {
		return nil, err
	}
	return stock, nil
}

func newOrder(id int64, contract instrument.Contract, orderType string, direction orders.Direction, size int64, stop, limit *decimal.Decimal) (orders.Order, error) {
	switch strings.ToLower(strings.TrimSpace(orderType)) {
	case orders.TypeMarket:
		return orders.NewMarketOrder(id, contract, direction, size)
	case orders.TypeLimit:
		if limit == nil {
			return nil, fmt.Errorf("%w: limit_price is required for limit orders", ErrInvalidRequest)
		}
		return orders.NewLimitOrder(id, contract, direction, size, *limit)
	case orders.TypeStop:
		if stop == nil {
			return nil, fmt.Errorf("%w: stop_price is required for stop orders", ErrInvalidRequest)
		}
		return orders.NewStopOrder(id, contract, direction, size, *stop)
	case orders.TypeStopLimit, "stop_limit":
		if stop == nil || limit == nil {
			return nil, fmt.Errorf("%w: stop_price and limit_price are required for stop limit orders", ErrInvalidRequest)
		}
		return orders.NewStopLimitOrder(id, contract, direction, size, *stop, *limit)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOrderType, orderType)
	}
}

func newFill(fr types.FillRequest, now time.Time) (execution.Fill, error) {
	direction, err := orders.ParseDirection(fr.Direction)
	if err != nil {
		return execution.Fill{}, err
	}
	price, err := decimal.NewFromString(fr.Price)
	if err != nil {
		return execution.Fill{}, err
	}
	at := fr.FilledAt
	if at.IsZero() {
		at = now
	}
	return execution.NewFill(direction, fr.Size, price, at)
}

func orderRecord(clientID string, o orders.Order) *Order {
	rec := &Order{
		OrderID:     o.ID(),
		ClientID:    clientID,
		Symbol:      o.Contract().Symbol(),
		OrderType:   o.Type(),
		Direction:   o.Direction().String(),
		Size:        o.Size(),
		Status:      string(o.Status()),
		SubmittedAt: submittedAt(o),
		Comment:     o.Comment(),
	}
	if stock, ok := o.Contract().(instrument.Stock); ok {
		rec.Exchange = stock.Exchange().Code
		rec.Currency = stock.Currency().Code
	}
	stop, limit := orders.Prices(o)
	if stop != nil {
		rec.StopPrice = decimal.NewNullDecimal(*stop)
	}
	if limit != nil {
		rec.LimitPrice = decimal.NewNullDecimal(*limit)
	}
	return rec
}

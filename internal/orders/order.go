package orders

import (
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ksred/klear-exec/internal/attributes"
	"github.com/ksred/klear-exec/internal/instrument"
)

// Order is a trade instruction. Identity, contract, type, direction and
// size are fixed at construction; status, submit time and comment are
// safe to mutate while other goroutines read them.
type Order interface {
	ID() int64
	Contract() instrument.Contract
	Type() string
	Direction() Direction
	Size() int64

	Status() Status
	SetStatus(Status)
	SubmitTime() (time.Time, bool)
	SetSubmitTime(time.Time)
	Comment() string
	SetComment(string)

	Attributes() *attributes.Store

	DirectionLabel() string
	IsBuy() bool
	IsSell() bool
	String() string
}

// Base carries the fields every order variant shares
type Base struct {
	id        int64
	contract  instrument.Contract
	orderType string
	direction Direction
	size      int64
	attrs     *attributes.Store

	mu         sync.RWMutex
	status     Status
	submitTime time.Time
	submitted  bool
	comment    string
}

// New validates the shared fields and returns a fresh order in status NEW
func New(id int64, contract instrument.Contract, orderType string, direction Direction, size int64) (*Base, error) {
	switch {
	case isNilContract(contract):
		return nil, &ConfigError{Field: "contract", Reason: "is required"}
	case strings.TrimSpace(orderType) == "":
		return nil, &ConfigError{Field: "orderType", Reason: "must not be empty"}
	case !direction.IsValid():
		return nil, &ConfigError{Field: "direction", Reason: "is required"}
	case size <= 0:
		return nil, &ConfigError{Field: "size", Reason: "must be positive, got " + strconv.FormatInt(size, 10)}
	}

	return &Base{
		id:        id,
		contract:  contract,
		orderType: orderType,
		direction: direction,
		size:      size,
		attrs:     attributes.NewStore(),
		status:    StatusNew,
	}, nil
}

// isNilContract also catches a nil pointer stored in a non-nil interface
func isNilContract(c instrument.Contract) bool {
	if c == nil {
		return true
	}
	v := reflect.ValueOf(c)
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func:
		return v.IsNil()
	}
	return false
}

func (b *Base) ID() int64                     { return b.id }
func (b *Base) Contract() instrument.Contract { return b.contract }
func (b *Base) Type() string                  { return b.orderType }
func (b *Base) Direction() Direction          { return b.direction }
func (b *Base) Size() int64                   { return b.size }
func (b *Base) Attributes() *attributes.Store { return b.attrs }

func (b *Base) IsBuy() bool  { return b.direction == Long }
func (b *Base) IsSell() bool { return b.direction == Short }

// DirectionLabel returns "buy" or "sell". Variants may shadow it.
func (b *Base) DirectionLabel() string { return b.direction.Label() }

func (b *Base) Status() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status
}

func (b *Base) SetStatus(s Status) {
	b.mu.Lock()
	b.status = s
	b.mu.Unlock()
}

// SubmitTime returns the submission time and whether it has been set
func (b *Base) SubmitTime() (time.Time, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.submitTime, b.submitted
}

func (b *Base) SetSubmitTime(t time.Time) {
	b.mu.Lock()
	b.submitTime = t
	b.submitted = true
	b.mu.Unlock()
}

func (b *Base) Comment() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.comment
}

func (b *Base) SetComment(c string) {
	b.mu.Lock()
	b.comment = c
	b.mu.Unlock()
}

func (b *Base) String() string {
	return Describe(b)
}

// Describe renders "<status> <type> order to <buy|sell> <size> of '<symbol>'"
// using o's own DirectionLabel, so variants that shadow it are honoured.
func Describe(o Order) string {
	var sb strings.Builder
	sb.WriteString(o.Status().Label())
	sb.WriteByte(' ')
	sb.WriteString(o.Type())
	sb.WriteString(" order to ")
	sb.WriteString(o.DirectionLabel())
	sb.WriteByte(' ')
	sb.WriteString(strconv.FormatInt(o.Size(), 10))
	sb.WriteString(" of '")
	sb.WriteString(o.Contract().Symbol())
	sb.WriteByte('\'')
	return sb.String()
}

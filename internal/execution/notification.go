package execution

import (
	"time"

	"github.com/google/uuid"
)

// Notification announces that an order received one batch of fills.
// Report is the state of the execution report when it was emitted.
type Notification struct {
	id        uuid.UUID
	source    string
	report    *Report
	emittedAt time.Time
}

func NewNotification(source string, report *Report) Notification {
	return Notification{
		id:        uuid.New(),
		source:    source,
		report:    report,
		emittedAt: time.Now(),
	}
}

func (n Notification) ID() uuid.UUID        { return n.id }
func (n Notification) Source() string       { return n.source }
func (n Notification) Report() *Report      { return n.report }
func (n Notification) EmittedAt() time.Time { return n.emittedAt }

// Listener receives order executed notifications
type Listener interface {
	OrderExecuted(Notification)
}

// ListenerFunc adapts a function to Listener
type ListenerFunc func(Notification)

func (f ListenerFunc) OrderExecuted(n Notification) { f(n) }

// Listeners fans a notification out in slice order
type Listeners []Listener

func (ls Listeners) OrderExecuted(n Notification) {
	for _, l := range ls {
		l.OrderExecuted(n)
	}
}

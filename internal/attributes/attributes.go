package attributes

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNilProperty   = errors.New("attributes: nil property")
	ErrDuplicateName = errors.New("attributes: duplicate name")
	ErrTypeConflict  = errors.New("attributes: type conflict")
	ErrNotFound      = errors.New("attributes: not found")
)

// Kind identifies the value type of a property. Two properties with the
// same name may only replace each other when their kinds match.
type Kind string

const (
	KindString  Kind = "string"
	KindInt     Kind = "int"
	KindDecimal Kind = "decimal"
	KindBool    Kind = "bool"
	KindTime    Kind = "time"
)

// Property is a named, typed piece of order metadata
type Property interface {
	Name() string
	Type() Kind
}

// Value is the built-in property implementation
type Value[T any] struct {
	name  string
	kind  Kind
	value T
}

func (v Value[T]) Name() string { return v.name }
func (v Value[T]) Type() Kind   { return v.kind }
func (v Value[T]) Get() T       { return v.value }

func (v Value[T]) String() string {
	return fmt.Sprintf("%s=%v", v.name, v.value)
}

func String(name, v string) Value[string] {
	return Value[string]{name: name, kind: KindString, value: v}
}

func Int(name string, v int64) Value[int64] {
	return Value[int64]{name: name, kind: KindInt, value: v}
}

func Decimal(name string, v decimal.Decimal) Value[decimal.Decimal] {
	return Value[decimal.Decimal]{name: name, kind: KindDecimal, value: v}
}

func Bool(name string, v bool) Value[bool] {
	return Value[bool]{name: name, kind: KindBool, value: v}
}

func Time(name string, v time.Time) Value[time.Time] {
	return Value[time.Time]{name: name, kind: KindTime, value: v}
}

// Store is a name-keyed collection of properties safe for concurrent use.
// Every mutation either fully applies or leaves the store unchanged.
type Store struct {
	mu    sync.RWMutex
	props map[string]Property
}

func NewStore() *Store {
	return &Store{props: make(map[string]Property)}
}

// Add inserts p, failing if a property with the same name is present
func (s *Store) Add(p Property) error {
	if p == nil {
		return ErrNilProperty
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.props[p.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateName, p.Name())
	}
	s.props[p.Name()] = p
	return nil
}

// Set inserts p or replaces an existing property of the same kind
func (s *Store) Set(p Property) error {
	if p == nil {
		return ErrNilProperty
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.props[p.Name()]; ok && existing.Type() != p.Type() {
		return fmt.Errorf("%w: %s is %s, not %s", ErrTypeConflict, p.Name(), existing.Type(), p.Type())
	}
	s.props[p.Name()] = p
	return nil
}

// RemoveByName deletes the named property if present
func (s *Store) RemoveByName(name string) {
	s.mu.Lock()
	delete(s.props, name)
	s.mu.Unlock()
}

func (s *Store) Exists(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.props[name]
	return ok
}

func (s *Store) GetByName(name string) (Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.props[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return p, nil
}

// List returns a snapshot of the store. Order is unspecified.
func (s *Store) List() []Property {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Property, 0, len(s.props))
	for _, p := range s.props {
		out = append(out, p)
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.props)
}

// Get returns the typed value of the named property
func Get[T any](s *Store, name string) (T, error) {
	var zero T
	p, err := s.GetByName(name)
	if err != nil {
		return zero, err
	}
	v, ok := p.(Value[T])
	if !ok {
		return zero, fmt.Errorf("%w: %s is %s", ErrTypeConflict, name, p.Type())
	}
	return v.Get(), nil
}

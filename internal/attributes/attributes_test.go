package attributes

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tagProperty struct{ name string }

func (t tagProperty) Name() string { return t.name }
func (t tagProperty) Type() Kind   { return "tag" }

func TestStoreAdd(t *testing.T) {
	s := NewStore()

	require.NoError(t, s.Add(String("desk", "equities")))
	assert.True(t, s.Exists("desk"))

	err := s.Add(String("desk", "rates"))
	assert.ErrorIs(t, err, ErrDuplicateName)

	v, err := Get[string](s, "desk")
	require.NoError(t, err)
	assert.Equal(t, "equities", v)

	assert.ErrorIs(t, s.Add(nil), ErrNilProperty)
}

func TestStoreSet(t *testing.T) {
	tests := []struct {
		name    string
		initial Property
		next    Property
		wantErr error
		want    Property
	}{
		{
			name: "insert when absent",
			next: Int("lots", 3),
			want: Int("lots", 3),
		},
		{
			name:    "same kind overwrites",
			initial: Int("lots", 3),
			next:    Int("lots", 7),
			want:    Int("lots", 7),
		},
		{
			name:    "different kind fails",
			initial: Int("lots", 3),
			next:    String("lots", "seven"),
			wantErr: ErrTypeConflict,
			want:    Int("lots", 3),
		},
		{
			name:    "custom kinds compare by type",
			initial: tagProperty{name: "lots"},
			next:    Bool("lots", true),
			wantErr: ErrTypeConflict,
			want:    tagProperty{name: "lots"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			if tt.initial != nil {
				require.NoError(t, s.Add(tt.initial))
			}

			err := s.Set(tt.next)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}

			got, err := s.GetByName("lots")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, 1, s.Len())
		})
	}
}

func TestStoreRemoveAndLookup(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add(Bool("algo", true)))

	s.RemoveByName("algo")
	s.RemoveByName("missing")

	assert.False(t, s.Exists("algo"))
	_, err := s.GetByName("algo")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, s.List())
}

func TestGetTypeMismatch(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add(Decimal("limit", decimal.RequireFromString("10.5"))))

	_, err := Get[string](s, "limit")
	assert.ErrorIs(t, err, ErrTypeConflict)

	d, err := Get[decimal.Decimal](s, "limit")
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.RequireFromString("10.50")))
}

func TestListIsSnapshot(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add(String("a", "1")))
	require.NoError(t, s.Add(String("b", "2")))

	list := s.List()
	s.RemoveByName("a")

	assert.Len(t, list, 2)
	assert.Equal(t, 1, s.Len())
}

func TestStoreConcurrentAccess(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				name := fmt.Sprintf("k%d", j%10)
				_ = s.Set(Int(name, int64(i*j)))
				_ = s.Exists(name)
				_ = s.List()
				if j%7 == 0 {
					s.RemoveByName(name)
				}
			}
		}(i)
	}
	wg.Wait()

	for _, p := range s.List() {
		assert.Equal(t, KindInt, p.Type())
	}
}

func TestConcurrentAddHasOneWinnerPerName(t *testing.T) {
	const (
		workers = 32
		names   = 8
	)
	s := NewStore()
	var wins [names]atomic.Int32
	var dupes atomic.Int32

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			for n := 0; n < names; n++ {
				err := s.Add(Int(fmt.Sprintf("k%d", n), int64(i)))
				switch {
				case err == nil:
					wins[n].Add(1)
				case errors.Is(err, ErrDuplicateName):
					dupes.Add(1)
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}
		}(i)
	}
	close(start)
	wg.Wait()

	for n := range wins {
		assert.Equal(t, int32(1), wins[n].Load(), "k%d", n)
	}
	assert.Equal(t, int32((workers-1)*names), dupes.Load())
	assert.Equal(t, names, s.Len())
	assert.Len(t, s.List(), names)
}

func TestListIsStableWithoutWrites(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add(String("desk", "equities")))
	require.NoError(t, s.Add(Int("lots", 4)))
	require.NoError(t, s.Add(Bool("algo", true)))

	render := func(props []Property) []string {
		out := make([]string, 0, len(props))
		for _, p := range props {
			kind, text, err := Encode(p)
			require.NoError(t, err)
			out = append(out, p.Name()+"/"+string(kind)+"="+text)
		}
		sort.Strings(out)
		return out
	}

	first := render(s.List())
	second := render(s.List())
	assert.Equal(t, first, second)
	assert.Len(t, first, 3)
}

func TestCodec(t *testing.T) {
	ts := time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)
	props := []Property{
		String("desk", "equities"),
		Int("lots", -4),
		Decimal("limit", decimal.RequireFromString("101.25")),
		Bool("algo", true),
		Time("expiry", ts),
	}

	for _, p := range props {
		t.Run(string(p.Type()), func(t *testing.T) {
			kind, text, err := Encode(p)
			require.NoError(t, err)
			assert.Equal(t, p.Type(), kind)

			back, err := Decode(p.Name(), kind, text)
			require.NoError(t, err)
			assert.Equal(t, p.Name(), back.Name())
			assert.Equal(t, p.Type(), back.Type())
		})
	}

	_, _, err := Encode(tagProperty{name: "x"})
	assert.ErrorIs(t, err, ErrUnsupportedKind)

	_, err = Decode("lots", KindInt, "four")
	assert.Error(t, err)

	_, err = Decode("x", "tag", "")
	assert.ErrorIs(t, err, ErrUnsupportedKind)
}

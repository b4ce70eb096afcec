package counter

import (
	"context"
	"sort"
	"testing"
)

// memKeyspace is an in-memory Keyspace that commits slot writes only when the
// update function succeeds.
type memKeyspace struct {
	entries map[string]Entry
	journal [][]string
}

func newMemKeyspace() *memKeyspace {
	return &memKeyspace{entries: map[string]Entry{}}
}

type memSlot struct {
	ks      *memKeyspace
	key     string
	cur     *Entry
	journal [][]string
}

func (s *memSlot) Get() (*Entry, error) { return s.cur, nil }

func (s *memSlot) Put(e Entry) error {
	s.cur = &e
	return nil
}

func (s *memSlot) Delete() error {
	s.cur = nil
	return nil
}

func (s *memSlot) Replicate(argv ...string) error {
	s.journal = append(s.journal, argv)
	return nil
}

func (m *memKeyspace) Update(ctx context.Context, key string, fn func(Slot) error) error {
	s := &memSlot{ks: m, key: key}
	if e, ok := m.entries[key]; ok {
		s.cur = &e
	}
	if err := fn(s); err != nil {
		return err
	}
	if s.cur == nil {
		delete(m.entries, key)
	} else {
		m.entries[key] = *s.cur
	}
	m.journal = append(m.journal, s.journal...)
	return nil
}

func (m *memKeyspace) Scan(ctx context.Context, fn func(string, Entry) error) error {
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := fn(k, m.entries[k]); err != nil {
			return err
		}
	}
	return nil
}

// fakeClock is a settable millisecond clock.
type fakeClock struct{ ms int64 }

func (c *fakeClock) now() int64       { return c.ms }
func (c *fakeClock) advance(ms int64) { c.ms += ms }

func testController(t *testing.T) (*Controller, *memKeyspace, *fakeClock) {
	t.Helper()
	ks := newMemKeyspace()
	clock := &fakeClock{ms: 1_700_000_000_000}
	return New(ks, NewType(), WithClock(clock.now)), ks, clock
}

func mustRecord(t *testing.T, ks *memKeyspace, key string) Record {
	t.Helper()
	e, ok := ks.entries[key]
	if !ok {
		t.Fatalf("key %q not stored", key)
	}
	rec, err := NewType().Decode(e)
	if err != nil {
		t.Fatalf("decode %q: %v", key, err)
	}
	return rec
}

func everySecond(rate float64) Policy {
	return Policy{DecayRate: rate, Interval: Interval{Count: 1, Unit: Seconds}}
}

package counter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lazypower/degrade/internal/logging"
)

// increment applies delta to cur at now. A nil cur is an absent key. A dead
// record is reset to a fresh epoch holding delta; its stored policy is kept.
// An alive record keeps its stored policy too; p is only used on creation.
func increment(cur *Record, now int64, delta float64, p Policy) (Record, float64) {
	if cur == nil {
		return Record{
			Created:   now,
			DecayRate: p.DecayRate,
			Intervals: p.Interval.Count,
			Unit:      p.Interval.Unit,
			Value:     delta,
		}, delta
	}
	rec := *cur
	if isZero(Compute(rec, now)) {
		rec.Created = now
		rec.Value = delta
		return rec, delta
	}
	rec.Value += delta
	return rec, Compute(rec, now)
}

// decrement subtracts amount from the raw value of cur, clamping at zero.
// When the raw or the observable value reaches zero the record should be
// removed and the result is 0.
func decrement(cur Record, now int64, amount float64) (rec Record, v float64, remove bool) {
	raw := cur.Value - amount
	if raw < 0 {
		raw = 0
	}
	rec = cur
	rec.Value = raw
	if isZero(raw) {
		return rec, 0, true
	}
	v = Compute(rec, now)
	if isZero(v) {
		return rec, 0, true
	}
	return rec, v, false
}

// peek observes cur at now. A dead record should be removed.
func peek(cur Record, now int64) (v float64, remove bool) {
	v = Compute(cur, now)
	return v, isZero(v)
}

// Controller runs counter operations against a host Keyspace. It holds no
// record state of its own; every operation loads, steps and stores a record
// within one Keyspace.Update.
type Controller struct {
	ks  Keyspace
	typ Type
	now func() int64
	log *slog.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the millisecond clock used for decay. Defaults to wall time.
func WithClock(now func() int64) Option {
	return func(c *Controller) { c.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// New returns a Controller storing counters in ks under typ.
func New(ks Keyspace, typ Type, opts ...Option) *Controller {
	c := &Controller{
		ks:  ks,
		typ: typ,
		now: func() int64 { return time.Now().UnixMilli() },
		log: slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Type returns the type handle the controller stores counters under.
func (c *Controller) Type() Type {
	return c.typ
}

func (c *Controller) load(key string, s Slot) (*Record, error) {
	e, err := s.Get()
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	if e == nil {
		return nil, nil
	}
	rec, err := c.typ.Decode(*e)
	if err != nil {
		return nil, fmt.Errorf("key %s: %w", key, err)
	}
	return &rec, nil
}

// Increment adds delta to the counter at key, creating it with policy p if the
// key is absent, and returns the observable value.
func (c *Controller) Increment(ctx context.Context, key string, delta float64, p Policy) (float64, error) {
	if p.Interval.Count < 1 || !p.Interval.Unit.Valid() {
		return 0, fmt.Errorf("interval %s: %w", p.Interval, ErrSyntax)
	}

	var result float64
	err := c.ks.Update(ctx, key, func(s Slot) error {
		result = 0
		cur, err := c.load(key, s)
		if err != nil {
			return err
		}
		now := c.now()
		rec, v := increment(cur, now, delta, p)
		if err := s.Put(c.typ.Encode(rec)); err != nil {
			return fmt.Errorf("put %s: %w", key, err)
		}
		result = v
		if cur != nil && rec.Created != cur.Created {
			// A reset starts a new epoch; replay must not add to the old value.
			c.log.Debug("counter reset", logging.Key(key), "value", delta)
			if err := s.Replicate(CmdDel, key); err != nil {
				return err
			}
		}
		return s.Replicate(incrArgs(key, delta, p)...)
	})
	if err != nil {
		return 0, err
	}
	return result, nil
}

// Decrement subtracts amount from the counter at key. ok is false when the key
// does not exist; no record is created in that case.
func (c *Controller) Decrement(ctx context.Context, key string, amount float64) (v float64, ok bool, err error) {
	err = c.ks.Update(ctx, key, func(s Slot) error {
		v, ok = 0, false
		cur, err := c.load(key, s)
		if err != nil || cur == nil {
			return err
		}
		ok = true
		rec, val, remove := decrement(*cur, c.now(), amount)
		v = val
		if remove {
			if err := s.Delete(); err != nil {
				return fmt.Errorf("delete %s: %w", key, err)
			}
			c.log.Debug("counter decremented to zero", logging.Key(key))
			return s.Replicate(CmdDel, key)
		}
		if err := s.Put(c.typ.Encode(rec)); err != nil {
			return fmt.Errorf("put %s: %w", key, err)
		}
		return s.Replicate(CmdDecr, key, formatFloat(amount))
	})
	if err != nil {
		return 0, false, err
	}
	return v, ok, nil
}

// Peek returns the observable value of the counter at key without changing it.
// A counter observed at zero is deleted. ok is false when the key does not exist.
func (c *Controller) Peek(ctx context.Context, key string) (v float64, ok bool, err error) {
	err = c.ks.Update(ctx, key, func(s Slot) error {
		v, ok = 0, false
		cur, err := c.load(key, s)
		if err != nil || cur == nil {
			return err
		}
		ok = true
		val, remove := peek(*cur, c.now())
		v = val
		if !remove {
			return nil
		}
		if err := s.Delete(); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
		c.log.Debug("counter reaped", logging.Key(key))
		return s.Replicate(CmdDel, key)
	})
	if err != nil {
		return 0, false, err
	}
	return v, ok, nil
}

// Reply is the result of a command. Nil is set when the key did not exist.
type Reply struct {
	Value float64
	Nil   bool
}

// Exec runs a command given as argv, e.g. from a replayed journal:
//
//	DC.INCR key AMOUNT 5 DEGRADE_RATE 1 INTERVAL 30sec
//	DC.DECR key [amount]
//	DC.PEEK key
//	DEL key
func (c *Controller) Exec(ctx context.Context, argv []string) (Reply, error) {
	if len(argv) < 2 {
		return Reply{}, fmt.Errorf("wrong number of arguments: %w", ErrSyntax)
	}
	name, key, args := strings.ToUpper(argv[0]), argv[1], argv[2:]
	switch name {
	case CmdIncr:
		a, err := ParseIncrArgs(args)
		if err != nil {
			return Reply{}, err
		}
		v, err := c.Increment(ctx, key, a.Amount, a.Policy)
		return Reply{Value: v}, err
	case CmdDecr:
		amount, err := ParseDecrArgs(args)
		if err != nil {
			return Reply{}, err
		}
		v, ok, err := c.Decrement(ctx, key, amount)
		return Reply{Value: v, Nil: !ok}, err
	case CmdPeek:
		if len(args) != 0 {
			return Reply{}, fmt.Errorf("wrong number of arguments: %w", ErrSyntax)
		}
		v, ok, err := c.Peek(ctx, key)
		return Reply{Value: v, Nil: !ok}, err
	case CmdDel:
		if len(args) != 0 {
			return Reply{}, fmt.Errorf("wrong number of arguments: %w", ErrSyntax)
		}
		return c.del(ctx, key)
	}
	return Reply{}, fmt.Errorf("%q: %w", argv[0], ErrUnknownCommand)
}

// del removes key whatever it holds. The reply value is 1 if a key was removed.
func (c *Controller) del(ctx context.Context, key string) (Reply, error) {
	var removed bool
	err := c.ks.Update(ctx, key, func(s Slot) error {
		removed = false
		e, err := s.Get()
		if err != nil || e == nil {
			return err
		}
		removed = true
		if err := s.Delete(); err != nil {
			return err
		}
		return s.Replicate(CmdDel, key)
	})
	if err != nil {
		return Reply{}, err
	}
	if removed {
		return Reply{Value: 1}, nil
	}
	return Reply{}, nil
}

// Rewrite emits one increment command per live counter, in the form that
// recreates it on replay. Dead counters and keys of other types are skipped.
func (c *Controller) Rewrite(ctx context.Context, emit func(argv []string) error) error {
	now := c.now()
	return c.ks.Scan(ctx, func(key string, e Entry) error {
		if e.Type != c.typ.Name {
			return nil
		}
		rec, err := c.typ.Decode(e)
		if err != nil {
			c.log.Warn("rewrite: skipping unreadable counter", logging.Key(key), logging.Err(err))
			return nil
		}
		if isZero(Compute(rec, now)) {
			return nil
		}
		return emit(ReplayArgs(key, rec))
	})
}

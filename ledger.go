package elite

import (
	"context"

	"github.com/intrntsrfr/meido/pkg/mio"
	"go.uber.org/zap"
)

// maxRetries bounds the compare-and-set loop. Contention on a single account
// is rare, so hitting the ceiling means something is badly wrong or the store
// is being hammered; the caller gets ErrContentionExceeded and may retry.
const maxRetries = 5

// Ledger exposes atomic counter operations. Every mutation is a single
// compare-and-set transition; the engine never holds a lock across store I/O.
type Ledger struct {
	db       DB
	rules    *RuleSet
	notifier Notifier
	logger   mio.Logger
}

func NewLedger(db DB, rules *RuleSet, notifier Notifier, logger mio.Logger) *Ledger {
	return &Ledger{
		db:       db,
		rules:    rules,
		notifier: notifier,
		logger:   logger.Named("ledger"),
	}
}

// Get returns the current value of a counter. A counter that was never
// written reads as 0.
func (l *Ledger) Get(ctx context.Context, acct Account, name string) (int64, error) {
	def, ok := counterDefs[name]
	if !ok {
		return 0, ErrUnknownCounter
	}
	return l.db.GetCounter(ctx, def.scope(acct), name)
}

// Adjust adds delta to a counter and returns the new value. For counters
// declared non-negative, an adjustment that would take the value below zero
// fails with ErrInsufficientBalance and writes nothing.
func (l *Ledger) Adjust(ctx context.Context, acct Account, name string, delta int64) (int64, error) {
	return l.adjust(ctx, acct, name, delta, false)
}

// AdjustUnchecked adds delta without the non-negative guard. Used for the
// compensating leg of a transfer and for counters that may legitimately dip,
// regardless of their declaration.
func (l *Ledger) AdjustUnchecked(ctx context.Context, acct Account, name string, delta int64) (int64, error) {
	return l.adjust(ctx, acct, name, delta, true)
}

func (l *Ledger) adjust(ctx context.Context, acct Account, name string, delta int64, allowNegative bool) (int64, error) {
	def, ok := counterDefs[name]
	if !ok {
		return 0, ErrUnknownCounter
	}
	acct = def.scope(acct)

	for i := 0; i < maxRetries; i++ {
		old, err := l.db.GetCounter(ctx, acct, name)
		if err != nil {
			return 0, err
		}

		next := old + delta
		if !allowNegative && def.NonNegative && next < 0 {
			return 0, ErrInsufficientBalance
		}

		ok, err := l.db.CompareAndSetCounter(ctx, acct, name, old, next)
		if err != nil {
			return 0, err
		}
		if ok {
			l.evaluate(ctx, acct, name, old, next)
			return next, nil
		}
	}
	return 0, ErrContentionExceeded
}

// Set overwrites a counter unconditionally and returns the previous value. It
// still goes through the compare-and-set loop so it serializes correctly with
// concurrent adjustments.
func (l *Ledger) Set(ctx context.Context, acct Account, name string, value int64) (int64, error) {
	def, ok := counterDefs[name]
	if !ok {
		return 0, ErrUnknownCounter
	}
	acct = def.scope(acct)

	for i := 0; i < maxRetries; i++ {
		old, err := l.db.GetCounter(ctx, acct, name)
		if err != nil {
			return 0, err
		}
		if old == value {
			return old, nil
		}

		ok, err := l.db.CompareAndSetCounter(ctx, acct, name, old, value)
		if err != nil {
			return 0, err
		}
		if ok {
			l.evaluate(ctx, acct, name, old, value)
			return old, nil
		}
	}
	return 0, ErrContentionExceeded
}

// Transfer moves amount from one account to another. If the credit leg fails
// the debit is compensated, so a transfer either moves the full amount or
// moves nothing.
func (l *Ledger) Transfer(ctx context.Context, from, to Account, name string, amount int64) (int64, int64, error) {
	if amount < 0 {
		return 0, 0, ErrInvalidAmount
	}

	fromNew, err := l.adjust(ctx, from, name, -amount, false)
	if err != nil {
		return 0, 0, err
	}

	toNew, err := l.adjust(ctx, to, name, amount, true)
	if err != nil {
		if _, rbErr := l.adjust(ctx, from, name, amount, true); rbErr != nil {
			l.logger.Error("transfer rollback failed, counter total is off",
				zap.String("from", from.String()),
				zap.String("counter", name),
				zap.Int64("amount", amount),
				zap.Error(rbErr),
			)
		}
		return 0, 0, err
	}

	return fromNew, toNew, nil
}

// evaluate runs the registered rules for a committed transition and hands the
// resulting events to the notifier. Rule and notifier failures never unwind
// the mutation; it is already durable.
func (l *Ledger) evaluate(ctx context.Context, acct Account, name string, old, next int64) {
	if l.rules == nil {
		return
	}

	for _, r := range l.rules.For(name) {
		if !r.Predicate(old, next) {
			continue
		}

		if r.OneShot {
			first, err := l.db.MarkUnlocked(ctx, acct, r.ID)
			if err != nil {
				l.logger.Error("failed to mark rule unlocked",
					zap.String("rule", r.ID), zap.String("account", acct.String()), zap.Error(err))
				continue
			}
			if !first {
				// already unlocked, possibly by a concurrent adjustment
				continue
			}
		}

		evt := &Event{
			Kind:    r.Kind,
			RuleID:  r.ID,
			Account: acct,
			Counter: name,
			Old:     old,
			New:     next,
			Meta:    map[string]string{},
		}
		if r.Annotate != nil {
			r.Annotate(evt)
		}

		if r.Effect != nil {
			if err := r.Effect(ctx, l, acct, old, next); err != nil {
				l.logger.Error("rule effect failed",
					zap.String("rule", r.ID), zap.String("account", acct.String()), zap.Error(err))
			}
		}

		if l.notifier != nil {
			l.notifier.Notify(evt)
		}
	}
}

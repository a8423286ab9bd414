// Package ledger keeps a simulated carbon-credit account. One credit offsets
// one kilogram of CO2.
package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/carbonlane/core/lane"
)

const (
	// DefaultMaxPurchase caps a single purchase.
	DefaultMaxPurchase = 10000.0
	// DefaultHistoryLimit is the number of purchases Account returns.
	DefaultHistoryLimit = 20
)

// Purchase is one credit purchase.
type Purchase struct {
	ID           string    `json:"id"`
	Credits      float64   `json:"credits"`
	Timestamp    time.Time `json:"timestamp"`
	BalanceAfter float64   `json:"balance_after"`
}

// Account is the current balance and the newest purchases, newest last.
type Account struct {
	Balance float64    `json:"credits_balance"`
	History []Purchase `json:"purchase_history"`
}

// Ledger buys credits and reports the account.
type Ledger interface {
	Purchase(ctx context.Context, credits float64) (Purchase, error)
	Account(ctx context.Context) (Account, error)
}

// MemoryLedger is a process-lifetime Ledger.
type MemoryLedger struct {
	mu           sync.Mutex
	balance      float64
	history      []Purchase
	maxPurchase  float64
	historyLimit int
	clock        lane.Clock
}

// Option configures a MemoryLedger.
type Option func(*MemoryLedger)

// WithMaxPurchase overrides DefaultMaxPurchase.
func WithMaxPurchase(v float64) Option {
	return func(l *MemoryLedger) {
		if v > 0 {
			l.maxPurchase = v
		}
	}
}

// WithHistoryLimit overrides DefaultHistoryLimit.
func WithHistoryLimit(n int) Option {
	return func(l *MemoryLedger) {
		if n > 0 {
			l.historyLimit = n
		}
	}
}

// WithClock overrides the purchase timestamp source.
func WithClock(c lane.Clock) Option {
	return func(l *MemoryLedger) {
		if c != nil {
			l.clock = c
		}
	}
}

// NewMemoryLedger returns an empty ledger.
func NewMemoryLedger(opts ...Option) *MemoryLedger {
	l := &MemoryLedger{
		maxPurchase:  DefaultMaxPurchase,
		historyLimit: DefaultHistoryLimit,
		clock:        lane.SystemClock{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Purchase adds credits and appends the purchase to the history in one step.
func (l *MemoryLedger) Purchase(_ context.Context, credits float64) (Purchase, error) {
	if !(credits > 0) {
		return Purchase{}, lane.InvalidInput("credits", "must be a positive number")
	}
	if credits > l.maxPurchase {
		return Purchase{}, lane.InvalidInput("credits", "maximum %g credits per purchase", l.maxPurchase)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balance += credits
	p := Purchase{
		ID:           uuid.NewString(),
		Credits:      lane.Round(credits, 2),
		Timestamp:    l.clock.Now().UTC(),
		BalanceAfter: lane.Round(l.balance, 2),
	}
	l.history = append(l.history, p)
	return p, nil
}

// Account returns the balance and the last purchases.
func (l *MemoryLedger) Account(_ context.Context) (Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	start := 0
	if len(l.history) > l.historyLimit {
		start = len(l.history) - l.historyLimit
	}
	hist := make([]Purchase, len(l.history)-start)
	copy(hist, l.history[start:])
	return Account{Balance: lane.Round(l.balance, 2), History: hist}, nil
}

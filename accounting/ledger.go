// Package accounting tracks cumulative token usage and metered cost under
// caller-chosen keys, typically a backend name or a conversation id. The
// ledger is an in-process running total for budget checks and operator
// visibility; durable billing records live with the persistence collaborator,
// not here.
package accounting

import (
	"sync"

	"github.com/alphadose/haxmap"
	"github.com/paideia-ai/paideia/provider"
)

// Totals is the running consumption under one key.
type Totals struct {
	Usage   provider.Usage `json:"usage"`
	CostUSD float64        `json:"cost_usd"`
	Calls   int64          `json:"calls"`
}

// Ledger accumulates usage and cost per key. Safe for concurrent use; entries
// live until Reset.
type Ledger struct {
	mu     sync.Mutex
	totals *haxmap.Map[string, *Totals]
	grand  Totals
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		totals: haxmap.New[string, *Totals](),
	}
}

// Record adds one generation's usage and cost under the given key. The
// orchestrator records under the producing backend's name; callers metering a
// single conversation use its id.
func (l *Ledger) Record(key string, usage provider.Usage, costUSD float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	totals, _ := l.totals.GetOrCompute(key, func() *Totals { return &Totals{} })
	totals.Usage.Add(usage)
	totals.CostUSD += costUSD
	totals.Calls++

	l.grand.Usage.Add(usage)
	l.grand.CostUSD += costUSD
	l.grand.Calls++
}

// Totals returns the running totals for one key.
func (l *Ledger) Totals(key string) Totals {
	l.mu.Lock()
	defer l.mu.Unlock()
	if totals, ok := l.totals.Get(key); ok {
		return *totals
	}
	return Totals{}
}

// GrandTotal returns the running totals across all keys.
func (l *Ledger) GrandTotal() Totals {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.grand
}

// Reset clears all recorded totals.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.totals = haxmap.New[string, *Totals]()
	l.grand = Totals{}
}

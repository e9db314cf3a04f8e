package portfolio

import "sync"

// portfolioLocks serializes ledger mutations and recomputations per
// portfolio. Mutations on different portfolios proceed concurrently;
// two writers on the same portfolio queue up so each recomputation
// folds a consistent ledger.
type portfolioLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newPortfolioLocks() *portfolioLocks {
	return &portfolioLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for one portfolio, creating it on first use.
// Lock entries are never removed; the set of portfolios is small and
// the map only grows with live portfolios.
func (l *portfolioLocks) Lock(portfolioID string) *sync.Mutex {
	l.mu.Lock()
	m, ok := l.locks[portfolioID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[portfolioID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m
}

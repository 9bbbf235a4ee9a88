package service

import "sync"

// dayLocks hands out one mutex per day key. Entries are never evicted: a
// register sees one new day per calendar day.
type dayLocks struct {
	mu    sync.Mutex
	byDay map[string]*sync.Mutex
}

func newDayLocks() *dayLocks {
	return &dayLocks{byDay: make(map[string]*sync.Mutex)}
}

// lock acquires the mutex of day and returns its release function.
func (l *dayLocks) lock(day string) func() {
	l.mu.Lock()
	m, ok := l.byDay[day]
	if !ok {
		m = &sync.Mutex{}
		l.byDay[day] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

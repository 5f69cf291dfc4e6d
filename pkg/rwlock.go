package pkg

import "sync"

// RWLock is a reader/writer lock with explicit writer preference: once a
// writer is waiting, newly arriving readers queue behind it instead of
// joining the active read side. sync.RWMutex makes no such promise part of
// its documented contract, so the policy is spelled out here.
//
// The lock is not re-entrant and acquisition always blocks.
type RWLock struct {
	mu       sync.Mutex
	readers  int
	writer   bool
	waiting  int
	readCond  *sync.Cond
	writeCond *sync.Cond
}

func NewRWLock() *RWLock {
	l := &RWLock{}
	l.readCond = sync.NewCond(&l.mu)
	l.writeCond = sync.NewCond(&l.mu)
	return l
}

func (l *RWLock) RLock() {
	l.mu.Lock()
	for l.writer || l.waiting > 0 {
		l.readCond.Wait()
	}
	l.readers++
	l.mu.Unlock()
}

func (l *RWLock) RUnlock() {
	l.mu.Lock()
	l.readers--
	if l.readers == 0 {
		l.writeCond.Signal()
	}
	l.mu.Unlock()
}

func (l *RWLock) Lock() {
	l.mu.Lock()
	l.waiting++
	for l.writer || l.readers > 0 {
		l.writeCond.Wait()
	}
	l.waiting--
	l.writer = true
	l.mu.Unlock()
}

func (l *RWLock) Unlock() {
	l.mu.Lock()
	l.writer = false
	if l.waiting > 0 {
		l.writeCond.Signal()
	} else {
		l.readCond.Broadcast()
	}
	l.mu.Unlock()
}

type HasLocker interface{ GetLocker() *RWLock }

func LockWrap(i HasLocker, f func()) {
	i.GetLocker().Lock()
	defer i.GetLocker().Unlock()
	f()
}

func RLockWrap(i HasLocker, f func()) {
	i.GetLocker().RLock()
	defer i.GetLocker().RUnlock()
	f()
}

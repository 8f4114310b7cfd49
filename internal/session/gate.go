package session

import "sync"

// InterruptGate reports whether the avatar currently holds the floor
// (for example while it is speaking). The presentation layer owns it.
type InterruptGate interface {
	IsLocked() bool
	Lock()
	Unlock()
}

// MutexGate is a counting InterruptGate safe for concurrent use. Nested
// Lock calls need a matching number of Unlock calls.
type MutexGate struct {
	mu    sync.Mutex
	holds int
}

// NewMutexGate returns an unlocked gate.
func NewMutexGate() *MutexGate {
	return &MutexGate{}
}

func (g *MutexGate) IsLocked() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.holds > 0
}

func (g *MutexGate) Lock() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.holds++
}

// Unlock releases one hold. Unlocking an open gate is a no-op.
func (g *MutexGate) Unlock() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.holds > 0 {
		g.holds--
	}
}

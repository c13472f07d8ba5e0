package mediasaver

import (
	"context"
	"log/slog"
	"sync"
)

// MemoryPermissionGate keeps permission grants in memory. Requests are
// recorded as pending until Resolve is called with the user's answer.
type MemoryPermissionGate struct {
	mu      sync.Mutex
	granted map[string]bool
	pending map[string]bool
}

// NewPermissionGate creates a gate with the given permissions already granted.
func NewPermissionGate(granted ...string) *MemoryPermissionGate {
	g := &MemoryPermissionGate{
		granted: make(map[string]bool),
		pending: make(map[string]bool),
	}
	for _, p := range granted {
		g.granted[p] = true
	}
	return g
}

func (g *MemoryPermissionGate) Check(ctx context.Context, permission string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.granted[permission]
}

func (g *MemoryPermissionGate) Request(ctx context.Context, permission string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pending[permission] = true
	slog.InfoContext(ctx, "Permission requested", "permission", permission)
	return nil
}

func (g *MemoryPermissionGate) Resolve(ctx context.Context, permission string, granted bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.pending[permission] {
		return ErrNoPendingPermission
	}
	delete(g.pending, permission)
	if granted {
		g.granted[permission] = true
	} else {
		delete(g.granted, permission)
	}
	return nil
}

// Pending reports whether a request for permission awaits an answer.
func (g *MemoryPermissionGate) Pending(permission string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending[permission]
}

// AlwaysGranted is a gate for platforms without runtime storage permissions.
type AlwaysGranted struct{}

func (AlwaysGranted) Check(ctx context.Context, permission string) bool { return true }

func (AlwaysGranted) Request(ctx context.Context, permission string) error { return nil }

func (AlwaysGranted) Resolve(ctx context.Context, permission string, granted bool) error {
	return ErrNoPendingPermission
}

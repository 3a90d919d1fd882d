package session

import (
	"context"
	"time"
)

// Sweep evicts every session older than the retention window, whatever its
// device count. Members are told the session expired before it is deleted.
func (r *Registry) Sweep(now time.Time) []Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []Session
	for key, s := range r.sessions {
		if now.Sub(s.CreatedAt) <= r.ttl {
			continue
		}
		for _, d := range s.Devices {
			r.notify(d.ConnID, key, StatusExpired, MsgSessionExpired)
			delete(r.byConn, d.ConnID)
		}
		evicted = append(evicted, clone(s))
		delete(r.sessions, key)
		r.emit("expired")
	}
	return evicted
}

// RunSweeper sweeps on every tick until ctx is done.
func (r *Registry) RunSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.mu.Lock()
			now := r.now()
			r.mu.Unlock()
			r.Sweep(now)
		}
	}
}

// StartSweeper runs the sweeper in its own goroutine.
func (r *Registry) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() { _ = r.RunSweeper(ctx, interval) }()
}

package latest

import (
	"context"
	"errors"
	"sync"
)

// ErrStale is returned for a call that was superseded by a newer call (or an
// explicit Advance) on the same key before it completed.
var ErrStale = errors.New("result superseded by a newer request")

// Gate keeps one generation counter per channel key. Only the most recently
// issued call on a key yields its real result.
type Gate struct {
	mu   sync.Mutex
	gens map[string]uint64
}

func NewGate() *Gate {
	return &Gate{gens: make(map[string]uint64)}
}

// Advance invalidates every call currently in flight on key.
func (g *Gate) Advance(key string) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.gens[key]++
	return g.gens[key]
}

func (g *Gate) current(key string, token uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.gens[key] == token
}

// Do runs fn under key. If another call was issued on key while fn was running
// the result of fn is dropped and ErrStale returned instead. Errors from fn on
// a stale call are also reported as ErrStale.
func (g *Gate) Do(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	token := g.Advance(key)

	err := fn(ctx)

	if !g.current(key, token) {
		return ErrStale
	}
	return err
}

// Call is the typed form of Gate.Do.
func Call[T any](ctx context.Context, g *Gate, key string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := g.Do(ctx, key, func(ctx context.Context) error {
		res, err := fn(ctx)
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

package usecases_test

import (
	"context"
	"errors"
	"sync"

	"github.com/samirrijal/fieldmap/internal/core/domain"
)

// --- Mock Dispatcher ---

// queueDispatcher stands in for the owner loop. Posted tasks run only when
// the test calls Drain.
type queueDispatcher struct {
	mu    sync.Mutex
	tasks []func()
}

func (d *queueDispatcher) Post(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tasks = append(d.tasks, fn)
}

// Drain runs queued tasks, including ones posted while draining, and
// returns how many ran.
func (d *queueDispatcher) Drain() int {
	n := 0
	for {
		d.mu.Lock()
		if len(d.tasks) == 0 {
			d.mu.Unlock()
			return n
		}
		fn := d.tasks[0]
		d.tasks = d.tasks[1:]
		d.mu.Unlock()
		fn()
		n++
	}
}

func (d *queueDispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.tasks)
}

// --- Mock LocationProvider ---

type mockProvider struct {
	startFn func() error
	stopFn  func() error

	starts int
	stops  int
	sink   func(domain.GeoPoint)
}

func (p *mockProvider) Start(sink func(domain.GeoPoint)) error {
	p.starts++
	if p.startFn != nil {
		if err := p.startFn(); err != nil {
			return err
		}
	}
	p.sink = sink
	return nil
}

func (p *mockProvider) Stop() error {
	p.stops++
	if p.stopFn != nil {
		return p.stopFn()
	}
	return nil
}

// emit delivers a fix the way a provider goroutine would.
func (p *mockProvider) emit(fix domain.GeoPoint) {
	if p.sink != nil {
		p.sink(fix)
	}
}

// --- Mock CacheService ---

type mockCache struct {
	mu     sync.Mutex
	setFn  func(key string, value []byte, ttl int) error
	values map[string][]byte
	ttls   map[string]int
}

func newMockCache() *mockCache {
	return &mockCache{values: make(map[string][]byte), ttls: make(map[string]int)}
}
func (c *mockCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return v, nil
}

func (c *mockCache) Set(_ context.Context, key string, value []byte, ttlSeconds int) error {
	if c.setFn != nil {
		if err := c.setFn(key, value, ttlSeconds); err != nil {
			return err
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	c.ttls[key] = ttlSeconds
	return nil
}

func (c *mockCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, key)
	return nil
}

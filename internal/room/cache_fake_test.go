package room

import (
	"context"
	"time"
)

// fakeCache is an in-memory stand-in for the shared keyed store. TTLs are
// ignored; expire drops a key the way the real store's sweep would.
type fakeCache struct {
	values map[string]string
	sets   map[string]map[string]bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		values: make(map[string]string),
		sets:   make(map[string]map[string]bool),
	}
}

func (f *fakeCache) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *fakeCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	f.values[key] = value
	return nil
}

func (f *fakeCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.values, k)
	}
	return nil
}

func (f *fakeCache) SAdd(_ context.Context, set, member string) error {
	if f.sets[set] == nil {
		f.sets[set] = make(map[string]bool)
	}
	f.sets[set][member] = true
	return nil
}

func (f *fakeCache) SRem(_ context.Context, set, member string) (bool, error) {
	if f.sets[set][member] {
		delete(f.sets[set], member)
		return true, nil
	}
	return false, nil
}

func (f *fakeCache) SIsMember(_ context.Context, set, member string) (bool, error) {
	return f.sets[set][member], nil
}

func (f *fakeCache) expire(key string) { delete(f.values, key) }

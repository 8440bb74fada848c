package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"redis2redis/internal/store"
)

// noExpiry mirrors the source sentinel for keys without a TTL
const noExpiry = -1 * time.Millisecond

type fakeValue struct {
	payload string
	typ     string
	ttl     time.Duration
	size    int64
}

// fakeStore implements store.Client in memory. It plays the source role via
// keys/values and the target role via restored.
type fakeStore struct {
	mu       sync.Mutex
	keys     []string
	values   map[string]fakeValue
	restored map[string]store.RestoreItem

	pingErr       error
	scanErrOnCall int // 1-based call number that fails, 0 = never
	scanCalls     int
	dumpErr       map[string]error
	memErr        map[string]error
	typeErr       map[string]error
	pttlErr       map[string]error
	restoreErr    map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		values:     make(map[string]fakeValue),
		restored:   make(map[string]store.RestoreItem),
		dumpErr:    make(map[string]error),
		memErr:     make(map[string]error),
		typeErr:    make(map[string]error),
		pttlErr:    make(map[string]error),
		restoreErr: make(map[string]error),
	}
}

func (f *fakeStore) addKey(name string, v fakeValue) {
	f.keys = append(f.keys, name)
	f.values[name] = v
}

func (f *fakeStore) Ping(ctx context.Context) error {
	return f.pingErr
}

func (f *fakeStore) Scan(ctx context.Context, cursor uint64, count int64) ([]string, uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.scanCalls++
	if f.scanErrOnCall != 0 && f.scanCalls == f.scanErrOnCall {
		return nil, 0, fmt.Errorf("connection reset by peer")
	}

	start := int(cursor)
	if start >= len(f.keys) {
		return nil, 0, nil
	}

	end := start + int(count)
	if end >= len(f.keys) {
		return f.keys[start:], 0, nil
	}
	return f.keys[start:end], uint64(end), nil
}

func (f *fakeStore) MemoryUsage(ctx context.Context, key string) (int64, error) {
	if err := f.memErr[key]; err != nil {
		return 0, err
	}
	v, ok := f.values[key]
	if !ok {
		return 0, fmt.Errorf("no such key")
	}
	return v.size, nil
}

func (f *fakeStore) TypeOf(ctx context.Context, key string) (string, error) {
	if err := f.typeErr[key]; err != nil {
		return "", err
	}
	v, ok := f.values[key]
	if !ok {
		return "", fmt.Errorf("no such key")
	}
	return v.typ, nil
}

func (f *fakeStore) PTTL(ctx context.Context, key string) (time.Duration, error) {
	if err := f.pttlErr[key]; err != nil {
		return 0, err
	}
	v, ok := f.values[key]
	if !ok {
		return -2 * time.Millisecond, nil
	}
	return v.ttl, nil
}

func (f *fakeStore) DBSize(ctx context.Context) (int64, error) {
	return int64(len(f.keys)), nil
}

func (f *fakeStore) Dump(ctx context.Context, key string) ([]byte, error) {
	if err := f.dumpErr[key]; err != nil {
		return nil, err
	}
	v, ok := f.values[key]
	if !ok {
		return nil, fmt.Errorf("no such key")
	}
	return []byte(v.payload), nil
}

func (f *fakeStore) RestoreBatch(ctx context.Context, items []store.RestoreItem) []error {
	f.mu.Lock()
	defer f.mu.Unlock()

	errs := make([]error, len(items))
	for i, item := range items {
		if err := f.restoreErr[item.Key]; err != nil {
			errs[i] = err
			continue
		}
		f.restored[item.Key] = item
	}
	return errs
}

func (f *fakeStore) Close() error {
	return nil
}

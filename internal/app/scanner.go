package app

import (
	"context"

	"redis2redis/internal/store"
)

// KeyRecord is the Router's classification of one enumerated key. Size is -1
// when the source could not report it.
type KeyRecord struct {
	Name string
	Size int64
}

// Enumerator iterates the source keyspace in bounded batches via a cursor.
// Duplicate or missed keys under concurrent source mutation are a documented
// limitation of cursor enumeration, not handled here.
type Enumerator struct {
	src   store.Client
	count int64
}

// Next fetches one batch of keys. The returned cursor is 0 once the keyspace
// has been fully walked; callers must treat 0 as terminal only after the
// first call, since 0 is also the start sentinel.
func (e *Enumerator) Next(ctx context.Context, cursor uint64) ([]string, uint64, error) {
	keys, next, err := e.src.Scan(ctx, cursor, e.count)
	if err != nil {
		return nil, 0, &EnumerationError{Cursor: cursor, Err: err}
	}
	return keys, next, nil
}

// Router classifies keys as transferable or deferred by source-side size
type Router struct {
	src       store.Client
	sizeLimit int64
}

// Classify queries the key's size. A failed size query routes the key as
// transferable best-effort: the record carries Size -1 and the returned
// SizeQueryError is informational, not aborting.
func (r *Router) Classify(ctx context.Context, key string) (KeyRecord, error) {
	size, err := r.src.MemoryUsage(ctx, key)
	if err != nil {
		return KeyRecord{Name: key, Size: -1}, &SizeQueryError{Key: key, Err: err}
	}
	return KeyRecord{Name: key, Size: size}, nil
}

// Deferred reports whether a record exceeds the size limit. A key of exactly
// the limit is still transferable.
func (r *Router) Deferred(rec KeyRecord) bool {
	return rec.Size > r.sizeLimit
}

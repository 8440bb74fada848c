package app

import (
	"context"
	"time"

	"redis2redis/internal/journal"
	"redis2redis/internal/metrics"
	"redis2redis/internal/store"

	"go.uber.org/zap"
)

// Snapshot is a point-in-time copy of one key's serialized value and remaining
// lifetime. The serialized payload carries the value's type encoding, so the
// type needs no separate capture. TTLMillis of 0 means no expiration.
type Snapshot struct {
	Payload   []byte
	TTLMillis int64
}

// TransferResult counts the per-key outcomes of one batch
type TransferResult struct {
	Transferred int64
	Failed      int64
}

// BatchTransfer moves transferable keys from source to target. Writes for one
// batch are queued on a pipeline and flushed together, but each key succeeds
// or fails independently: the batch is not atomic.
type BatchTransfer struct {
	src     store.Client
	dst     store.Client
	journal journal.Store
	metrics *metrics.Collector
	logger  *zap.Logger
}

// Transfer captures a snapshot per key, queues replace-writes, and flushes the
// batch. Per-key failures are logged, journaled, and counted; they never stop
// the remaining keys of the batch.
func (t *BatchTransfer) Transfer(ctx context.Context, recs []KeyRecord) TransferResult {
	var res TransferResult

	items := make([]store.RestoreItem, 0, len(recs))
	queued := make([]KeyRecord, 0, len(recs))

	for _, rec := range recs {
		snap, err := t.capture(ctx, rec.Name)
		if err != nil {
			res.Failed++
			t.failKey(rec, err)
			continue
		}

		items = append(items, store.RestoreItem{
			Key:       rec.Name,
			Payload:   snap.Payload,
			TTLMillis: snap.TTLMillis,
		})
		queued = append(queued, rec)
	}

	if len(items) == 0 {
		return res
	}

	for i, err := range t.dst.RestoreBatch(ctx, items) {
		if err != nil {
			res.Failed++
			t.failKey(queued[i], &TransferError{Key: queued[i].Name, Op: "restore", Err: err})
			continue
		}

		res.Transferred++
		t.metrics.IncTransferred(queued[i].Size)
		t.logger.Debug("Key transferred",
			zap.String("key", queued[i].Name),
			zap.Int64("size", queued[i].Size),
		)
	}

	return res
}

// capture serializes the key and reads its remaining lifetime
func (t *BatchTransfer) capture(ctx context.Context, key string) (*Snapshot, error) {
	payload, err := t.src.Dump(ctx, key)
	if err != nil {
		return nil, &TransferError{Key: key, Op: "dump", Err: err}
	}

	ttl, err := t.src.PTTL(ctx, key)
	if err != nil {
		return nil, &TransferError{Key: key, Op: "pttl", Err: err}
	}

	return &Snapshot{
		Payload:   payload,
		TTLMillis: normalizeTTL(ttl),
	}, nil
}

// normalizeTTL converts a remaining lifetime to absolute milliseconds. The
// source's negative sentinels (no expiration, or key gone between snapshot
// steps) both map to 0, "no expiration".
func normalizeTTL(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return ttl.Milliseconds()
}

func (t *BatchTransfer) failKey(rec KeyRecord, err error) {
	t.metrics.IncFailed()
	t.logger.Warn("Key transfer failed",
		zap.String("key", rec.Name),
		zap.Int64("size", rec.Size),
		zap.Error(err),
	)

	if t.journal == nil {
		return
	}
	event := &journal.KeyEvent{
		Key:    rec.Name,
		Kind:   journal.KindFailed,
		Size:   rec.Size,
		Detail: err.Error(),
	}
	if jerr := t.journal.RecordEvent(event); jerr != nil {
		t.logger.Error("Failed to journal key failure",
			zap.String("key", rec.Name),
			zap.Error(jerr),
		)
	}
}

package app

import (
	"context"

	"redis2redis/internal/journal"
	"redis2redis/internal/manifest"
	"redis2redis/internal/store"

	"go.uber.org/zap"
)

// DeferredEntry is one key excluded from direct transfer because of its size.
// The Router records name and size during the main pass; the processor fills
// in type and lifetime when it writes the manifest.
type DeferredEntry struct {
	Name      string
	Type      string
	TTLMillis int64
	Size      int64
}

// DeferredProcessor records deferred keys to the durable manifest for manual
// handling. It runs once, after the main pass has finished, so the entry list
// it consumes is complete and no longer mutated.
type DeferredProcessor struct {
	src     store.Client
	journal journal.Store
	logger  *zap.Logger
}

// Run re-queries each entry's type, lifetime, and size from the source and
// appends a manifest line. Per-entry failures are logged and counted; they do
// not stop the remaining entries. Returns the number of entries whose manifest
// line was omitted.
func (p *DeferredProcessor) Run(ctx context.Context, entries []DeferredEntry, manifestPath string) (int64, error) {
	p.logger.Info("Processing deferred keys", zap.Int("count", len(entries)))

	writer, err := manifest.Create(manifestPath)
	if err != nil {
		return int64(len(entries)), err
	}
	defer writer.Close()

	var failed int64
	for _, entry := range entries {
		if err := p.process(ctx, entry, writer); err != nil {
			failed++
			p.logger.Warn("Deferred key not recorded",
				zap.String("key", entry.Name),
				zap.Error(err),
			)
		}
	}

	p.logger.Info("Deferred key processing complete",
		zap.String("manifest", manifestPath),
		zap.Int("recorded", len(entries)-int(failed)),
		zap.Int64("failed", failed),
	)

	return failed, nil
}

func (p *DeferredProcessor) process(ctx context.Context, entry DeferredEntry, writer *manifest.Writer) error {
	keyType, err := p.src.TypeOf(ctx, entry.Name)
	if err != nil {
		return &DeferredEntryError{Key: entry.Name, Err: err}
	}
	entry.Type = keyType

	ttl, err := p.src.PTTL(ctx, entry.Name)
	if err != nil {
		return &DeferredEntryError{Key: entry.Name, Err: err}
	}
	entry.TTLMillis = normalizeTTL(ttl)

	// Size is re-read so the manifest reflects the key as it is now; the
	// routed size stands in if the query fails.
	if size, err := p.src.MemoryUsage(ctx, entry.Name); err == nil {
		entry.Size = size
	}

	if err := writer.Append(manifest.Entry{
		Name:      entry.Name,
		Type:      entry.Type,
		TTLMillis: entry.TTLMillis,
		Size:      entry.Size,
	}); err != nil {
		return &DeferredEntryError{Key: entry.Name, Err: err}
	}

	p.logger.Info("Captured deferred key",
		zap.String("key", entry.Name),
		zap.String("type", entry.Type),
		zap.Int64("size", entry.Size),
	)

	if p.journal != nil {
		event := &journal.KeyEvent{
			Key:       entry.Name,
			Kind:      journal.KindDeferred,
			Size:      entry.Size,
			Type:      entry.Type,
			TTLMillis: entry.TTLMillis,
		}
		if jerr := p.journal.RecordEvent(event); jerr != nil {
			p.logger.Error("Failed to journal deferred key",
				zap.String("key", entry.Name),
				zap.Error(jerr),
			)
		}
	}

	return nil
}

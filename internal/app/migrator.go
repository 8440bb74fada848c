package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"redis2redis/internal/config"
	"redis2redis/internal/journal"
	"redis2redis/internal/metrics"
	"redis2redis/internal/progress"
	"redis2redis/internal/store"

	"go.uber.org/zap"
)

// State is the run coordinator's phase
type State string

const (
	StateConnecting                 State = "connecting"
	StateScanning                   State = "scanning"
	StateAwaitingDeferredProcessing State = "awaiting_deferred_processing"
	StateDone                       State = "done"
	StateFailed                     State = "failed"
)

// Outcome summarizes a migration run. Every scanned key lands in exactly one
// of transferred, deferred, or failed.
type Outcome struct {
	Scanned         int64
	Transferred     int64
	Deferred        int64
	Failed          int64
	SizeQueryMisses int64
	DeferredErrors  int64
	State           State
}

// Migrator coordinates the migration run: it owns both store connections,
// drives enumeration, routing, and transfer to completion, then forks the
// deferred processor and joins it before reporting.
type Migrator struct {
	cfg     *config.Config
	logger  *zap.Logger
	src     store.Client
	dst     store.Client
	journal journal.Store
	metrics *metrics.Collector

	state    State
	deferred []DeferredEntry
	outcome  Outcome
}

// New creates a new migrator instance
func New(cfg *config.Config, logger *zap.Logger) (*Migrator, error) {
	timeout := cfg.Migration.Timeout()

	src := store.NewRedisClient(store.Config{
		Host:     cfg.Source.Host,
		Port:     cfg.Source.Port,
		Password: cfg.Source.Password,
		DB:       cfg.Source.DB,
		Timeout:  timeout,
	})

	dst := store.NewRedisClient(store.Config{
		Host:     cfg.Target.Host,
		Port:     cfg.Target.Port,
		Password: cfg.Target.Password,
		DB:       cfg.Target.DB,
		Timeout:  timeout,
	})

	var journalStore journal.Store
	if cfg.Migration.Journal != "" {
		js, err := journal.NewSQLiteStore(cfg.Migration.Journal)
		if err != nil {
			return nil, fmt.Errorf("failed to create journal store: %w", err)
		}
		journalStore = js
	}

	return &Migrator{
		cfg:     cfg,
		logger:  logger,
		src:     src,
		dst:     dst,
		journal: journalStore,
		metrics: metrics.New(),
		state:   StateConnecting,
	}, nil
}

// Run executes the migration and returns the final outcome. The returned
// error is non-nil only on the fatal paths: connection failure, enumeration
// failure, or cancellation. Per-key failures are reported in the outcome.
func (m *Migrator) Run(ctx context.Context) (*Outcome, error) {
	m.setState(StateConnecting)

	if err := m.src.Ping(ctx); err != nil {
		return m.fail(&ConnectionError{Side: "source", Err: err})
	}
	if err := m.dst.Ping(ctx); err != nil {
		return m.fail(&ConnectionError{Side: "target", Err: err})
	}
	m.logger.Info("Connected to source and target stores",
		zap.String("source", fmt.Sprintf("%s:%d", m.cfg.Source.Host, m.cfg.Source.Port)),
		zap.String("target", fmt.Sprintf("%s:%d", m.cfg.Target.Host, m.cfg.Target.Port)),
	)

	if m.journal != nil {
		if err := m.journal.Reset(); err != nil {
			m.logger.Warn("Failed to reset journal", zap.Error(err))
		}
	}

	if addr := m.cfg.Migration.MetricsAddr; addr != "" {
		go func() {
			if err := m.metrics.StartServer(addr); err != nil {
				m.logger.Error("Failed to start metrics server", zap.Error(err))
			}
		}()
	}

	// Approximate count, used only for progress display
	if total, err := m.src.DBSize(ctx); err == nil {
		m.metrics.SetTotalKeys(total)
		m.logger.Info("Source keyspace counted", zap.Int64("keys", total))
	} else {
		m.logger.Warn("Failed to count source keyspace", zap.Error(err))
	}

	var display *progress.Display
	if m.cfg.Migration.ShowProgress && progress.IsTerminalSupported() {
		display = progress.NewDisplay(m.metrics.GetProgressTracker(), 2*time.Second)
		display.Start()
	}

	m.setState(StateScanning)
	m.logger.Info("Scanning keyspace",
		zap.Int64("batch_size", m.cfg.Migration.BatchSize),
		zap.String("size_limit", progress.FormatBytes(m.cfg.Migration.SizeLimit)),
	)
	scanErr := m.scan(ctx)

	// After a fatal scan error the entries classified so far are still
	// written out: the manifest is their only record.
	m.setState(StateAwaitingDeferredProcessing)
	if scanErr == nil || len(m.deferred) > 0 {
		m.processDeferred(ctx)
	}

	if display != nil {
		display.Stop()
	}

	if scanErr != nil {
		return m.fail(scanErr)
	}

	m.setState(StateDone)
	m.outcome.State = StateDone
	m.logger.Info("Migration completed",
		zap.Int64("scanned", m.outcome.Scanned),
		zap.Int64("transferred", m.outcome.Transferred),
		zap.Int64("deferred", m.outcome.Deferred),
		zap.Int64("failed", m.outcome.Failed),
	)

	outcome := m.outcome
	return &outcome, nil
}

// scan drives Enumerator, Router, and BatchTransfer until the cursor returns
// to the terminal sentinel. Only enumeration errors abort it.
func (m *Migrator) scan(ctx context.Context) error {
	enum := &Enumerator{src: m.src, count: m.cfg.Migration.BatchSize}
	router := &Router{src: m.src, sizeLimit: m.cfg.Migration.SizeLimit}
	xfer := &BatchTransfer{
		src:     m.src,
		dst:     m.dst,
		journal: m.journal,
		metrics: m.metrics,
		logger:  m.logger,
	}

	cursor := uint64(0)
	for {
		// The batch boundary is the clean cancellation point.
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		keys, next, err := enum.Next(ctx, cursor)
		if err != nil {
			return err
		}

		start := time.Now()
		batch := make([]KeyRecord, 0, len(keys))
		for _, key := range keys {
			m.outcome.Scanned++

			rec, cerr := router.Classify(ctx, key)
			if cerr != nil {
				m.outcome.SizeQueryMisses++
				m.logger.Warn("Key size unknown, transferring anyway",
					zap.String("key", key),
					zap.Error(cerr),
				)
			}

			if router.Deferred(rec) {
				m.outcome.Deferred++
				m.metrics.IncDeferred()
				m.deferred = append(m.deferred, DeferredEntry{Name: rec.Name, Size: rec.Size})
				m.logger.Debug("Key deferred",
					zap.String("key", key),
					zap.Int64("size", rec.Size),
				)
				continue
			}

			batch = append(batch, rec)
		}

		res := xfer.Transfer(ctx, batch)
		m.outcome.Transferred += res.Transferred
		m.outcome.Failed += res.Failed
		m.metrics.ObserveBatchDuration(time.Since(start))

		if next == 0 {
			break
		}
		cursor = next
	}

	return nil
}

// processDeferred hands the accumulated entries to the processor, runs it as
// a single concurrent unit of work, and joins it. Ownership of the list
// transfers here; the coordinator does not touch it afterwards.
func (m *Migrator) processDeferred(ctx context.Context) {
	entries := m.deferred
	m.deferred = nil

	proc := &DeferredProcessor{
		src:     m.src,
		journal: m.journal,
		logger:  m.logger,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		// The fork must complete even when the run was cancelled, so the
		// manifest record of classified entries is not lost.
		failed, err := proc.Run(context.WithoutCancel(ctx), entries, m.cfg.Migration.Manifest)
		m.outcome.DeferredErrors = failed
		if err != nil {
			m.outcome.DeferredErrors = int64(len(entries))
			m.logger.Error("Deferred processing failed", zap.Error(err))
		}
	}()
	wg.Wait()
}

func (m *Migrator) fail(err error) (*Outcome, error) {
	m.setState(StateFailed)
	m.outcome.State = StateFailed
	m.logger.Error("Migration failed", zap.Error(err))

	outcome := m.outcome
	return &outcome, err
}

func (m *Migrator) setState(state State) {
	m.state = state
	m.logger.Debug("State transition", zap.String("state", string(state)))
}

// Close cleans up resources
func (m *Migrator) Close() error {
	if m.journal != nil {
		if err := m.journal.Close(); err != nil {
			m.logger.Error("Error closing journal", zap.Error(err))
		}
	}
	if err := m.src.Close(); err != nil {
		m.logger.Error("Error closing source client", zap.Error(err))
	}
	return m.dst.Close()
}

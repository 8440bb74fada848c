package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"redis2redis/internal/config"
	"redis2redis/internal/journal"
	"redis2redis/internal/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const mib = 1024 * 1024

func newTestMigrator(t *testing.T, src, dst *fakeStore, sizeLimit int64) *Migrator {
	t.Helper()

	cfg := &config.Config{
		Migration: config.Migration{
			BatchSize:      2,
			SizeLimit:      sizeLimit,
			Manifest:       filepath.Join(t.TempDir(), "large_keys.txt"),
			TimeoutSeconds: 60,
		},
	}

	return &Migrator{
		cfg:     cfg,
		logger:  zap.NewNop(),
		src:     src,
		dst:     dst,
		metrics: metrics.New(),
		state:   StateConnecting,
	}
}

func readManifest(t *testing.T, m *Migrator) string {
	t.Helper()
	data, err := os.ReadFile(m.cfg.Migration.Manifest)
	require.NoError(t, err)
	return string(data)
}

func TestRunScenario(t *testing.T) {
	src := newFakeStore()
	src.addKey("a", fakeValue{payload: "dump-a", typ: "string", ttl: noExpiry, size: 1 * mib})
	src.addKey("b", fakeValue{payload: "dump-b", typ: "hash", ttl: noExpiry, size: 20 * mib})
	src.addKey("c", fakeValue{payload: "dump-c", typ: "string", ttl: noExpiry, size: 2 * mib})
	dst := newFakeStore()

	m := newTestMigrator(t, src, dst, 10*mib)
	outcome, err := m.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, StateDone, outcome.State)
	assert.Equal(t, int64(3), outcome.Scanned)
	assert.Equal(t, int64(2), outcome.Transferred)
	assert.Equal(t, int64(1), outcome.Deferred)
	assert.Equal(t, int64(0), outcome.Failed)

	// a and c land on the target, b does not
	assert.Contains(t, dst.restored, "a")
	assert.Contains(t, dst.restored, "c")
	assert.NotContains(t, dst.restored, "b")
	assert.Equal(t, []byte("dump-a"), dst.restored["a"].Payload)

	// b is listed in the manifest with its byte size
	content := readManifest(t, m)
	assert.Equal(t, "Key: b, Type: hash, TTL: 0, Size: 20971520 bytes\n", content)
}

func TestRunSizeBoundary(t *testing.T) {
	src := newFakeStore()
	src.addKey("at-limit", fakeValue{payload: "p1", typ: "string", ttl: noExpiry, size: 10 * mib})
	src.addKey("over-limit", fakeValue{payload: "p2", typ: "string", ttl: noExpiry, size: 10*mib + 1})
	dst := newFakeStore()

	m := newTestMigrator(t, src, dst, 10*mib)
	outcome, err := m.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(1), outcome.Transferred)
	assert.Equal(t, int64(1), outcome.Deferred)
	assert.Contains(t, dst.restored, "at-limit")
	assert.NotContains(t, dst.restored, "over-limit")
}

func TestRunTTLNormalization(t *testing.T) {
	src := newFakeStore()
	src.addKey("expiring", fakeValue{payload: "p1", typ: "string", ttl: 90 * time.Second, size: 100})
	src.addKey("persistent", fakeValue{payload: "p2", typ: "string", ttl: noExpiry, size: 100})
	dst := newFakeStore()

	m := newTestMigrator(t, src, dst, 10*mib)
	_, err := m.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(90000), dst.restored["expiring"].TTLMillis)
	assert.Equal(t, int64(0), dst.restored["persistent"].TTLMillis)
}

func TestRunDumpFailureIsolated(t *testing.T) {
	src := newFakeStore()
	src.addKey("a", fakeValue{payload: "p1", typ: "string", ttl: noExpiry, size: 100})
	src.addKey("d", fakeValue{payload: "p2", typ: "string", ttl: noExpiry, size: 100})
	src.addKey("e", fakeValue{payload: "p3", typ: "string", ttl: noExpiry, size: 100})
	src.dumpErr["d"] = errors.New("serialize error")
	dst := newFakeStore()

	m := newTestMigrator(t, src, dst, 10*mib)
	outcome, err := m.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, StateDone, outcome.State)
	assert.Equal(t, int64(2), outcome.Transferred)
	assert.Equal(t, int64(1), outcome.Failed)
	assert.NotContains(t, dst.restored, "d")
	assert.Contains(t, dst.restored, "e")
}

func TestRunRestoreFailureIsolated(t *testing.T) {
	src := newFakeStore()
	src.addKey("a", fakeValue{payload: "p1", typ: "string", ttl: noExpiry, size: 100})
	src.addKey("b", fakeValue{payload: "p2", typ: "string", ttl: noExpiry, size: 100})
	dst := newFakeStore()
	dst.restoreErr["a"] = errors.New("BUSYKEY target key exists")

	m := newTestMigrator(t, src, dst, 10*mib)
	outcome, err := m.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(1), outcome.Transferred)
	assert.Equal(t, int64(1), outcome.Failed)
	assert.Contains(t, dst.restored, "b")
}

func TestRunEnumerationFailureIsFatal(t *testing.T) {
	src := newFakeStore()
	for _, k := range []string{"k1", "k2", "k3", "k4"} {
		src.addKey(k, fakeValue{payload: "p-" + k, typ: "string", ttl: noExpiry, size: 100})
	}
	src.scanErrOnCall = 2
	dst := newFakeStore()

	m := newTestMigrator(t, src, dst, 10*mib)
	outcome, err := m.Run(context.Background())

	require.Error(t, err)
	var enumErr *EnumerationError
	assert.True(t, errors.As(err, &enumErr))
	assert.True(t, IsFatal(err))
	assert.Equal(t, StateFailed, outcome.State)

	// The first batch's writes stay applied; there is no rollback.
	assert.Contains(t, dst.restored, "k1")
	assert.Contains(t, dst.restored, "k2")
	assert.NotContains(t, dst.restored, "k3")
}

func TestRunDeferredProcessedAfterFatalScan(t *testing.T) {
	src := newFakeStore()
	src.addKey("big", fakeValue{payload: "p1", typ: "set", ttl: noExpiry, size: 20 * mib})
	src.addKey("small", fakeValue{payload: "p2", typ: "string", ttl: noExpiry, size: 100})
	src.addKey("unreached", fakeValue{payload: "p3", typ: "string", ttl: noExpiry, size: 100})
	src.scanErrOnCall = 2
	dst := newFakeStore()

	m := newTestMigrator(t, src, dst, 10*mib)
	outcome, err := m.Run(context.Background())

	require.Error(t, err)
	assert.Equal(t, StateFailed, outcome.State)
	assert.Equal(t, int64(1), outcome.Deferred)

	// Entries classified before the failure still reach the manifest
	content := readManifest(t, m)
	assert.Contains(t, content, "Key: big, Type: set,")
}

func TestRunIdempotent(t *testing.T) {
	src := newFakeStore()
	src.addKey("a", fakeValue{payload: "p1", typ: "string", ttl: noExpiry, size: 100})
	src.addKey("b", fakeValue{payload: "p2", typ: "list", ttl: 30 * time.Second, size: 200})
	dst := newFakeStore()

	m := newTestMigrator(t, src, dst, 10*mib)
	_, err := m.Run(context.Background())
	require.NoError(t, err)
	first := map[string][]byte{}
	for k, v := range dst.restored {
		first[k] = v.Payload
	}

	src.scanCalls = 0
	m2 := newTestMigrator(t, src, dst, 10*mib)
	outcome, err := m2.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), outcome.Transferred)

	require.Len(t, dst.restored, len(first))
	for k, payload := range first {
		assert.Equal(t, payload, dst.restored[k].Payload)
	}
}

func TestRunSizeQueryFailureRoutesTransferable(t *testing.T) {
	src := newFakeStore()
	src.addKey("opaque", fakeValue{payload: "p1", typ: "string", ttl: noExpiry, size: 100})
	src.memErr["opaque"] = errors.New("MEMORY USAGE unsupported")
	dst := newFakeStore()

	m := newTestMigrator(t, src, dst, 10*mib)
	outcome, err := m.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(1), outcome.Transferred)
	assert.Equal(t, int64(0), outcome.Deferred)
	assert.Equal(t, int64(1), outcome.SizeQueryMisses)
	assert.Contains(t, dst.restored, "opaque")
}

func TestRunConnectionFailure(t *testing.T) {
	src := newFakeStore()
	src.pingErr = errors.New("NOAUTH Authentication required")
	dst := newFakeStore()

	m := newTestMigrator(t, src, dst, 10*mib)
	outcome, err := m.Run(context.Background())

	require.Error(t, err)
	var connErr *ConnectionError
	require.True(t, errors.As(err, &connErr))
	assert.Equal(t, "source", connErr.Side)
	assert.Equal(t, StateFailed, outcome.State)
	assert.Equal(t, int64(0), outcome.Scanned)
}

func TestRunEmptyKeyspaceTruncatesManifest(t *testing.T) {
	src := newFakeStore()
	dst := newFakeStore()

	m := newTestMigrator(t, src, dst, 10*mib)

	// Leftover manifest from an earlier run must not survive
	require.NoError(t, os.WriteFile(m.cfg.Migration.Manifest, []byte("Key: stale\n"), 0o644))

	outcome, err := m.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, StateDone, outcome.State)
	assert.Equal(t, int64(0), outcome.Scanned)
	assert.Empty(t, readManifest(t, m))
}

func TestRunCancelledBetweenBatches(t *testing.T) {
	src := newFakeStore()
	src.addKey("a", fakeValue{payload: "p1", typ: "string", ttl: noExpiry, size: 100})
	dst := newFakeStore()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := newTestMigrator(t, src, dst, 10*mib)
	outcome, err := m.Run(ctx)

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateFailed, outcome.State)
	assert.Empty(t, dst.restored)
}

func TestRunJournalsFailuresAndDeferrals(t *testing.T) {
	src := newFakeStore()
	src.addKey("broken", fakeValue{payload: "p1", typ: "string", ttl: noExpiry, size: 100})
	src.addKey("big", fakeValue{payload: "p2", typ: "hash", ttl: noExpiry, size: 20 * mib})
	src.dumpErr["broken"] = errors.New("serialize error")
	dst := newFakeStore()

	m := newTestMigrator(t, src, dst, 10*mib)
	js, err := journal.NewSQLiteStore(filepath.Join(t.TempDir(), "migration.db"))
	require.NoError(t, err)
	defer js.Close()
	m.journal = js

	_, err = m.Run(context.Background())
	require.NoError(t, err)

	failed, err := js.ListEvents(journal.KindFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "broken", failed[0].Key)

	deferred, err := js.ListEvents(journal.KindDeferred)
	require.NoError(t, err)
	require.Len(t, deferred, 1)
	assert.Equal(t, "big", deferred[0].Key)
	assert.Equal(t, "hash", deferred[0].Type)
	assert.Equal(t, int64(20*mib), deferred[0].Size)
}

func TestRunEveryKeyAccountedFor(t *testing.T) {
	src := newFakeStore()
	src.addKey("ok1", fakeValue{payload: "p1", typ: "string", ttl: noExpiry, size: 100})
	src.addKey("big", fakeValue{payload: "p2", typ: "zset", ttl: noExpiry, size: 20 * mib})
	src.addKey("broken", fakeValue{payload: "p3", typ: "string", ttl: noExpiry, size: 100})
	src.addKey("ok2", fakeValue{payload: "p4", typ: "string", ttl: noExpiry, size: 100})
	src.dumpErr["broken"] = errors.New("serialize error")
	dst := newFakeStore()

	m := newTestMigrator(t, src, dst, 10*mib)
	outcome, err := m.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, outcome.Scanned, outcome.Transferred+outcome.Deferred+outcome.Failed)
}

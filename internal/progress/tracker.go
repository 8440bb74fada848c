package progress

import (
	"fmt"
	"sync"
	"time"
)

// Status represents the current migration status
type Status struct {
	TotalKeys      int64
	Processed      int64
	Transferred    int64
	Deferred       int64
	Failed         int64
	StartTime      time.Time
	LastUpdateTime time.Time
}

// Tracker tracks migration progress
type Tracker struct {
	mu     sync.RWMutex
	status Status
}

// NewTracker creates a new progress tracker
func NewTracker() *Tracker {
	now := time.Now()
	return &Tracker{
		status: Status{
			StartTime:      now,
			LastUpdateTime: now,
		},
	}
}

// SetTotal sets the approximate total number of keys
func (t *Tracker) SetTotal(keys int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status.TotalKeys = keys
}

// AddTransferred increments transferred key count
func (t *Tracker) AddTransferred(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status.Transferred += n
	t.status.Processed += n
	t.status.LastUpdateTime = time.Now()
}

// AddDeferred increments deferred key count
func (t *Tracker) AddDeferred(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status.Deferred += n
	t.status.Processed += n
	t.status.LastUpdateTime = time.Now()
}

// AddFailed increments failed key count
func (t *Tracker) AddFailed(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status.Failed += n
	t.status.Processed += n
	t.status.LastUpdateTime = time.Now()
}

// GetStatus returns the current status (thread-safe)
func (t *Tracker) GetStatus() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.status
}

// GetProgressPercent returns the progress percentage. The total comes from an
// approximate key count, so the value can overshoot 100 under source mutation.
func (t *Tracker) GetProgressPercent() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.status.TotalKeys == 0 {
		return 0
	}

	return float64(t.status.Processed) / float64(t.status.TotalKeys) * 100
}

// Rate returns the average processing rate in keys per second
func (t *Tracker) Rate() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	elapsed := time.Since(t.status.StartTime)
	if elapsed <= 0 {
		return 0
	}
	return float64(t.status.Processed) / elapsed.Seconds()
}

// ETA returns the estimated time to completion, 0 when unknown
func (t *Tracker) ETA() time.Duration {
	rate := t.Rate()

	t.mu.RLock()
	defer t.mu.RUnlock()

	remaining := t.status.TotalKeys - t.status.Processed
	if remaining <= 0 || rate == 0 {
		return 0
	}
	return time.Duration(float64(remaining)/rate) * time.Second
}

// FormatBytes formats bytes in human readable format
func FormatBytes(bytes int64) string {
	switch {
	case bytes < 1024:
		return fmt.Sprintf("%d B", bytes)
	case bytes < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(bytes)/1024)
	case bytes < 1024*1024*1024:
		return fmt.Sprintf("%.1f MB", float64(bytes)/(1024*1024))
	default:
		return fmt.Sprintf("%.1f GB", float64(bytes)/(1024*1024*1024))
	}
}

// FormatDuration formats duration in human readable format
func FormatDuration(d time.Duration) string {
	if d == 0 {
		return "unknown"
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}

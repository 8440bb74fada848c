package progress

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Display periodically renders migration progress to the console
type Display struct {
	tracker  *Tracker
	interval time.Duration
	stopCh   chan struct{}
}

// NewDisplay creates a new progress display
func NewDisplay(tracker *Tracker, interval time.Duration) *Display {
	return &Display{
		tracker:  tracker,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start starts the progress display
func (d *Display) Start() {
	go d.displayLoop()
}

// Stop stops the progress display and renders a final line
func (d *Display) Stop() {
	close(d.stopCh)
}

func (d *Display) displayLoop() {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.render(false)
		case <-d.stopCh:
			d.render(true)
			return
		}
	}
}

func (d *Display) render(final bool) {
	status := d.tracker.GetStatus()
	percent := d.tracker.GetProgressPercent()

	line := fmt.Sprintf("\r%s %d/%d keys (transferred=%d deferred=%d failed=%d) %.1f keys/s elapsed=%s",
		progressBar(percent, 30),
		status.Processed,
		status.TotalKeys,
		status.Transferred,
		status.Deferred,
		status.Failed,
		d.tracker.Rate(),
		FormatDuration(time.Since(status.StartTime).Round(time.Second)),
	)

	fmt.Fprint(os.Stdout, line)
	if final {
		fmt.Fprintln(os.Stdout)
	}
}

func progressBar(percent float64, width int) string {
	if percent > 100 {
		percent = 100
	}
	if percent < 0 {
		percent = 0
	}

	filled := int(percent * float64(width) / 100)
	bar := strings.Repeat("=", filled) + strings.Repeat("-", width-filled)

	return fmt.Sprintf("[%s] %5.1f%%", bar, percent)
}

// IsTerminalSupported checks if stdout is attached to a terminal
func IsTerminalSupported() bool {
	info, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

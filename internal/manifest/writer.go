package manifest

import (
	"bufio"
	"fmt"
	"os"
)

// Entry is one deferred key listed for manual handling
type Entry struct {
	Name      string
	Type      string
	TTLMillis int64
	Size      int64
}

// Writer appends deferred key entries to a text manifest. Each run gets a
// fresh file; the manifest is never appended across runs.
type Writer struct {
	file *os.File
	buf  *bufio.Writer
}

// Create opens the manifest at path, truncating any previous run's content
func Create(path string) (*Writer, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create manifest: %w", err)
	}

	return &Writer{
		file: file,
		buf:  bufio.NewWriter(file),
	}, nil
}

// Append writes one entry as a human-readable line
func (w *Writer) Append(entry Entry) error {
	_, err := fmt.Fprintf(w.buf, "Key: %s, Type: %s, TTL: %d, Size: %d bytes\n",
		entry.Name, entry.Type, entry.TTLMillis, entry.Size)
	return err
}

// Close flushes buffered lines and closes the file
func (w *Writer) Close() error {
	if err := w.buf.Flush(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

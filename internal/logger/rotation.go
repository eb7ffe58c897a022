package logger

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const rotatedTimeFormat = "20060102-150405.000"

// RotatingWriter is a log file writer that rotates by size and prunes
// rotated files by age. It is safe for concurrent use.
type RotatingWriter struct {
	filename string
	maxSize  int64
	maxAge   time.Duration
	compress bool

	mu          sync.Mutex
	currentFile *os.File
	currentSize int64
	wg          sync.WaitGroup
}

// NewRotatingWriter opens filename for appending. maxSizeMB <= 0 disables
// rotation; maxAgeDays <= 0 keeps rotated files forever.
func NewRotatingWriter(filename string, maxSizeMB, maxAgeDays int, compress bool) (*RotatingWriter, error) {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat log file: %w", err)
	}

	w := &RotatingWriter{
		filename:    filename,
		maxSize:     int64(maxSizeMB) * 1024 * 1024,
		maxAge:      time.Duration(maxAgeDays) * 24 * time.Hour,
		compress:    compress,
		currentFile: file,
		currentSize: info.Size(),
	}
	w.Cleanup()

	return w, nil
}

// Write writes p, rotating first when p would exceed the size limit.
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.currentFile == nil {
		return 0, os.ErrClosed
	}
	if w.maxSize > 0 && w.currentSize > 0 && w.currentSize+int64(len(p)) > w.maxSize {
		if err := w.rotateLocked(); err != nil {
			return 0, fmt.Errorf("failed to rotate log file: %w", err)
		}
	}

	n, err := w.currentFile.Write(p)
	w.currentSize += int64(n)
	return n, err
}

// Close closes the current file and waits for pending compression.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	file := w.currentFile
	w.currentFile = nil
	w.mu.Unlock()

	var err error
	if file != nil {
		err = file.Close()
	}
	w.wg.Wait()
	return err
}

// Rotated returns the rotated files, oldest first.
func (w *RotatingWriter) Rotated() []string {
	files, err := filepath.Glob(w.filename + ".*")
	if err != nil {
		return nil
	}
	// The timestamp suffix sorts chronologically; Glob returns sorted names.
	return files
}

// Cleanup removes rotated files older than the age limit.
func (w *RotatingWriter) Cleanup() {
	if w.maxAge <= 0 {
		return
	}

	cutoff := time.Now().Add(-w.maxAge)
	for _, path := range w.Rotated() {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			_ = os.Remove(path)
		}
	}
}

func (w *RotatingWriter) rotateLocked() error {
	if err := w.currentFile.Close(); err != nil {
		return err
	}

	rotated := w.filename + "." + time.Now().Format(rotatedTimeFormat)
	if err := os.Rename(w.filename, rotated); err != nil {
		return err
	}

	file, err := os.OpenFile(w.filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	w.currentFile = file
	w.currentSize = 0

	if w.compress {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			_ = compressFile(rotated)
		}()
	}
	w.Cleanup()
	return nil
}

func compressFile(filename string) error {
	if strings.HasSuffix(filename, ".gz") {
		return nil
	}

	src, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(filename + ".gz")
	if err != nil {
		return err
	}

	gzw := gzip.NewWriter(dst)
	if _, err := io.Copy(gzw, src); err != nil {
		gzw.Close()
		dst.Close()
		return err
	}
	if err := gzw.Close(); err != nil {
		dst.Close()
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}

	return os.Remove(filename)
}

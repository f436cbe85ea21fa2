package logger

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
)

const rotationTimeFormat = "20060102-150405.000"

// RotatingWriter is a writer that rotates log files by size
type RotatingWriter struct {
	mu          sync.Mutex
	fs          afero.Fs
	filename    string
	maxSize     int64 // bytes
	maxAge      int   // days
	compress    bool
	currentFile afero.File
	currentSize int64
	now         func() time.Time
}

// NewRotatingWriter opens filename on fs and removes rotated files older than maxAge days
func NewRotatingWriter(fs afero.Fs, filename string, maxSizeMB int, maxAge int, compress bool) (*RotatingWriter, error) {
	if err := ensureDir(fs, filename); err != nil {
		return nil, err
	}

	file, err := fs.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat log file: %w", err)
	}

	rw := &RotatingWriter{
		fs:          fs,
		filename:    filename,
		maxSize:     int64(maxSizeMB) * 1024 * 1024,
		maxAge:      maxAge,
		compress:    compress,
		currentFile: file,
		currentSize: info.Size(),
		now:         time.Now,
	}

	rw.cleanup()

	return rw, nil
}

func ensureDir(fs afero.Fs, filename string) error {
	if err := fs.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

// Write writes p to the log file, rotating first when p would exceed the size limit
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.currentSize > 0 && w.currentSize+int64(len(p)) > w.maxSize {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := w.currentFile.Write(p)
	w.currentSize += int64(n)
	return n, err
}

// Close closes the current log file
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.currentFile == nil {
		return nil
	}
	err := w.currentFile.Close()
	w.currentFile = nil
	return err
}

func (w *RotatingWriter) rotate() error {
	if err := w.currentFile.Close(); err != nil {
		return err
	}

	rotatedName := fmt.Sprintf("%s.%s", w.filename, w.now().Format(rotationTimeFormat))
	if err := w.fs.Rename(w.filename, rotatedName); err != nil {
		return err
	}

	if w.compress {
		if err := w.compressFile(rotatedName); err != nil {
			return err
		}
	}

	file, err := w.fs.OpenFile(w.filename, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	w.currentFile = file
	w.currentSize = 0
	return nil
}

// compressFile replaces filename with filename.gz
func (w *RotatingWriter) compressFile(filename string) error {
	src, err := w.fs.Open(filename)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := w.fs.Create(filename + ".gz")
	if err != nil {
		return err
	}

	gzw := gzip.NewWriter(dst)
	if _, err := io.Copy(gzw, src); err != nil {
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

	return w.fs.Remove(filename)
}

// cleanup removes rotated files older than maxAge
func (w *RotatingWriter) cleanup() {
	if w.maxAge <= 0 {
		return
	}

	dir := filepath.Dir(w.filename)
	prefix := filepath.Base(w.filename) + "."

	entries, err := afero.ReadDir(w.fs, dir)
	if err != nil {
		return
	}

	var rotated []os.FileInfo
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), prefix) {
			rotated = append(rotated, entry)
		}
	}
	sort.Slice(rotated, func(i, j int) bool {
		return rotated[i].ModTime().Before(rotated[j].ModTime())
	})

	cutoff := w.now().AddDate(0, 0, -w.maxAge)
	for _, info := range rotated {
		if info.ModTime().Before(cutoff) {
			_ = w.fs.Remove(filepath.Join(dir, info.Name()))
		}
	}
}

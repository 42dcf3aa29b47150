package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/klauspost/compress/gzip"
)

// rotate closes the active log file, compresses it to
// "<prefix>.log-<timestamp>.gz" alongside it, and opens a fresh empty
// log file in its place. Must be called with l.mu held.
func (l *Logger) rotate() error {
	oldPath := l.file.Name()
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("logger: closing log file before rotation: %w", err)
	}

	if err := gzipFile(oldPath); err != nil {
		return err
	}
	if err := os.Remove(oldPath); err != nil {
		return fmt.Errorf("logger: removing rotated log file: %w", err)
	}

	return l.openFile()
}

func gzipFile(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("logger: reopening log file for rotation: %w", err)
	}
	defer src.Close()

	destPath := fmt.Sprintf("%s-%s.gz", path, time.Now().Format("20060102-150405"))
	dest, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("logger: creating rotated archive %s: %w", destPath, err)
	}
	defer dest.Close()

	gw := gzip.NewWriter(dest)
	if _, err := io.Copy(gw, src); err != nil {
		gw.Close()
		return fmt.Errorf("logger: compressing rotated log: %w", err)
	}
	return gw.Close()
}

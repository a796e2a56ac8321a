package logging

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"dirsweep/internal/config"
)

const (
	defaultLogDir = "/var/log/dirsweep"
	logFile       = "sweep.log"
)

// New creates a stdout-only logger for ad-hoc commands
func New() *log.Logger {
	return log.New(os.Stdout, "", log.LstdFlags|log.Lmicroseconds)
}

// NewWithConfig creates a logger writing to stdout and a rotated file in
// cfg.Logging.Dir. It falls back to stdout when the file cannot be opened.
// The returned Closer releases the log file.
func NewWithConfig(cfg *config.Config) (*log.Logger, io.Closer) {
	dir := defaultLogDir
	rotateDays := 30
	compress := true
	if cfg != nil {
		if cfg.Logging.Dir != "" {
			dir = cfg.Logging.Dir
		}
		if cfg.Logging.RotationDays > 0 {
			rotateDays = cfg.Logging.RotationDays
		}
		if cfg.Logging.Compress != nil {
			compress = *cfg.Logging.Compress
		}
	}
	return newLogger(os.Stdout, dir, rotateDays, compress)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func newLogger(stdout io.Writer, dir string, rotateDays int, compress bool) (*log.Logger, io.Closer) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("failed to ensure log directory %s: %v", dir, err)
	}

	filePath := filepath.Join(dir, logFile)
	rotateLogsIfNeeded(filePath, rotateDays, compress)

	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		log.Printf("failed to open log file %s: %v", filePath, err)
		return log.New(stdout, "", log.LstdFlags|log.Lmicroseconds), nopCloser{}
	}

	mw := io.MultiWriter(stdout, f)
	return log.New(mw, "", log.LstdFlags|log.Lmicroseconds), f
}

// rotateLogsIfNeeded moves the active log aside once it is older than
// rotationDays, then removes rotated logs past the same age.
func rotateLogsIfNeeded(logPath string, rotationDays int, compress bool) {
	info, err := os.Stat(logPath)
	if err != nil {
		return
	}

	cutoffTime := time.Now().AddDate(0, 0, -rotationDays)
	if !info.ModTime().Before(cutoffTime) {
		return
	}

	rotatedPath := logPath + "." + info.ModTime().Format("20060102-150405")
	if err := os.Rename(logPath, rotatedPath); err != nil {
		log.Printf("failed to rotate log file: %v", err)
		return
	}

	if compress {
		if err := gzipFile(rotatedPath); err != nil {
			log.Printf("failed to compress rotated log %s: %v", rotatedPath, err)
		}
	} else {
		// Age of a rotated file counts from rotation
		now := time.Now()
		_ = os.Chtimes(rotatedPath, now, now)
	}

	cleanupOldLogs(logPath, rotationDays)
}

// gzipFile replaces path with path.gz
func gzipFile(path string) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(path+".gz", os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	zw := gzip.NewWriter(out)
	zw.Name = filepath.Base(path)
	if _, err := io.Copy(zw, in); err != nil {
		zw.Close()
		out.Close()
		os.Remove(path + ".gz")
		return err
	}
	if err := zw.Close(); err != nil {
		out.Close()
		os.Remove(path + ".gz")
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(path)
}

// cleanupOldLogs removes rotated log files older than rotation days
func cleanupOldLogs(logPath string, rotationDays int) {
	dir := filepath.Dir(logPath)
	prefix := filepath.Base(logPath) + "."

	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	cutoffTime := time.Now().AddDate(0, 0, -rotationDays)

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoffTime) {
			fullPath := filepath.Join(dir, entry.Name())
			if err := os.Remove(fullPath); err != nil {
				log.Printf("failed to remove old log file %s: %v", fullPath, err)
			}
		}
	}
}

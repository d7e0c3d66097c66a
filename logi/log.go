package logi

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger *slog.Logger
	once   sync.Once
)

// Config holds the logging configuration
type Config struct {
	// LogDir is the directory where log files will be stored
	// Default: /var/log/tx-latency-prober (or ./logs if not writable)
	LogDir string
	// LogFileName is the name of the log file
	// Default: prober.log
	LogFileName string
	// Level is the minimum log level to write
	// Default: slog.LevelInfo
	Level slog.Level
	// MaxSizeMB, MaxBackups and MaxAgeDays control file rotation
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	// Console also writes every entry to stdout
	Console bool
}

// NewLog creates or returns the singleton logger instance.
// It's safe for concurrent use across multiple goroutines.
// Entries are JSON encoded and written to a rotating file (and stdout when Console is set).
func NewLog(cfg *Config) (*slog.Logger, error) {
	var initErr error

	once.Do(func() {
		if cfg == nil {
			cfg = &Config{Console: true}
		}

		if cfg.LogDir == "" {
			cfg.LogDir = "/var/log/tx-latency-prober"
			if !isDirWritable(cfg.LogDir) {
				cfg.LogDir = "./logs"
			}
		}

		if cfg.LogFileName == "" {
			cfg.LogFileName = "prober.log"
		}
		if cfg.MaxSizeMB <= 0 {
			cfg.MaxSizeMB = 50
		}
		if cfg.MaxBackups <= 0 {
			cfg.MaxBackups = 5
		}
		if cfg.MaxAgeDays <= 0 {
			cfg.MaxAgeDays = 14
		}

		if err := os.MkdirAll(cfg.LogDir, 0755); err != nil {
			initErr = fmt.Errorf("failed to create log directory %s: %w", cfg.LogDir, err)
			return
		}

		logPath := filepath.Join(cfg.LogDir, cfg.LogFileName)

		var out io.Writer = &lumberjack.Logger{
			Filename:   logPath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		if cfg.Console {
			out = io.MultiWriter(os.Stdout, out)
		}

		level := cfg.Level
		if level == 0 {
			level = slog.LevelInfo
		}

		logger = slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level}))

		logger.Info("logger initialized",
			"log_path", logPath,
			"level", level.String(),
		)
	})

	if initErr != nil {
		return nil, initErr
	}

	return logger, nil
}

// Discard returns a logger that drops everything, for tests and dry runs.
func Discard() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// isDirWritable checks if a directory is writable
func isDirWritable(path string) bool {
	if err := os.MkdirAll(path, 0755); err != nil {
		return false
	}

	testFile := filepath.Join(path, ".write_test")
	file, err := os.OpenFile(testFile, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return false
	}
	file.Close()
	os.Remove(testFile)
	return true
}

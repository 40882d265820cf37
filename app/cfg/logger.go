package cfg

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// SetupLogger installs the default slog logger. With a log file configured
// records go to stderr and to a size-rotated file; the returned func
// closes that file.
func SetupLogger(c *Cfg) (func() error, error) {
	level := slog.LevelInfo
	if c.Debug {
		level = slog.LevelDebug
	}

	var output io.Writer = os.Stderr
	closer := func() error { return nil }

	if c.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(c.LogFile), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		fileWriter := &lumberjack.Logger{
			Filename:   c.LogFile,
			MaxSize:    64, // MB
			MaxBackups: 3,
			MaxAge:     7, // days
			Compress:   true,
		}
		output = io.MultiWriter(os.Stderr, fileWriter)
		closer = fileWriter.Close
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: level})))

	return closer, nil
}

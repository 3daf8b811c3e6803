// Package logger wraps zerolog with lumberjack-rotated level files and an
// optional console writer. Configure through the Builder, then use the
// package-level event helpers.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

const TimeFormat = "2006-01-02 15:04:05"

var (
	mu      sync.Mutex
	writers []*lumberjack.Logger
)

func initLogger(cfg Config) error {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	if len(cfg.LevelFiles) == 0 {
		cfg.LevelFiles = LevelFiles{{Level: INFO, Path: "logs/info.log"}}
	}

	outs := make([]io.Writer, 0, len(cfg.LevelFiles)+1)
	ljs := make([]*lumberjack.Logger, 0, len(cfg.LevelFiles))

	for _, entry := range cfg.LevelFiles {
		if err := os.MkdirAll(filepath.Dir(entry.Path), 0755); err != nil {
			return err
		}
		lj := &lumberjack.Logger{
			Filename:   entry.Path,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		ljs = append(ljs, lj)
		outs = append(outs, &levelWriter{min: parseLevel(entry.Level), Writer: lj})
	}

	if cfg.Console {
		outs = append(outs, &zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: TimeFormat})
	}

	mu.Lock()
	defer mu.Unlock()
	closeWriters()
	writers = ljs
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(outs...)).With().Timestamp().Caller().Logger()
	return nil
}

// levelWriter passes events at or above its minimum level to one file.
type levelWriter struct {
	min zerolog.Level
	io.Writer
}

func (w *levelWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < w.min {
		return len(p), nil
	}
	return w.Writer.Write(p)
}

func closeWriters() {
	for _, lj := range writers {
		if err := lj.Close(); err != nil {
			log.Logger.Err(err).Str("file", lj.Filename).Msg("close log writer")
		}
	}
	writers = nil
}

// Close flushes and closes all rotated files.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	closeWriters()
}

// L returns the global logger.
func L() zerolog.Logger { return log.Logger }

func Debug() *zerolog.Event { return log.Logger.Debug() }

func Info() *zerolog.Event { return log.Logger.Info() }

func Warn() *zerolog.Event { return log.Logger.Warn() }

func Error() *zerolog.Event { return log.Logger.Error() }

func Fatal() *zerolog.Event { return log.Logger.Fatal() }

func Err(err error) *zerolog.Event { return log.Logger.Err(err) }

package logger

import "github.com/rs/zerolog"

var (
	DEBUG = "debug"
	INFO  = "info"
	WARN  = "warn"
	ERROR = "error"
	FATAL = "fatal"
)

func parseLevel(level string) zerolog.Level {
	switch level {
	case DEBUG:
		return zerolog.DebugLevel
	case INFO:
		return zerolog.InfoLevel
	case WARN:
		return zerolog.WarnLevel
	case ERROR:
		return zerolog.ErrorLevel
	case FATAL:
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// LevelFileEntry maps one minimum level to one output file.
type LevelFileEntry struct {
	Level string
	Path  string
}

type LevelFiles []LevelFileEntry

type Config struct {
	LevelFiles LevelFiles // empty means a single default info file
	MaxSize    int        // megabytes per file before rotation
	MaxBackups int
	MaxAge     int // days
	Level      string
	Compress   bool
	Console    bool
}

func DefaultConfig() Config {
	return Config{
		LevelFiles: LevelFiles{
			{Level: ERROR, Path: "logs/err.log"},
			{Level: INFO, Path: "logs/info.log"},
		},
		MaxSize:    10,
		MaxBackups: 100,
		MaxAge:     5,
		Level:      INFO,
	}
}

type Builder struct {
	config Config
}

func NewBuilder() *Builder {
	return &Builder{config: DefaultConfig()}
}

func (b *Builder) SetLevel(level string) *Builder {
	b.config.Level = level
	return b
}

func (b *Builder) SetLevelFiles(files LevelFiles) *Builder {
	b.config.LevelFiles = files
	return b
}

func (b *Builder) SetMaxSize(mb int) *Builder {
	b.config.MaxSize = mb
	return b
}

func (b *Builder) SetMaxBackups(n int) *Builder {
	b.config.MaxBackups = n
	return b
}

func (b *Builder) SetMaxAge(days int) *Builder {
	b.config.MaxAge = days
	return b
}

func (b *Builder) EnableCompression(on bool) *Builder {
	b.config.Compress = on
	return b
}

func (b *Builder) EnableConsoleOutput(on bool) *Builder {
	b.config.Console = on
	return b
}

func (b *Builder) Build() error {
	return initLogger(b.config)
}

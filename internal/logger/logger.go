package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	// Level is a zerolog level name; empty means info, or debug in dev mode.
	Level string
	// Dev switches to human-readable console output.
	Dev bool
	// File, when set, also writes JSON logs to a rotated file.
	File string
	Out  io.Writer
}

func Setup(opts Options) zerolog.Logger {
	level := zerolog.InfoLevel
	if opts.Dev {
		level = zerolog.DebugLevel
	}
	if lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(opts.Level))); err == nil && opts.Level != "" {
		level = lvl
	}

	var out io.Writer = os.Stderr
	if opts.Out != nil {
		out = opts.Out
	}
	if opts.Dev {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	if opts.File != "" {
		out = zerolog.MultiLevelWriter(out, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     14,
			Compress:   true,
		})
	}

	ctx := zerolog.New(out).Level(level).With().Timestamp()
	if opts.Dev {
		ctx = ctx.Caller().Stack()
	}
	return ctx.Logger()
}

package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/clovid/prisma-sub000/internal/app/appconfig"
	"github.com/clovid/prisma-sub000/internal/app/appcontext"
)

// Configure sets up the global zerolog logger. It runs before the fx graph
// is built, as config parsing and several providers log during construction.
func Configure(conf *appconfig.Config) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	level := zerolog.DebugLevel
	if conf.DevMode {
		level = zerolog.TraceLevel
	}

	// CLI commands print their results to stdout
	out := os.Stdout
	if conf.AppContext.Env == appcontext.EnvCLI {
		out = os.Stderr
	}

	var stdout io.Writer = out
	if !conf.LogJsonStdout {
		stdout = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339Nano,
		}
	}

	writer := zerolog.MultiLevelWriter(
		&lumberjack.Logger{
			Filename:   conf.LogFile,
			MaxSize:    100, // megabytes
			MaxBackups: 7,
			MaxAge:     30, // days
			Compress:   true,
		},
		stdout,
	)

	log.Logger = zerolog.New(writer).
		With().
		Timestamp().
		Str("env", conf.AppContext.Env.String()).
		Logger().
		Level(level)

	// log.Ctx falls back to the global logger outside of requests
	zerolog.DefaultContextLogger = &log.Logger
}

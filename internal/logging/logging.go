package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/solution-connector/assistant/internal/config"
)

// Setup configures the global zerolog logger from cfg. Unknown levels fall
// back to info.
func Setup(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	log.Logger = zerolog.New(writer(cfg.Format, os.Stderr)).With().Timestamp().Logger()
	if err != nil {
		log.Warn().Str("level", cfg.Level).Msg("unknown LOG_LEVEL, using info")
	}
}

func writer(format string, out io.Writer) io.Writer {
	if format == "json" {
		return out
	}
	return zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05.000"}
}

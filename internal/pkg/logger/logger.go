package logger

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Log 全局日志实例
var Log zerolog.Logger

func init() {
	Log = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// Init 根据配置初始化全局日志
func Init(level string, pretty bool) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stderr)
	}

	Log = logger.Level(lvl).With().Timestamp().Logger()
}

// With 返回带组件名的子日志
func With(component string) zerolog.Logger {
	return Log.With().Str("component", component).Logger()
}

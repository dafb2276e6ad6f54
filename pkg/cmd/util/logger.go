package util

import (
	"os"

	"github.com/mpapenbr/lapviewer-go/log"
	"github.com/mpapenbr/lapviewer-go/pkg/config"
)

func ParseLogLevel(l string, defaultVal log.Level) log.Level {
	level, err := log.ParseLevel(l)
	if err != nil {
		return defaultVal
	}
	return level
}

// SetupLogger creates the application logger and the logger for sql
// statements from the log flags and installs the former as default.
func SetupLogger() (logger, sqlLogger *log.Logger) {
	json := config.LogFormat == "json"
	defaultLevel := log.DebugLevel
	if json {
		defaultLevel = log.InfoLevel
	}
	opts := []log.Option{log.WithCaller(true), log.AddCallerSkip(1)}
	create := func(level log.Level) *log.Logger {
		if config.LogFilter != "" {
			l, err := log.NewFiltered(os.Stderr, level, json, config.LogFilter, opts...)
			if err == nil {
				return l
			}
			log.Warn("Invalid log filter, ignoring it", log.ErrorField(err))
		}
		if json {
			return log.New(os.Stderr, level, opts...)
		}
		return log.DevLogger(os.Stderr, level, opts...)
	}
	logger = create(ParseLogLevel(config.LogLevel, defaultLevel))
	sqlLogger = create(ParseLogLevel(config.SQLLogLevel, log.InfoLevel))
	log.ResetDefault(logger)
	return logger, sqlLogger
}

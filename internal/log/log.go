package log

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

var logger *zap.SugaredLogger

// Init sets up the process-wide application logger. Component loggers
// (store, distributor, processors) use hclog instead; this one is for
// lifecycle messages around startup, shutdown and fatal errors.
func Init() {
	l, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %s", err))
	}
	logger = l.Sugar()
}

func Error(format string, args ...interface{}) {
	logger.Errorf(format, args...)
}

func Infof(ctx context.Context, format string, args ...interface{}) {
	logger.Infof(format, args...)
}

func Sync() {
	_ = logger.Sync()
}

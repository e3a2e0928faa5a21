package logger

import (
	"go.uber.org/zap"
)

var Log *zap.Logger

// NewLogger builds the production logger used by every binary. The service
// name shows up on each entry so server and worker logs can be told apart.
func NewLogger(service string) *zap.Logger {
	l, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	l = l.With(zap.String("service", service))
	Log = l
	return l
}

package log

import "go.uber.org/zap"

// Logger aliases zap so call sites depend on a single import.
type Logger = zap.Logger

var (
	Any = zap.Any
	Dur = zap.Duration
	Err = zap.Error
	Int = zap.Int
	Str = zap.String
)

func New(env string) *Logger {
	if env == "prod" {
		return zap.Must(zap.NewProduction())
	}

	return zap.Must(zap.NewDevelopment())
}

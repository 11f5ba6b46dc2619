package logger

import (
	"go.uber.org/zap"
)

// New builds the process logger. Anything other than "prod" gets the
// human readable development encoder.
func New(env, service string) (*zap.Logger, error) {
	var (
		l   *zap.Logger
		err error
	)
	if env == "prod" {
		l, err = zap.NewProduction()
	} else {
		l, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, err
	}
	return l.With(zap.String("service", service)), nil
}

package client

import (
	"go.uber.org/zap"

	"github.com/DeBrosOfficial/redismux/pkg/config"
	"github.com/DeBrosOfficial/redismux/pkg/logging"
)

// newClientLogger creates a zap.Logger from the logging section of the
// configuration. It is used when New is called without a logger.
func newClientLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	l, err := logging.NewLogger(logging.Options{
		Level:      cfg.Level,
		Format:     cfg.Format,
		OutputFile: cfg.OutputFile,
	})
	if err != nil {
		return nil, err
	}
	return l.For(logging.ComponentClient), nil
}

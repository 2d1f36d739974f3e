package app

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
)

// newLogger создаёт logrus-логгер по настройкам logging.*.
func newLogger(cfg LoggingConfig) (*log.Logger, error) {
	logger := log.New()
	logger.SetOutput(os.Stdout)

	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&log.JSONFormatter{})
	} else {
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}

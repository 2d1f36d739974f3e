package app

import (
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
)

// initKafkaProducer создаёт producer аналитических событий, если заданы brokers.
// Без brokers возвращает nil, nil: события просто не публикуются.
func initKafkaProducer(brokers []string, logger *log.Entry) (*kafka.Producer, error) {
	cleaned := make([]string, 0, len(brokers))
	for _, b := range brokers {
		if b = strings.TrimSpace(b); b != "" {
			cleaned = append(cleaned, b)
		}
	}
	if len(cleaned) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(cleaned)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without analytics events")
		return nil, err
	}

	logger.WithField("brokers", cleaned).Info("kafka producer initialized")
	return producer, nil
}

// closeKafka закрывает producer, если он создан.
func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}

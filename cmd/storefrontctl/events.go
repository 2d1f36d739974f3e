package main

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/IBM/sarama"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
)

// eventLine печатается одной строкой в events tail.
type eventLine struct {
	Topic     string          `json:"topic"`
	Partition int32           `json:"partition"`
	Offset    int64           `json:"offset"`
	Key       string          `json:"key,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Event     json.RawMessage `json:"event"`
}

// lineWriter печатает события по одному JSON на строку.
func lineWriter(w io.Writer) kafka.MessageHandler {
	var mu sync.Mutex
	return func(_ context.Context, message *sarama.ConsumerMessage) error {
		if !json.Valid(message.Value) {
			return errors.New("event payload is not valid json")
		}
		line, err := json.Marshal(eventLine{
			Topic:     message.Topic,
			Partition: message.Partition,
			Offset:    message.Offset,
			Key:       string(message.Key),
			Timestamp: message.Timestamp,
			Event:     message.Value,
		})
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		_, err = w.Write(append(line, '\n'))
		return err
	}
}

func newEventsCmd(opts *rootOptions) *cobra.Command {
	var (
		brokers []string
		group   string
		topics  []string
	)

	tail := &cobra.Command{
		Use:   "tail",
		Short: "Stream analytics events as JSON lines until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(brokers) == 0 {
				cfg, err := opts.loadConfig()
				if err != nil {
					return err
				}
				brokers = cfg.Kafka.Brokers
			}
			if len(brokers) == 0 {
				return errors.New("kafka brokers are required (--brokers or STOREFRONT_KAFKA__BROKERS)")
			}
			if group == "" {
				group = "storefrontctl-" + uuid.NewString()
			}

			consumer, err := kafka.NewConsumer(brokers, group, topics, lineWriter(cmd.OutOrStdout()))
			if err != nil {
				return err
			}
			if err := consumer.Start(cmd.Context()); err != nil {
				return err
			}
			<-cmd.Context().Done()
			return consumer.Stop()
		},
	}
	tail.Flags().StringSliceVar(&brokers, "brokers", nil, "Kafka brokers (default: kafka.brokers)")
	tail.Flags().StringVar(&group, "group", "", "Consumer group (default: unique per run)")
	tail.Flags().StringSliceVar(&topics, "topic", []string{kafka.TopicRecommendationEvents, kafka.TopicVisitorEvents}, "Topics to read")

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect analytics events published by the service",
	}
	cmd.AddCommand(tail)
	return cmd
}

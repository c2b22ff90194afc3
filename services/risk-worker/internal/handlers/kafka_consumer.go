package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"

	"github.com/ArchanaN2125/FinGuard-AI/pkg"
	kafkautils "github.com/ArchanaN2125/FinGuard-AI/pkg/kafka"
	"github.com/ArchanaN2125/FinGuard-AI/pkg/views"
	"github.com/ArchanaN2125/FinGuard-AI/services/risk-worker/configs"
	"github.com/ArchanaN2125/FinGuard-AI/services/risk-worker/internal/engine"
	"github.com/ArchanaN2125/FinGuard-AI/services/risk-worker/internal/observability"
)

// KafkaTransactionHandler consumes raw transactions from the ingest topic and
// feeds them to the scoring pipeline.
type KafkaTransactionHandler interface {
	Start() func()
}

// KafkaTransactionConfig holds configuration and dependencies for the ingest consumer.
type KafkaTransactionConfig struct {
	Context  context.Context
	Logger   *zap.Logger
	Config   *configs.Config
	Pipeline *engine.Pipeline

	// internal initialization
	consumer    *kafka.Consumer
	dlqProducer *kafka.Producer
	commits     *kafkautils.CommitManager
}

// NewKafkaTransactionConsumer initializes the ingest consumer with a DLQ
// producer and an ordered commit manager. Auto commit stays off: an offset is
// only committed once the pipeline has fully resolved the message.
func NewKafkaTransactionConsumer(cfg KafkaTransactionConfig) KafkaTransactionHandler {
	kafkaConfig := &kafka.ConfigMap{
		"bootstrap.servers":  cfg.Config.KafkaBrokers,
		"group.id":           cfg.Config.KafkaConsumerGroup,
		"auto.offset.reset":  "earliest",
		"enable.auto.commit": false,
	}
	kafkaConsumer, err := kafka.NewConsumer(kafkaConfig)
	if err != nil {
		cfg.Logger.Fatal("Failed to create Kafka transaction consumer", zap.Error(err))
	}

	dlqProducer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":  cfg.Config.KafkaBrokers,
		"acks":               "all",
		"enable.idempotence": true,
	})
	if err != nil {
		cfg.Logger.Fatal("Failed to create DLQ producer", zap.Error(err))
	}

	cfg.consumer = kafkaConsumer
	cfg.dlqProducer = dlqProducer
	cfg.commits = kafkautils.NewCommitManager(kafkaConsumer, cfg.Logger)
	return &cfg
}

// Start initiates the consumption loop and returns a cleanup function.
func (k *KafkaTransactionConfig) Start() func() {
	err := k.consumer.SubscribeTopics([]string{k.Config.KafkaIngestTopic}, nil)
	if err != nil {
		k.Logger.Fatal("Failed to subscribe to Kafka topic", zap.Error(err))
	}

	k.Logger.Info("Listening to Kafka topic",
		zap.String("topic", k.Config.KafkaIngestTopic),
		zap.String("group", k.Config.KafkaConsumerGroup))

	go func() {
		for {
			select {
			case <-k.Context.Done():
				return
			default:
			}
			msg, err := k.consumer.ReadMessage(-1)
			if err != nil {
				k.Logger.Error("Failed to read Kafka message", zap.Error(err))
				continue
			}
			// Submit blocks when the target shard queue is full; that
			// backpressure is what keeps consumption paced to scoring.
			k.processMessage(msg)
		}
	}()

	return func() {
		if k.dlqProducer != nil {
			k.dlqProducer.Flush(5000)
			k.dlqProducer.Close()
		}
		if err := k.consumer.Close(); err != nil {
			k.Logger.Error("Failed to close Kafka consumer", zap.Error(err))
		}
		k.Logger.Info("Kafka consumer closed successfully")
	}
}

func (k *KafkaTransactionConfig) processMessage(msg *kafka.Message) {
	var raw views.RawTransaction
	if err := json.Unmarshal(msg.Value, &raw); err != nil {
		k.Logger.Error("Failed to decode Kafka message", zap.Error(err))
		k.deadLetter(raw, msg, "json unmarshal error", err)
		return
	}

	k.Pipeline.Submit(raw, func(procErr error) {
		k.resolve(raw, msg, procErr)
	})
}

// resolve decides the fate of a processed message. Every failure reaching
// here is terminal: publish overflow was already retried on the shard
// goroutine (which preserves the user's event order), so the message goes to
// the DLQ and the offset commits to keep the partition moving.
func (k *KafkaTransactionConfig) resolve(raw views.RawTransaction, msg *kafka.Message, procErr error) {
	switch {
	case procErr == nil:
		k.commits.Ack(raw.TransactionID, msg)

	case errors.Is(procErr, pkg.ErrPublishOverflow):
		k.Logger.Error("Publish retries exhausted, sending to DLQ",
			zap.String(pkg.TransactionId, raw.TransactionID), zap.Error(procErr))
		k.deadLetter(raw, msg, "publish overflow", procErr)

	default:
		k.deadLetter(raw, msg, "processing error", procErr)
	}
}

func (k *KafkaTransactionConfig) deadLetter(raw views.RawTransaction, msg *kafka.Message, reason string, procErr error) {
	observability.DLQMessages.Inc()
	payload, err := json.Marshal(map[string]any{
		"transaction":   raw,
		"failureReason": reason,
		"error":         procErr.Error(),
		"failedAt":      time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		k.Logger.Error("Failed to marshal DLQ payload",
			zap.String(pkg.TransactionId, raw.TransactionID), zap.Error(err))
	} else {
		k.sendToDLQ(payload, reason, procErr.Error())
	}
	k.commits.Ack(raw.TransactionID, msg)
}

func (k *KafkaTransactionConfig) sendToDLQ(payload []byte, reason, errMsg string) {
	err := k.dlqProducer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &k.Config.KafkaDLQTopic,
			Partition: kafka.PartitionAny,
		},
		Value: payload,
	}, nil)
	if err != nil {
		k.Logger.Error("Failed to produce to DLQ",
			zap.String("reason", reason),
			zap.String("error", errMsg),
			zap.Error(err))
		return
	}
	k.Logger.Info("Sent to transaction DLQ", zap.String("reason", reason))
}

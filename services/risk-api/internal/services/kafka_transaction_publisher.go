package services

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"

	kafkautils "github.com/ArchanaN2125/FinGuard-AI/pkg/kafka"
	"github.com/ArchanaN2125/FinGuard-AI/pkg/views"
	"github.com/ArchanaN2125/FinGuard-AI/services/risk-api/configs"
)

type KafkaPublisher interface {
	PublishTransaction(txn views.RawTransaction) error
	Close()
}

type KafkaPublisherImpl struct {
	logger   *zap.Logger
	producer *kafka.Producer
	cnf      *configs.Config
}

// NewKafkaPublisher creates and initializes a KafkaPublisher with the provided logger and configuration parameters.
func NewKafkaPublisher(logger *zap.Logger, ctx context.Context, cnf *configs.Config) KafkaPublisher {
	// Initialize Kafka topics
	topicConfig := kafkautils.KafkaConfig{
		BootstrapServers: cnf.KafkaBrokers,
		Topics: []kafkautils.TopicConfig{
			{
				Topic:             cnf.KafkaIngestTopic,
				NumPartitions:     int(cnf.KafkaPartition),
				ReplicationFactor: 1,
				Config: map[string]string{
					"cleanup.policy": "delete",
					"retention.ms":   fmt.Sprintf("%d", cnf.KafkaIngestRetention.Milliseconds()),
				},
			},
		},
	}
	err := kafkautils.InitKafkaTopics(logger, ctx, topicConfig)
	if err != nil {
		logger.Fatal("failed to initialize kafka topics", zap.Error(err))
	}

	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":  cnf.KafkaBrokers, // Kafka broker(s)
		"acks":               "all",            // Wait for all replicas
		"enable.idempotence": "true",           // Ensure messages are not sent twice
		"retries":            "1",              // Built-in retry mechanism
	})
	if err != nil {
		logger.Fatal("failed to create kafka producer", zap.Error(err))
	}
	logger.Info("kafka producer created successfully", zap.String("brokers", cnf.KafkaBrokers))
	go handleDeliveryReports(logger, p) // Async error handling
	return &KafkaPublisherImpl{
		logger:   logger,
		cnf:      cnf,
		producer: p,
	}
}

// PublishTransaction sends txn to the ingest topic, partitioned by user id so
// one user's transactions land on one partition and arrive at the worker in
// submission order.
func (k KafkaPublisherImpl) PublishTransaction(txn views.RawTransaction) error {
	msgBytes, err := json.Marshal(txn)
	if err != nil {
		return err
	}

	h := fnv.New32a()
	h.Write([]byte(txn.UserID))
	partition := int32(h.Sum32() % k.cnf.KafkaPartition)

	// Produce the message asynchronously; delivery results are handled by handleDeliveryReports
	return k.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &k.cnf.KafkaIngestTopic,
			Partition: partition,
		},
		Key:   []byte(txn.UserID),
		Value: msgBytes,
	}, nil)
}

func (k KafkaPublisherImpl) Close() {
	k.producer.Close()
}

func handleDeliveryReports(logger *zap.Logger, p *kafka.Producer) {
	for e := range p.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				logger.Error("failed to publish message", zap.Error(ev.TopicPartition.Error))
			}
		}
	}
}

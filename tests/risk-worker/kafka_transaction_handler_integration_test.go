package riskworker_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"syscall"
	"testing"
	"time"

	ckafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/ArchanaN2125/FinGuard-AI/tests"
)

// buildAndStartRiskWorker builds the risk-worker binary and starts it as a child process
// in its own process group so we can terminate it (and any children) reliably from tests.
func buildAndStartRiskWorker(t *testing.T, env map[string]string) (*exec.Cmd, func()) {
	t.Helper()

	// Build a temporary binary for the worker
	tmpDir := t.TempDir()
	bin := filepath.Join(tmpDir, "risk-worker-testbin")
	build := exec.Command("go", "build", "-o", bin, "../../services/risk-worker/cmd/main.go")
	build.Stdout = os.Stdout
	build.Stderr = os.Stderr
	if err := build.Run(); err != nil {
		assert.FailNow(t, "failed to build risk-worker", err.Error())
	}

	cmd := exec.Command(bin)

	// Attach test-provided environment variables to the process
	cmd.Env = os.Environ()
	for k, v := range env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	// Put the process in its own group so we can signal the whole group
	if runtime.GOOS != "windows" {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	}

	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		assert.FailNow(t, "failed to start risk-worker", err.Error())
	}

	cleanup := func() {
		if cmd.Process == nil {
			return
		}
		// Try graceful shutdown first
		if runtime.GOOS != "windows" {
			pgid, err := syscall.Getpgid(cmd.Process.Pid)
			if err == nil {
				_ = syscall.Kill(-pgid, syscall.SIGINT)
			} else {
				_ = cmd.Process.Signal(syscall.SIGINT)
			}
		} else {
			_ = cmd.Process.Kill()
		}
		// Wait with timeout, then force kill if needed
		done := make(chan struct{})
		go func() {
			_ = cmd.Wait()
			close(done)
		}()
		select {
		case <-done:
			return
		case <-time.After(10 * time.Second):
			if runtime.GOOS != "windows" {
				pgid, err := syscall.Getpgid(cmd.Process.Pid)
				if err == nil {
					_ = syscall.Kill(-pgid, syscall.SIGKILL)
				}
			}
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
		}
	}

	return cmd, cleanup
}

// createDLQConsumer creates a Kafka consumer subscribed to the given dlqTopic
// and waits for assignment to reduce flakiness.
func createDLQConsumer(t *testing.T, bootstrap, dlqTopic string) *ckafka.Consumer {
	t.Helper()
	groupID := uuid.NewString()
	c, err := ckafka.NewConsumer(&ckafka.ConfigMap{
		"bootstrap.servers": bootstrap,
		"group.id":          groupID,
		"auto.offset.reset": "earliest",
	})
	assert.NoError(t, err, "failed to create kafka consumer")
	err = c.SubscribeTopics([]string{dlqTopic}, nil)
	assert.NoError(t, err, "failed to subscribe to dlq topic")

	assignCtx, assignCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer assignCancel()
	for {
		parts, err := c.Assignment()
		assert.NoError(t, err)
		if len(parts) > 0 {
			break
		}
		select {
		case <-assignCtx.Done():
			assert.FailNow(t, "timeout waiting for DLQ consumer assignment")
		default:
			_ = c.Poll(100)
		}
	}
	return c
}

// TestRiskWorkerKafkaTransactionHandler_DLQOnInvalidTransaction verifies that the
// risk-worker consumes a transaction that fails validation from the ingest topic
// and forwards it to the DLQ topic with the expected failure details.
func TestRiskWorkerKafkaTransactionHandler_DLQOnInvalidTransaction(t *testing.T) {
	// Spin up Kafka, Postgres, and Redis test containers using helpers from tests package.
	kBootstrap, kTerminate, err := tests.StartKafkaForTests()
	assert.NoError(t, err, "failed to start kafka")
	t.Cleanup(kTerminate)

	dsnNoProto, pgTerminate, err := tests.StartPostgresForTests()
	assert.NoError(t, err, "failed to start postgres")
	t.Cleanup(pgTerminate)

	redisAddr, redisTerminate, err := tests.StartRedisForTests()
	assert.NoError(t, err, "failed to start redis")
	t.Cleanup(redisTerminate)

	// Create unique topics per test run to avoid interference in parallel test runs.
	uid := uuid.NewString()
	ingestTopic := fmt.Sprintf("transactions-int-%s", uid)
	dlqTopic := fmt.Sprintf("transactions-dlq-int-%s", uid)
	tests.EnsureKafkaTopic(t, kBootstrap, ingestTopic, 1)
	tests.EnsureKafkaTopic(t, kBootstrap, dlqTopic, 1)

	// Prepare a DLQ consumer before producing to capture messages reliably.
	dlqConsumer := createDLQConsumer(t, kBootstrap, dlqTopic)
	t.Cleanup(func() { _ = dlqConsumer.Close() })

	// Configure environment for risk-worker.
	env := map[string]string{
		"GIN_MODE":                 "test",
		"APP_METRICS_ADDR":         "127.0.0.1:0",
		"APP_KAFKA_BROKERS":        kBootstrap,
		"APP_KAFKA_CONSUMER_GROUP": "rw-" + uuid.NewString(),
		"APP_KAFKA_INGEST_TOPIC":   ingestTopic,
		"APP_KAFKA_DLQ_TOPIC":      dlqTopic,
		"APP_KAFKA_PARTITION":      "1",
		"APP_PRIMARY_DB_ADDR":      dsnNoProto,
		"APP_READ_DB_ADDR":         dsnNoProto,
		"APP_REDIS_ADDR":           redisAddr,
		"APP_RETRY_BASE_BACKOFF":   "100ms",
		"APP_MAX_RETRY_BACKOFF":    "1s",
		"APP_MAX_PUBLISH_RETRIES":  "3",
	}

	// Start risk-worker as a real binary so we can terminate it cleanly.
	_, stopWorker := buildAndStartRiskWorker(t, env)
	t.Cleanup(stopWorker)

	// Give the worker a moment to initialize.
	time.Sleep(3 * time.Second)

	// Produce a transaction with a negative amount, which fails validation.
	producer, err := ckafka.NewProducer(&ckafka.ConfigMap{
		"bootstrap.servers": kBootstrap,
		"acks":              "all",
	})
	assert.NoError(t, err, "failed to create kafka producer")
	t.Cleanup(producer.Close)

	txnID := uuid.NewString()
	invalidTxn, _ := json.Marshal(map[string]any{
		"transaction_id": txnID,
		"user_id":        "user-dlq",
		"amount":         -12.50,
		"merchant":       "GroceryMart",
		"location":       "Berlin,DE",
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
	topic := ingestTopic // Copy for pointer safety.
	err = producer.Produce(&ckafka.Message{
		TopicPartition: ckafka.TopicPartition{Topic: &topic, Partition: ckafka.PartitionAny},
		Key:            []byte("user-dlq"),
		Value:          invalidTxn,
	}, nil)
	assert.NoError(t, err, "failed to produce invalid transaction")
	_ = producer.Flush(5000)

	// Poll for DLQ message with expected failureReason.
	pollCtx, pollCancel := context.WithTimeout(context.Background(), 40*time.Second)
	defer pollCancel()
	for {
		select {
		case <-pollCtx.Done():
			assert.FailNow(t, "timeout waiting for DLQ message")
		default:
			msg, err := dlqConsumer.ReadMessage(1500 * time.Millisecond)
			if err != nil {
				continue // Ignore timeouts or errors; retry.
			}
			var payload map[string]any
			if err := json.Unmarshal(msg.Value, &payload); err != nil {
				continue
			}
			reason, ok := payload["failureReason"].(string)
			assert.True(t, ok && reason == "processing error", "expected failureReason 'processing error', got %q", reason)
			txn, ok := payload["transaction"].(map[string]any)
			assert.True(t, ok, "expected 'transaction' in DLQ payload")
			assert.Equal(t, txnID, txn["transaction_id"])
			errMsg, ok := payload["error"].(string)
			assert.True(t, ok && errMsg != "", "expected non-empty 'error' in DLQ payload")
			return
		}
	}
}

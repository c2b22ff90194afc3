package tests

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	ckafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/testcontainers/testcontainers-go"
	tckafkamod "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ArchanaN2125/FinGuard-AI/pkg"
	appsvc "github.com/ArchanaN2125/FinGuard-AI/services/risk-api/app"
)

const ingestTopic = "transactions-test"

var kafkaBootstrap string

func GetKafkaBootstrap() string { return kafkaBootstrap }
func GetIngestTopic() string    { return ingestTopic }

// StartRiskAPIServer starts the risk-api HTTP server in-process using NewApp,
// against disposable Postgres, Kafka, and Redis containers. It returns the
// base URL and a cleanup function that should be deferred in tests.
func StartRiskAPIServer(t *testing.T) (baseURL string, cleanup func()) {
	t.Helper()

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	// Start disposable containers concurrently
	type result struct {
		addr      string
		terminate func()
		err       error
	}
	pgCh := make(chan result, 1)
	kCh := make(chan result, 1)
	rCh := make(chan result, 1)
	go func() {
		dsn, term, err := StartPostgresForTests()
		pgCh <- result{addr: dsn, terminate: term, err: err}
	}()
	go func() {
		boot, term, err := StartKafkaForTests()
		kCh <- result{addr: boot, terminate: term, err: err}
	}()
	go func() {
		addr, term, err := StartRedisForTests()
		rCh <- result{addr: addr, terminate: term, err: err}
	}()

	pgRes, kRes, rRes := <-pgCh, <-kCh, <-rCh
	for _, res := range []result{pgRes, kRes, rRes} {
		if res.err != nil {
			for _, r := range []result{pgRes, kRes, rRes} {
				if r.err == nil && r.terminate != nil {
					r.terminate()
				}
			}
			t.Fatalf("failed to start dependencies: %v", res.err)
		}
	}

	EnsureKafkaTopic(t, kRes.addr, ingestTopic, 4)

	// Configure environment variables
	_ = os.Setenv("APP_PORT", fmt.Sprintf("%d", port))
	_ = os.Setenv("APP_KAFKA_BROKERS", kRes.addr)
	_ = os.Setenv("APP_KAFKA_INGEST_TOPIC", ingestTopic)
	_ = os.Setenv("APP_PRIMARY_DB_ADDR", pgRes.addr)
	_ = os.Setenv("APP_REPLICA_DB_ADDR", pgRes.addr)
	_ = os.Setenv("APP_REDIS_ADDR", rRes.addr)
	_ = os.Setenv("GIN_MODE", "test")

	// Build app and run server
	pkg.InitLogger()
	logger := pkg.Logger
	ctx := context.Background()
	srv, appCleanup, err := appsvc.NewApp(ctx, logger)
	if err != nil {
		pgRes.terminate()
		kRes.terminate()
		rRes.terminate()
		t.Fatalf("failed to build risk-api app: %v", err)
	}

	baseURL = fmt.Sprintf("http://127.0.0.1:%d", port)

	go func() {
		_ = srv.ListenAndServe()
	}()

	// Wait for readiness with timeout, allow time for migrations
	wctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err = waitForReady(wctx, baseURL+"/health"); err != nil {
		_ = srv.Close()
		appCleanup()
		pgRes.terminate()
		kRes.terminate()
		rRes.terminate()
		t.Fatalf("risk-api failed to become ready: %v", err)
	}

	cleanup = func() {
		ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
		defer c()
		_ = srv.Shutdown(ctx)
		appCleanup()
		pgRes.terminate()
		kRes.terminate()
		rRes.terminate()
	}
	return baseURL, cleanup
}

// StartPostgresForTests starts a PostgreSQL testcontainer. It returns a DSN
// without the `postgres://` prefix to match the app's expectations (the app
// prepends the protocol internally), and a termination func for cleanup.
func StartPostgresForTests() (dsnNoProto string, terminate func(), err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	const (
		user     = "db_user"
		password = "db_password"
		dbName   = "finguard"
	)

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     user,
			"POSTGRES_PASSWORD": password,
			"POSTGRES_DB":       dbName,
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	pgC, e := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if e != nil {
		err = fmt.Errorf("failed to start postgres test container: %w", e)
		return
	}

	host, e := pgC.Host(ctx)
	if e != nil {
		_ = pgC.Terminate(context.Background())
		err = fmt.Errorf("failed to get postgres host: %w", e)
		return
	}
	port, e := pgC.MappedPort(ctx, "5432/tcp")
	if e != nil {
		_ = pgC.Terminate(context.Background())
		err = fmt.Errorf("failed to get mapped port: %w", e)
		return
	}
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port.Port(), dbName)

	terminate = func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = pgC.Terminate(ctx)
	}

	dsnNoProto = strings.TrimPrefix(connStr, "postgres://")
	return
}

// StartKafkaForTests spins up a Kafka test container and returns its
// bootstrap address.
func StartKafkaForTests() (bootstrap string, terminate func(), err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	kc, e := tckafkamod.RunContainer(ctx)
	if e != nil {
		err = fmt.Errorf("failed to start kafka test container: %w", e)
		return
	}

	host, e := kc.Host(ctx)
	if e != nil {
		_ = kc.Terminate(context.Background())
		err = fmt.Errorf("failed to get kafka host: %w", e)
		return
	}
	mapped, e := kc.MappedPort(ctx, "9092/tcp")
	if e != nil {
		mapped, e = kc.MappedPort(ctx, "9093/tcp")
		if e != nil {
			_ = kc.Terminate(context.Background())
			err = fmt.Errorf("failed to get kafka mapped port: %w", e)
			return
		}
	}
	bootstrap = fmt.Sprintf("%s:%s", host, mapped.Port())
	kafkaBootstrap = bootstrap

	terminate = func() {
		ctx, c := context.WithTimeout(context.Background(), 30*time.Second)
		defer c()
		_ = kc.Terminate(ctx)
	}
	return
}

// StartRedisForTests spins up a Redis container and returns host:port and a terminate function.
func StartRedisForTests() (addr string, terminate func(), err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(60 * time.Second),
	}
	rc, e := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if e != nil {
		err = fmt.Errorf("failed to start redis test container: %w", e)
		return
	}

	host, e := rc.Host(ctx)
	if e != nil {
		_ = rc.Terminate(context.Background())
		err = fmt.Errorf("failed to get redis host: %w", e)
		return
	}
	mapped, e := rc.MappedPort(ctx, "6379/tcp")
	if e != nil {
		_ = rc.Terminate(context.Background())
		err = fmt.Errorf("failed to get redis mapped port: %w", e)
		return
	}
	addr = fmt.Sprintf("%s:%s", host, mapped.Port())

	terminate = func() {
		ctx, c := context.WithTimeout(context.Background(), 30*time.Second)
		defer c()
		_ = rc.Terminate(ctx)
	}
	return
}

// EnsureKafkaTopic creates the topic if it does not already exist.
func EnsureKafkaTopic(t *testing.T, bootstrap, topic string, partitions int) {
	admin, err := ckafka.NewAdminClient(&ckafka.ConfigMap{"bootstrap.servers": bootstrap})
	if err != nil {
		t.Logf("kafka admin create failed: %v", err)
		return
	}
	defer admin.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	specs := []ckafka.TopicSpecification{{
		Topic:             topic,
		NumPartitions:     partitions,
		ReplicationFactor: 1,
	}}
	_, _ = admin.CreateTopics(ctx, specs)
}

func getFreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

func waitForReady(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 500 * time.Millisecond}
	for {
		if ctx.Err() != nil {
			return fmt.Errorf("timeout waiting for %s", url)
		}
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 500 {
				return nil
			}
		}
		time.Sleep(150 * time.Millisecond)
	}
}

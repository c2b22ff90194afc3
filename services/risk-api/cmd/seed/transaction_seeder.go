// Transaction seeder with per-second outbound request throttling.
// - Concurrency is controlled by a fixed worker pool (maxConcurrentRequests)
// - Throughput is controlled by an RPS limiter (token bucket)
// - A small fraction of generated traffic is deliberately anomalous
//   (oversized amounts, rapid fire bursts, new locations) to exercise
//   the scoring pipeline end to end
//
// Example:
//
//	go run ./services/risk-api/cmd/seed \
//	  -noOfTransactions=10000 \
//	  -noOfUsers=200 \
//	  -maxConcurrentRequests=50 \
//	  -rps=400 \
//	  -riskApiUrl=http://localhost:8080
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ArchanaN2125/FinGuard-AI/pkg"
	"github.com/ArchanaN2125/FinGuard-AI/pkg/utils"
	"github.com/ArchanaN2125/FinGuard-AI/pkg/views"
)

// --------- CLI flags ---------
var (
	noOfTransactions      = flag.Int("noOfTransactions", 1000, "Total number of transactions to seed")
	noOfUsers             = flag.Int("noOfUsers", 50, "Number of distinct users generating traffic")
	maxConcurrentRequests = flag.Int("maxConcurrentRequests", 10, "Max in-flight HTTP requests (worker pool size)")
	rps                   = flag.Int("rps", 100, "Global requests-per-second limit for outbound POST /transactions")
	rpsBurst              = flag.Int("rpsBurst", 0, "Burst size for the limiter (0 => equals rps)")
	anomalyRate           = flag.Float64("anomalyRate", 0.05, "Fraction of transactions made deliberately anomalous")
	riskApiURL            = flag.String("riskApiUrl", "http://localhost:8080", "Risk API base URL")
	httpClientTimeoutMs   = flag.Int("httpClientTimeoutMs", 4000, "Total HTTP client timeout (ms)")
)

var merchants = []string{
	"BigBox Mart", "Corner Coffee", "Metro Grocer", "StreamFlix", "GasNGo",
	"Pharma Plus", "Urban Eats", "CloudBook Store", "FitLife Gym", "AirGo Travel",
}

var locations = []string{
	"New York, US", "Chicago, US", "Austin, US", "Seattle, US", "Boston, US",
}

var anomalyLocations = []string{
	"Lagos, NG", "Chisinau, MD", "Macau, CN", "Tbilisi, GE",
}

type userState struct {
	id       string
	home     string
	merchant string
	typical  float64
}

type Seeder struct {
	users      []userState
	limiter    *rate.Limiter
	httpClient *http.Client
	logger     *zap.Logger
	apiURL     string

	sent int64
	ok   int64
	fail int64
}

func main() {
	flag.Parse()

	pkg.InitLogger()
	logger := pkg.Logger
	defer logger.Sync()

	burst := *rpsBurst
	if burst <= 0 {
		burst = *rps
	}

	s := &Seeder{
		limiter: rate.NewLimiter(rate.Limit(*rps), burst),
		httpClient: utils.NewHTTPClient(
			utils.WithClientTimeout(time.Duration(*httpClientTimeoutMs) * time.Millisecond),
		),
		logger: logger,
		apiURL: *riskApiURL,
	}

	for i := 0; i < *noOfUsers; i++ {
		s.users = append(s.users, userState{
			id:       uuid.New().String(),
			home:     locations[rand.Intn(len(locations))],
			merchant: merchants[rand.Intn(len(merchants))],
			typical:  20 + rand.Float64()*180,
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("interrupt received, stopping seeder")
		cancel()
	}()

	jobs := make(chan views.RawTransaction, *maxConcurrentRequests)
	var wg sync.WaitGroup
	for i := 0; i < *maxConcurrentRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for txn := range jobs {
				if err := s.limiter.Wait(ctx); err != nil {
					return
				}
				s.post(ctx, txn)
			}
		}()
	}

	start := time.Now()
	for i := 0; i < *noOfTransactions; i++ {
		select {
		case <-ctx.Done():
			i = *noOfTransactions
		case jobs <- s.generate():
		}
	}
	close(jobs)
	wg.Wait()

	logger.Info("seeding complete",
		zap.Int64("sent", atomic.LoadInt64(&s.sent)),
		zap.Int64("ok", atomic.LoadInt64(&s.ok)),
		zap.Int64("failed", atomic.LoadInt64(&s.fail)),
		zap.Duration("elapsed", time.Since(start)))
}

// generate produces mostly well-behaved traffic per user, with a configured
// fraction of anomalies the dashboard should light up on.
func (s *Seeder) generate() views.RawTransaction {
	u := &s.users[rand.Intn(len(s.users))]
	txn := views.RawTransaction{
		TransactionID: uuid.New().String(),
		UserID:        u.id,
		Amount:        round2(u.typical * (0.6 + rand.Float64()*0.8)),
		Merchant:      u.merchant,
		Location:      u.home,
		Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
	}

	if rand.Float64() < *anomalyRate {
		switch rand.Intn(3) {
		case 0: // oversized amount
			txn.Amount = round2(u.typical * (8 + rand.Float64()*12))
		case 1: // unfamiliar location and merchant
			txn.Location = anomalyLocations[rand.Intn(len(anomalyLocations))]
			txn.Merchant = merchants[rand.Intn(len(merchants))]
		default: // split pattern shape
			txn.Amount = round2(u.typical * (0.3 + rand.Float64()*0.2))
		}
	}
	return txn
}

func (s *Seeder) post(ctx context.Context, txn views.RawTransaction) {
	atomic.AddInt64(&s.sent, 1)

	body, err := json.Marshal(txn)
	if err != nil {
		atomic.AddInt64(&s.fail, 1)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/api/v1/transactions", s.apiURL), bytes.NewReader(body))
	if err != nil {
		atomic.AddInt64(&s.fail, 1)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		atomic.AddInt64(&s.fail, 1)
		s.logger.Warn("request failed", zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusAccepted {
		atomic.AddInt64(&s.ok, 1)
	} else {
		atomic.AddInt64(&s.fail, 1)
		s.logger.Warn("unexpected status", zap.Int("status", resp.StatusCode))
	}
}

func round2(v float64) float64 {
	return float64(int(v*100)) / 100
}

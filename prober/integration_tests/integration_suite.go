package integration_tests

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/yaron8/tx-latency-prober/logi"
	"github.com/yaron8/tx-latency-prober/metrics"
	"github.com/yaron8/tx-latency-prober/prober/dao"
	"github.com/yaron8/tx-latency-prober/prober/health"
	"github.com/yaron8/tx-latency-prober/prober/ledger/ledgertest"
	"github.com/yaron8/tx-latency-prober/prober/notify"
	"github.com/yaron8/tx-latency-prober/prober/pipeline"
	"github.com/yaron8/tx-latency-prober/prober/report"
	"github.com/yaron8/tx-latency-prober/prober/scheduler"
	"github.com/yaron8/tx-latency-prober/prober/service"
	"github.com/yaron8/tx-latency-prober/prober/txexec"
)

const (
	chainID    = 296
	maxRetries = 30
	retryDelay = 100 * time.Millisecond
)

type fixedRate float64

func (r fixedRate) NativeToReference(context.Context) (float64, error) {
	return float64(r), nil
}

// IntegrationTestSuite wires the real pipeline, Redis persistence and API
// server around a scripted ledger.
type IntegrationTestSuite struct {
	suite.Suite
	redisClient *redis.Client
	records     *dao.DAORecords
	fake        *ledgertest.Fake
	fallback    *bytes.Buffer
	scheduler   *scheduler.Scheduler
	monitor     *health.Monitor
	server      *httptest.Server
	baseURL     string
}

func redisAddr() string {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		return addr
	}
	return "localhost:6379"
}

// SetupSuite runs once before all tests in the suite
func (s *IntegrationTestSuite) SetupSuite() {
	s.redisClient = redis.NewClient(&redis.Options{
		Addr:     redisAddr(),
		Protocol: 2,
	})

	s.records = dao.NewDAORecords(s.redisClient, time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.records.Ping(ctx); err != nil {
		s.T().Skipf("Redis at %s is not reachable: %v", redisAddr(), err)
	}
}

// SetupTest builds a fresh prober for every test
func (s *IntegrationTestSuite) SetupTest() {
	logger := logi.Discard()
	collector := metrics.NewCollector()

	s.fake = ledgertest.NewFake()
	s.fallback = &bytes.Buffer{}
	s.monitor = health.NewMonitor(s.fake, notify.NewLogNotifier(logger), health.Config{Floor: 100}, logger, collector)

	p := pipeline.New(pipeline.Deps{
		Client:   s.fake,
		Executor: txexec.NewExecutor(s.fake, txexec.Config{}, logger),
		Monitor:  s.monitor,
		Rates:    fixedRate(0.05),
		Reporter: report.NewReporter(report.NewRedisSink(s.records), s.fallback, 5*time.Second, logger, collector),
		ChainID:  chainID,
		Logger:   logger,
		Metrics:  collector,
	})

	s.scheduler = scheduler.New(p, time.Hour, logger, collector)
	s.server = httptest.NewServer(service.NewAPIServer(0, p, collector, logger).Handler())
	s.baseURL = s.server.URL

	s.waitForService(s.baseURL + "/health")
}

func (s *IntegrationTestSuite) TearDownTest() {
	s.monitor.Wait()
	s.server.Close()
}

// TearDownSuite runs once after all tests in the suite
func (s *IntegrationTestSuite) TearDownSuite() {
	if s.redisClient != nil {
		_ = s.redisClient.Close()
	}
}

// waitForService waits for a service to become available
func (s *IntegrationTestSuite) waitForService(url string) {
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	for i := 0; i < maxRetries; i++ {
		resp, err := client.Get(url)
		if err == nil && resp.StatusCode == http.StatusOK {
			resp.Body.Close()
			return
		}
		if resp != nil {
			resp.Body.Close()
		}

		s.T().Logf("Waiting for service at %s (attempt %d/%d)...", url, i+1, maxRetries)
		time.Sleep(retryDelay)
	}

	s.Require().Fail(fmt.Sprintf("Service at %s did not become ready after %d attempts", url, maxRetries))
}

package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"

	"github.com/yaron8/tx-latency-prober/logi"
	"github.com/yaron8/tx-latency-prober/metrics"
	"github.com/yaron8/tx-latency-prober/prober/config"
	"github.com/yaron8/tx-latency-prober/prober/dao"
	"github.com/yaron8/tx-latency-prober/prober/health"
	"github.com/yaron8/tx-latency-prober/prober/ledger"
	"github.com/yaron8/tx-latency-prober/prober/notify"
	"github.com/yaron8/tx-latency-prober/prober/oracle"
	"github.com/yaron8/tx-latency-prober/prober/pipeline"
	"github.com/yaron8/tx-latency-prober/prober/report"
	"github.com/yaron8/tx-latency-prober/prober/scheduler"
	"github.com/yaron8/tx-latency-prober/prober/service"
	"github.com/yaron8/tx-latency-prober/prober/txexec"
	"github.com/yaron8/tx-latency-prober/telemetrics"
)

const shutdownTimeout = 10 * time.Second

type Bootstrap struct {
	config    *config.Config
	logger    *slog.Logger
	monitor   *health.Monitor
	scheduler *scheduler.Scheduler
	apiServer *service.APIServer
	closers   []io.Closer
}

func NewBootstrap(ctx context.Context) (*Bootstrap, error) {
	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := logi.NewLog(&logi.Config{
		LogDir:      cfg.Log.Dir,
		LogFileName: cfg.Log.File,
		Console:     true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init logger")
	}

	b := &Bootstrap{config: cfg, logger: logger}
	collector := metrics.NewCollector()

	client, err := ledger.NewHedera(ledger.HederaConfig{
		Network:        cfg.Network,
		AccountID:      cfg.Operator.AccountID,
		PrivateKey:     cfg.Operator.PrivateKey,
		RequestTimeout: cfg.Probe.RequestTimeout,
	})
	if err != nil {
		return nil, err
	}
	b.closers = append(b.closers, client)

	sink, err := b.newSink(ctx)
	if err != nil {
		b.close()
		return nil, err
	}

	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	if cfg.SlackEnabled() {
		notifier = notify.NewSlack(notify.SlackConfig{
			APIURL:    cfg.Alert.SlackAPIURL,
			Channel:   cfg.Alert.SlackChannel,
			AuthToken: cfg.Alert.SlackAuth,
		})
	}

	b.monitor = health.NewMonitor(client, notifier, health.Config{
		Floor:        cfg.Alert.BalanceFloor,
		ScopeURL:     cfg.Alert.ScopeURL,
		Cooldown:     cfg.Alert.Cooldown,
		AlertTimeout: cfg.Alert.DeliveryLimit,
	}, logger, collector)

	p := pipeline.New(pipeline.Deps{
		Client: client,
		Executor: txexec.NewExecutor(client, txexec.Config{
			AmountTinybar:      cfg.Probe.AmountTinybar,
			MaxReceiptAttempts: cfg.Probe.MaxReceiptAttempts,
			RetryDelay:         cfg.Probe.ReceiptRetryDelay,
		}, logger),
		Monitor: b.monitor,
		Rates: oracle.NewCoinGecko(oracle.Config{
			BaseURL:    cfg.Price.APIURL,
			CoinID:     cfg.Price.CoinID,
			VsCurrency: cfg.Price.VsCurrency,
			CacheTTL:   cfg.Price.CacheTTL,
		}),
		Reporter: report.NewReporter(sink, os.Stdout, cfg.Upload.DeliveryTimeout, logger, collector),
		ChainID:  cfg.ChainID,
		Logger:   logger,
		Metrics:  collector,
	})

	b.scheduler = scheduler.New(p, cfg.Probe.Interval, logger, collector)
	b.apiServer = service.NewAPIServer(cfg.Port, p, collector, logger)

	return b, nil
}

// newSink picks the persistence backend named by UPLOAD_METHOD.
func (b *Bootstrap) newSink(ctx context.Context) (report.Sink, error) {
	cfg := b.config

	switch cfg.Upload.Method {
	case report.BackendAWS:
		return report.NewS3Sink(ctx, cfg.Upload.S3Bucket)
	case report.BackendGCP:
		sink, err := report.NewGCSSink(ctx, report.GCSConfig{
			ProjectID:   cfg.Upload.GCPProjectID,
			KeyFilePath: cfg.Upload.GCPKeyFilePath,
			Bucket:      cfg.Upload.GCPBucket,
			Prefix:      cfg.Upload.GCSPrefix,
		})
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, sink)
		return sink, nil
	case report.BackendRedis:
		redisClient := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: "", // no password set
			DB:       0,  // use default DB
			Protocol: 2,
		})
		b.closers = append(b.closers, redisClient)
		records := dao.NewDAORecords(redisClient, cfg.Redis.TTL)
		if err := records.Ping(ctx); err != nil {
			b.logger.Warn("Redis is not reachable yet", "error", err)
		}
		return report.NewRedisSink(records), nil
	default:
		return nil, errors.Newf("improper upload method %q", cfg.Upload.Method)
	}
}

// Start serves the API and runs the measurement loop until ctx is cancelled.
func (b *Bootstrap) Start(ctx context.Context) error {
	defer b.close()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- b.apiServer.Start()
	}()

	b.logger.Info("Prober started",
		"network", b.config.Network,
		"account", b.config.Operator.AccountID,
		"interval", b.config.Probe.Interval.String(),
		"upload", b.config.Upload.Method)

	loopCtx, stopLoop := context.WithCancel(ctx)
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		b.scheduler.Run(loopCtx)
	}()

	var err error
	select {
	case <-ctx.Done():
	case err = <-serverErr:
	}

	stopLoop()
	<-loopDone

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if shutdownErr := b.apiServer.Shutdown(shutdownCtx); shutdownErr != nil {
		b.logger.Error("Error shutting down APIServer", "error", shutdownErr)
	}

	b.monitor.Wait()
	b.logger.Info("Prober stopped")

	return err
}

// RunOnce performs a single measurement cycle and returns its record.
func (b *Bootstrap) RunOnce(ctx context.Context) (telemetrics.MeasurementRecord, error) {
	defer b.close()

	record, err := b.scheduler.RunOnce(ctx)
	b.monitor.Wait()
	return record, err
}

func (b *Bootstrap) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i].Close(); err != nil {
			b.logger.Warn("Error closing client", "error", err)
		}
	}
	b.closers = nil
}

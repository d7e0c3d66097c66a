// Package health watches the operator balance and raises low-balance alerts.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/yaron8/tx-latency-prober/metrics"
	"github.com/yaron8/tx-latency-prober/prober/notify"
)

const defaultAlertTimeout = 15 * time.Second

// BalanceSource is the read-only part of the ledger client the monitor needs.
type BalanceSource interface {
	QueryBalance(ctx context.Context) (float64, error)
	AccountID() string
}

type Config struct {
	// Floor in hbar; an alert fires when the balance is strictly below it.
	Floor float64
	// ScopeURL is the explorer base used to link the account.
	ScopeURL string
	// Cooldown is the minimum gap between alerts; zero alerts on every breach.
	Cooldown     time.Duration
	AlertTimeout time.Duration
}

// Result of one check. Err is set when the balance could not be read.
type Result struct {
	Balance    float64
	BelowFloor bool
	Alerted    bool
	Err        error
}

type Monitor struct {
	source   BalanceSource
	notifier notify.Notifier
	cfg      Config
	limiter  *rate.Limiter
	logger   *slog.Logger
	metrics  *metrics.Collector

	inflight sync.WaitGroup
}

func NewMonitor(source BalanceSource, notifier notify.Notifier, cfg Config, logger *slog.Logger, m *metrics.Collector) *Monitor {
	if cfg.AlertTimeout <= 0 {
		cfg.AlertTimeout = defaultAlertTimeout
	}
	mon := &Monitor{
		source:   source,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
	}
	if cfg.Cooldown > 0 {
		mon.limiter = rate.NewLimiter(rate.Every(cfg.Cooldown), 1)
	}
	return mon
}

// Check reads the balance and dispatches an alert in the background when it
// is below the floor. It never waits for alert delivery.
func (m *Monitor) Check(ctx context.Context) Result {
	balance, err := m.source.QueryBalance(ctx)
	if err != nil {
		m.logger.Error("Error querying account balance", "account", m.source.AccountID(), "error", err)
		return Result{Err: err}
	}
	m.metrics.SetBalance(balance)

	res := Result{Balance: balance, BelowFloor: balance < m.cfg.Floor}
	if !res.BelowFloor {
		return res
	}
	if m.limiter != nil && !m.limiter.Allow() {
		m.logger.Info("Balance alert suppressed by cooldown", "balance", balance, "floor", m.cfg.Floor)
		return res
	}

	m.dispatch(m.message(balance))
	res.Alerted = true
	return res
}

// Wait blocks until every dispatched alert finished.
func (m *Monitor) Wait() {
	m.inflight.Wait()
}

func (m *Monitor) message(balance float64) string {
	account := m.source.AccountID()
	return fmt.Sprintf("Current balance of <%s/account/%s|%s> is less than %v HBAR! balance=%v HBAR",
		m.cfg.ScopeURL, account, account, m.cfg.Floor, balance)
}

func (m *Monitor) dispatch(text string) {
	m.inflight.Add(1)
	go func() {
		defer m.inflight.Done()

		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.AlertTimeout)
		defer cancel()

		if err := m.notifier.Notify(ctx, text); err != nil {
			m.metrics.IncAlert(false)
			m.logger.Error("Error delivering balance alert", "error", err)
			return
		}
		m.metrics.IncAlert(true)
	}()
}

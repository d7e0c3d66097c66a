// Package oracle fetches the native-to-reference exchange rate.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

const (
	DefaultBaseURL    = "https://api.coingecko.com/api/v3"
	DefaultCoinID     = "hedera-hashgraph"
	DefaultVsCurrency = "usd"
)

// ErrNoRate is returned when the response has no usable rate.
var ErrNoRate = errors.New("no rate in price response")

type Config struct {
	BaseURL    string
	CoinID     string
	VsCurrency string
	// CacheTTL keeps a fetched rate for this long; zero disables caching.
	CacheTTL time.Duration
	Timeout  time.Duration
}

// CoinGecko reads simple/price quotes.
type CoinGecko struct {
	cfg        Config
	httpClient *http.Client

	mu         sync.RWMutex
	cachedRate float64
	cacheTime  time.Time
}

func NewCoinGecko(cfg Config) *CoinGecko {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.CoinID == "" {
		cfg.CoinID = DefaultCoinID
	}
	if cfg.VsCurrency == "" {
		cfg.VsCurrency = DefaultVsCurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &CoinGecko{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// NativeToReference returns how many reference units one native unit is worth.
func (c *CoinGecko) NativeToReference(ctx context.Context) (float64, error) {
	c.mu.RLock()
	if c.fresh() {
		rate := c.cachedRate
		c.mu.RUnlock()
		return rate, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another goroutine may have refreshed it while we waited for the lock
	if c.fresh() {
		return c.cachedRate, nil
	}

	rate, err := c.fetch(ctx)
	if err != nil {
		return 0, err
	}

	c.cachedRate = rate
	c.cacheTime = time.Now()
	return rate, nil
}

func (c *CoinGecko) fresh() bool {
	return c.cfg.CacheTTL > 0 && c.cachedRate > 0 && time.Since(c.cacheTime) < c.cfg.CacheTTL
}

func (c *CoinGecko) fetch(ctx context.Context) (float64, error) {
	query := url.Values{}
	query.Set("ids", c.cfg.CoinID)
	query.Set("vs_currencies", c.cfg.VsCurrency)
	endpoint := fmt.Sprintf("%s/simple/price?%s", c.cfg.BaseURL, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, errors.Wrap(err, "build price request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, errors.Wrap(err, "fetch price")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, errors.Newf("unexpected status code from price api: %d", resp.StatusCode)
	}

	var body map[string]map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, errors.Wrap(err, "decode price response")
	}

	rate, ok := body[c.cfg.CoinID][c.cfg.VsCurrency]
	if !ok {
		return 0, errors.Wrapf(ErrNoRate, "%s/%s", c.cfg.CoinID, c.cfg.VsCurrency)
	}
	if rate <= 0 {
		return 0, errors.Wrapf(ErrNoRate, "non-positive rate %v", rate)
	}
	return rate, nil
}

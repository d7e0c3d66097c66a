package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
)

type Config struct {
	Port    int // API server port
	Network string
	ChainID int64

	Operator OperatorConfig
	Probe    ProbeConfig
	Alert    AlertConfig
	Price    PriceConfig
	Upload   UploadConfig
	Redis    RedisConfig
	Log      LogConfig
}

type OperatorConfig struct {
	AccountID  string
	PrivateKey string
}

type ProbeConfig struct {
	Interval           time.Duration
	AmountTinybar      int64
	MaxReceiptAttempts int
	ReceiptRetryDelay  time.Duration
	RequestTimeout     time.Duration
}

type AlertConfig struct {
	BalanceFloor  float64 // hbar
	ScopeURL      string
	Cooldown      time.Duration
	SlackAPIURL   string
	SlackChannel  string
	SlackAuth     string
	DeliveryLimit time.Duration
}

type PriceConfig struct {
	APIURL     string
	CoinID     string
	VsCurrency string
	CacheTTL   time.Duration
}

type UploadConfig struct {
	Method          string // AWS, GCP or REDIS
	S3Bucket        string
	GCPProjectID    string
	GCPKeyFilePath  string
	GCPBucket       string
	GCSPrefix       string
	DeliveryTimeout time.Duration
}

type RedisConfig struct {
	Host string
	Port int
	TTL  time.Duration
}

type LogConfig struct {
	Dir  string
	File string
}

// NewConfig reads the environment, falling back to a .env file in the working
// directory when present.
func NewConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if _, err := os.Stat(".env"); err == nil {
		v.SetConfigFile(".env")
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, "read .env")
		}
	}

	return FromViper(v)
}

// FromViper builds the configuration from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	interval, err := parseInterval(v.GetString("SEND_TX_INTERVAL"))
	if err != nil {
		return nil, err
	}

	network := strings.ToLower(strings.TrimSpace(v.GetString("NETWORK")))

	return &Config{
		Port:    v.GetInt("PORT"),
		Network: network,
		ChainID: v.GetInt64("CHAIN_ID"),
		Operator: OperatorConfig{
			AccountID:  v.GetString("ACCOUNT_ID"),
			PrivateKey: v.GetString("PRIVATE_KEY"),
		},
		Probe: ProbeConfig{
			Interval:           interval,
			AmountTinybar:      v.GetInt64("PROBE_AMOUNT_TINYBAR"),
			MaxReceiptAttempts: v.GetInt("MAX_RECEIPT_ATTEMPTS"),
			ReceiptRetryDelay:  v.GetDuration("RECEIPT_RETRY_DELAY"),
			RequestTimeout:     v.GetDuration("REQUEST_TIMEOUT"),
		},
		Alert: AlertConfig{
			BalanceFloor:  v.GetFloat64("BALANCE_ALERT_CONDITION_IN_HBAR"),
			ScopeURL:      v.GetString("SCOPE_URL"),
			Cooldown:      v.GetDuration("ALERT_COOLDOWN"),
			SlackAPIURL:   v.GetString("SLACK_API_URL"),
			SlackChannel:  v.GetString("SLACK_CHANNEL"),
			SlackAuth:     v.GetString("SLACK_AUTH"),
			DeliveryLimit: v.GetDuration("ALERT_TIMEOUT"),
		},
		Price: PriceConfig{
			APIURL:     v.GetString("PRICE_API_URL"),
			CoinID:     v.GetString("PRICE_COIN_ID"),
			VsCurrency: v.GetString("PRICE_VS_CURRENCY"),
			CacheTTL:   v.GetDuration("PRICE_CACHE_TTL"),
		},
		Upload: UploadConfig{
			Method:          strings.ToUpper(strings.TrimSpace(v.GetString("UPLOAD_METHOD"))),
			S3Bucket:        v.GetString("S3_BUCKET"),
			GCPProjectID:    v.GetString("GCP_PROJECT_ID"),
			GCPKeyFilePath:  v.GetString("GCP_KEY_FILE_PATH"),
			GCPBucket:       v.GetString("GCP_BUCKET"),
			GCSPrefix:       v.GetString("GCS_PREFIX"),
			DeliveryTimeout: v.GetDuration("UPLOAD_TIMEOUT"),
		},
		Redis: RedisConfig{
			Host: v.GetString("REDIS_HOST"),
			Port: v.GetInt("REDIS_PORT"),
			TTL:  v.GetDuration("REDIS_TTL"),
		},
		Log: LogConfig{
			Dir:  v.GetString("LOG_DIR"),
			File: v.GetString("LOG_FILE"),
		},
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", 8080)
	v.SetDefault("NETWORK", "testnet")
	v.SetDefault("CHAIN_ID", 296)
	v.SetDefault("SEND_TX_INTERVAL", "5m")
	v.SetDefault("PROBE_AMOUNT_TINYBAR", 10*100_000_000)
	v.SetDefault("MAX_RECEIPT_ATTEMPTS", 3)
	v.SetDefault("RECEIPT_RETRY_DELAY", "0s")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("BALANCE_ALERT_CONDITION_IN_HBAR", 100)
	v.SetDefault("SCOPE_URL", "https://hashscan.io/testnet")
	v.SetDefault("ALERT_COOLDOWN", "0s")
	v.SetDefault("ALERT_TIMEOUT", "15s")
	v.SetDefault("PRICE_API_URL", "https://api.coingecko.com/api/v3")
	v.SetDefault("PRICE_COIN_ID", "hedera-hashgraph")
	v.SetDefault("PRICE_VS_CURRENCY", "usd")
	v.SetDefault("PRICE_CACHE_TTL", "30s")
	v.SetDefault("UPLOAD_METHOD", "AWS")
	v.SetDefault("GCS_PREFIX", "tx-latency-measurement/hedera")
	v.SetDefault("UPLOAD_TIMEOUT", "1m")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_TTL", "720h")
	v.SetDefault("LOG_DIR", "")
	v.SetDefault("LOG_FILE", "prober.log")

	for _, key := range []string{
		"ACCOUNT_ID", "PRIVATE_KEY", "SLACK_API_URL", "SLACK_CHANNEL", "SLACK_AUTH",
		"S3_BUCKET", "GCP_PROJECT_ID", "GCP_KEY_FILE_PATH", "GCP_BUCKET",
	} {
		v.SetDefault(key, "")
	}
}

// parseInterval accepts a Go duration ("5m"), plain milliseconds ("300000")
// or a product of milliseconds ("1000*60*5") as found in older .env files.
func parseInterval(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if d, err := time.ParseDuration(raw); err == nil {
		return d, nil
	}

	ms := int64(1)
	for _, factor := range strings.Split(raw, "*") {
		n, err := strconv.ParseInt(strings.TrimSpace(factor), 10, 64)
		if err != nil {
			return 0, errors.WithHint(
				errors.Newf("invalid SEND_TX_INTERVAL %q", raw),
				"use a duration such as 5m, a number of milliseconds, or a product like 1000*60*5")
		}
		ms *= n
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// Validate reports configuration that makes running pointless. It runs once
// at startup; a failure there is fatal.
func (c *Config) Validate() error {
	if c.Operator.PrivateKey == "" {
		return errors.WithHint(errors.New("private key is not defined"),
			"create a new account at https://portal.hedera.com/register, then set ACCOUNT_ID and PRIVATE_KEY in .env")
	}
	if c.Operator.AccountID == "" {
		return errors.WithHint(errors.New("account id is not defined"), "set ACCOUNT_ID, e.g. 0.0.12345")
	}
	if c.Network != "mainnet" && c.Network != "testnet" {
		return errors.Newf("NETWORK must be mainnet or testnet, got %q", c.Network)
	}
	if c.Probe.Interval <= 0 {
		return errors.Newf("SEND_TX_INTERVAL must be positive, got %s", c.Probe.Interval)
	}

	switch c.Upload.Method {
	case "AWS":
		if c.Upload.S3Bucket == "" {
			return errors.WithHint(errors.New("undefined bucket name"), "set S3_BUCKET")
		}
	case "GCP":
		if c.Upload.GCPProjectID == "" || c.Upload.GCPKeyFilePath == "" || c.Upload.GCPBucket == "" {
			return errors.WithHint(errors.New("undefined parameters"),
				"set GCP_PROJECT_ID, GCP_KEY_FILE_PATH and GCP_BUCKET")
		}
	case "REDIS":
		if c.Redis.Host == "" || c.Redis.Port <= 0 {
			return errors.New("REDIS_HOST and REDIS_PORT are required for REDIS upload")
		}
	default:
		return errors.WithHint(errors.Newf("improper upload method %q", c.Upload.Method), "use AWS, GCP or REDIS")
	}

	return nil
}

// SlackEnabled reports whether alerts go to Slack rather than the log.
func (c *Config) SlackEnabled() bool {
	return c.Alert.SlackAPIURL != ""
}

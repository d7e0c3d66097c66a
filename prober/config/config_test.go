package config

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.Set("ACCOUNT_ID", "0.0.1001")
	v.Set("PRIVATE_KEY", "302e020100300506032b657004220420deadbeef")
	v.Set("S3_BUCKET", "latency")
	return v
}

func TestFromViper_Defaults(t *testing.T) {
	cfg, err := FromViper(validViper())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "testnet", cfg.Network)
	assert.Equal(t, 5*time.Minute, cfg.Probe.Interval)
	assert.Equal(t, int64(1_000_000_000), cfg.Probe.AmountTinybar)
	assert.Equal(t, 3, cfg.Probe.MaxReceiptAttempts)
	assert.Equal(t, "AWS", cfg.Upload.Method)
	assert.Equal(t, "hedera-hashgraph", cfg.Price.CoinID)
	assert.Equal(t, 30*time.Second, cfg.Price.CacheTTL)
	assert.Equal(t, 6379, cfg.Redis.Port)
	assert.NoError(t, cfg.Validate())
}

func TestNewConfig_ReadsEnvironment(t *testing.T) {
	t.Setenv("ACCOUNT_ID", "0.0.2002")
	t.Setenv("PRIVATE_KEY", "key")
	t.Setenv("NETWORK", "MainNet")
	t.Setenv("CHAIN_ID", "295")
	t.Setenv("SEND_TX_INTERVAL", "1000*60")
	t.Setenv("UPLOAD_METHOD", "gcp")
	t.Setenv("BALANCE_ALERT_CONDITION_IN_HBAR", "25.5")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "0.0.2002", cfg.Operator.AccountID)
	assert.Equal(t, "mainnet", cfg.Network)
	assert.Equal(t, int64(295), cfg.ChainID)
	assert.Equal(t, time.Minute, cfg.Probe.Interval)
	assert.Equal(t, "GCP", cfg.Upload.Method)
	assert.Equal(t, 25.5, cfg.Alert.BalanceFloor)
}

func TestParseInterval(t *testing.T) {
	tests := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{raw: "5m", want: 5 * time.Minute},
		{raw: "90s", want: 90 * time.Second},
		{raw: "300000", want: 5 * time.Minute},
		{raw: " 1000 ", want: time.Second},
		{raw: "1000*60*5", want: 5 * time.Minute},
		{raw: "60000 * 5", want: 5 * time.Minute},
		{raw: "60000*", wantErr: true},
		{raw: "60000*x", wantErr: true},
		{raw: "1000+5", wantErr: true},
		{raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseInterval(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{name: "missing private key", mutate: func(c *Config) { c.Operator.PrivateKey = "" }, errMsg: "private key is not defined"},
		{name: "missing account", mutate: func(c *Config) { c.Operator.AccountID = "" }, errMsg: "account id is not defined"},
		{name: "bad network", mutate: func(c *Config) { c.Network = "previewnet" }, errMsg: "NETWORK must be mainnet or testnet"},
		{name: "zero interval", mutate: func(c *Config) { c.Probe.Interval = 0 }, errMsg: "SEND_TX_INTERVAL must be positive"},
		{name: "aws without bucket", mutate: func(c *Config) { c.Upload.S3Bucket = "" }, errMsg: "undefined bucket name"},
		{name: "gcp incomplete", mutate: func(c *Config) { c.Upload.Method = "GCP" }, errMsg: "undefined parameters"},
		{name: "unknown method", mutate: func(c *Config) { c.Upload.Method = "FTP" }, errMsg: "improper upload method"},
		{name: "redis ok", mutate: func(c *Config) { c.Upload.Method = "REDIS" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := FromViper(validViper())
			require.NoError(t, err)
			tt.mutate(cfg)

			err = cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidate_MissingKeyCarriesHint(t *testing.T) {
	cfg, err := FromViper(validViper())
	require.NoError(t, err)
	cfg.Operator.PrivateKey = ""

	hints := errors.GetAllHints(cfg.Validate())

	require.Len(t, hints, 1)
	assert.Contains(t, hints[0], "portal.hedera.com")
}

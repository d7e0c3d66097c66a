package oracle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func priceServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/simple/price", r.URL.Path)
		assert.Equal(t, DefaultCoinID, r.URL.Query().Get("ids"))
		assert.Equal(t, DefaultVsCurrency, r.URL.Query().Get("vs_currencies"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestNativeToReference_ParsesRate(t *testing.T) {
	srv, _ := priceServer(t, http.StatusOK, `{"hedera-hashgraph":{"usd":0.0712}}`)

	rate, err := NewCoinGecko(Config{BaseURL: srv.URL}).NativeToReference(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0.0712, rate)
}

func TestNativeToReference_CachesWithinTTL(t *testing.T) {
	srv, hits := priceServer(t, http.StatusOK, `{"hedera-hashgraph":{"usd":0.05}}`)
	c := NewCoinGecko(Config{BaseURL: srv.URL, CacheTTL: time.Minute})

	for i := 0; i < 3; i++ {
		_, err := c.NativeToReference(context.Background())
		require.NoError(t, err)
	}

	assert.Equal(t, int32(1), hits.Load())
}

func TestNativeToReference_NoCacheByDefault(t *testing.T) {
	srv, hits := priceServer(t, http.StatusOK, `{"hedera-hashgraph":{"usd":0.05}}`)
	c := NewCoinGecko(Config{BaseURL: srv.URL})

	_, _ = c.NativeToReference(context.Background())
	_, _ = c.NativeToReference(context.Background())

	assert.Equal(t, int32(2), hits.Load())
}

func TestNativeToReference_ConcurrentCallersShareOneFetch(t *testing.T) {
	srv, hits := priceServer(t, http.StatusOK, `{"hedera-hashgraph":{"usd":0.05}}`)
	c := NewCoinGecko(Config{BaseURL: srv.URL, CacheTTL: time.Minute})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rate, err := c.NativeToReference(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, 0.05, rate)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), hits.Load())
}

func TestNativeToReference_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		noRate bool
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{}`},
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{}`},
		{name: "malformed body", status: http.StatusOK, body: `not json`},
		{name: "missing coin", status: http.StatusOK, body: `{"bitcoin":{"usd":60000}}`, noRate: true},
		{name: "zero rate", status: http.StatusOK, body: `{"hedera-hashgraph":{"usd":0}}`, noRate: true},
		{name: "negative rate", status: http.StatusOK, body: `{"hedera-hashgraph":{"usd":-1}}`, noRate: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := priceServer(t, tt.status, tt.body)

			rate, err := NewCoinGecko(Config{BaseURL: srv.URL}).NativeToReference(context.Background())

			require.Error(t, err)
			assert.Zero(t, rate)
			assert.Equal(t, tt.noRate, errors.Is(err, ErrNoRate))
		})
	}
}

func TestNativeToReference_FailureIsNotCached(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"hedera-hashgraph":{"usd":0.09}}`))
	}))
	defer srv.Close()
	c := NewCoinGecko(Config{BaseURL: srv.URL, CacheTTL: time.Minute})

	_, err := c.NativeToReference(context.Background())
	require.Error(t, err)

	fail.Store(false)
	rate, err := c.NativeToReference(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.09, rate)
}

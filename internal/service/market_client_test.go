package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetRatesDecodesQuotes(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"bitcoin": {"usd": 50000, "usd_24h_change": -1.25},
			"ethereum": {"usd": 2600.5, "usd_24h_change": 3.1}
		}`))
	}))
	defer server.Close()

	client := NewMarketClient(server.URL, 5*time.Second, zerolog.Nop())
	rates, err := client.GetRates(context.Background(), []string{"bitcoin", "ethereum"})

	require.NoError(t, err)
	require.Len(t, rates, 2)
	assert.Equal(t, "50000", rates["bitcoin"].USDPrice.String())
	assert.InDelta(t, -1.25, rates["bitcoin"].USD24hChange, 1e-9)
	assert.Equal(t, "2600.5", rates["ethereum"].USDPrice.String())
	assert.Contains(t, gotQuery, "vs_currencies=usd")
	assert.Contains(t, gotQuery, "include_24hr_change=true")
}

func TestGetRatesSkipsUnquotedAssets(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"bitcoin": {"usd": 50000, "usd_24h_change": 0.5}}`))
	}))
	defer server.Close()

	client := NewMarketClient(server.URL, 5*time.Second, zerolog.Nop())
	rates, err := client.GetRates(context.Background(), []string{"bitcoin", "not-a-coin"})

	require.NoError(t, err)
	require.Len(t, rates, 1)
	assert.Contains(t, rates, "bitcoin")
}

func TestGetRatesServiceErrorIsTyped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewMarketClient(server.URL, 5*time.Second, zerolog.Nop())
	_, err := client.GetRates(context.Background(), []string{"bitcoin"})

	require.ErrorIs(t, err, ErrMarketDataUnavailable)
}

func TestGetRatesEmptyRequestSkipsCall(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	client := NewMarketClient(server.URL, 5*time.Second, zerolog.Nop())
	rates, err := client.GetRates(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, rates)
	assert.False(t, called)
}

package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stockcast/internal/contracts"
	"github.com/wonny/stockcast/pkg/config"
	"github.com/wonny/stockcast/pkg/httputil"
	"github.com/wonny/stockcast/pkg/logger"
)

// 2026-01-05 / 06 / 07 14:30 UTC (09:30 New York)
const sampleChart = `{
  "chart": {
    "result": [{
      "meta": {"symbol": "AAPL", "currency": "USD", "gmtoffset": -18000},
      "timestamp": [1767623400, 1767709800, 1767796200],
      "indicators": {
        "quote": [{"close": [243.1, null, 245.5]}],
        "adjclose": [{"adjclose": [242.9, null, 245.3]}]
      }
    }],
    "error": null
  }
}`

const notFoundChart = `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`

func decode(t *testing.T, body string) *chartResponse {
	t.Helper()
	var resp chartResponse
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	return &resp
}

func TestParseChart(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		useAdjusted bool
		wantCloses  []float64
		wantErr     error
	}{
		{
			name:        "adjusted closes skip nulls",
			body:        sampleChart,
			useAdjusted: true,
			wantCloses:  []float64{242.9, 245.3},
		},
		{
			name:       "raw closes",
			body:       sampleChart,
			wantCloses: []float64{243.1, 245.5},
		},
		{
			name:    "not found",
			body:    notFoundChart,
			wantErr: contracts.ErrNoData,
		},
		{
			name:    "empty result",
			body:    `{"chart":{"result":[],"error":null}}`,
			wantErr: contracts.ErrNoData,
		},
		{
			name:    "only null and zero closes",
			body:    `{"chart":{"result":[{"meta":{},"timestamp":[1767623400,1767709800],"indicators":{"quote":[{"close":[null,0]}]}}]}}`,
			wantErr: contracts.ErrNoData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points, err := parseChart(decode(t, tt.body), tt.useAdjusted)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)

			got := make([]float64, len(points))
			for i, p := range points {
				got[i] = p.Close
			}
			assert.Equal(t, tt.wantCloses, got)
		})
	}
}

func TestParseChart_ExchangeLocalDates(t *testing.T) {
	points, err := parseChart(decode(t, sampleChart), true)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), points[0].Date)
	assert.Equal(t, time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC), points[1].Date)
}

func TestParseChart_UpstreamError(t *testing.T) {
	_, err := parseChart(decode(t, `{"chart":{"result":null,"error":{"code":"Bad Request","description":"Invalid input"}}}`), true)
	require.Error(t, err)
	assert.False(t, errors.Is(err, contracts.ErrNoData))
	assert.Contains(t, err.Error(), "Invalid input")
}

func newTestClient(baseURL string) *Client {
	cfg := &config.Config{Env: "development"}
	httpClient := httputil.New(cfg, logger.Nop()).DisableRetry()
	return NewClient(httpClient, logger.Nop(), baseURL, 100)
}

func TestFetchDaily(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.URL.Path, "/v8/finance/chart/AAPL"))
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		assert.NotEmpty(t, r.URL.Query().Get("period1"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleChart))
	}))
	defer server.Close()

	points, err := newTestClient(server.URL).FetchDaily(context.Background(), "AAPL",
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, points, 2)
}

func TestFetchDaily_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(notFoundChart))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).FetchDaily(context.Background(), "ZZZZ", time.Now().AddDate(0, -1, 0), time.Now())
	assert.ErrorIs(t, err, contracts.ErrNoData)
}

func TestFetchDaily_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).FetchDaily(context.Background(), "AAPL", time.Now().AddDate(0, -1, 0), time.Now())
	require.Error(t, err)
	assert.False(t, errors.Is(err, contracts.ErrNoData))
}

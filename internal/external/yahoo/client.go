package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/stockcast/internal/contracts"
	"github.com/wonny/stockcast/pkg/httputil"
	"github.com/wonny/stockcast/pkg/logger"
)

// DefaultBaseURL Yahoo Finance chart API
const DefaultBaseURL = "https://query1.finance.yahoo.com"

// Client handles communication with the Yahoo Finance chart API
// ⭐ SSOT: Yahoo Finance 호출은 이 클라이언트에서만
type Client struct {
	httpClient  *httputil.Client
	logger      *logger.Logger
	baseURL     string
	limiter     *rate.Limiter
	useAdjusted bool
}

// NewClient creates a new Yahoo Finance client throttled to rps requests per second
func NewClient(httpClient *httputil.Client, log *logger.Logger, baseURL string, rps float64) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if rps <= 0 {
		rps = 2
	}
	return &Client{
		httpClient:  httpClient,
		logger:      log,
		baseURL:     strings.TrimRight(baseURL, "/"),
		limiter:     rate.NewLimiter(rate.Limit(rps), 1),
		useAdjusted: true,
	}
}

// WithRawClose uses unadjusted closes instead of split/dividend adjusted ones
func (c *Client) WithRawClose() *Client {
	c.useAdjusted = false
	return c
}

// FetchDaily fetches daily closes for ticker in [from, to]
// HTTP 404 또는 빈 결과 → contracts.ErrNoData
func (c *Client) FetchDaily(ctx context.Context, ticker string, from, to time.Time) ([]contracts.PricePoint, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("yahoo throttle: %w", err)
	}

	params := url.Values{}
	params.Set("period1", fmt.Sprintf("%d", from.Unix()))
	params.Set("period2", fmt.Sprintf("%d", to.Unix()))
	params.Set("interval", "1d")
	params.Set("events", "history")
	params.Set("includeAdjustedClose", "true")
	fullURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(ticker), params.Encode())

	var resp chartResponse
	if err := c.httpClient.GetJSON(ctx, fullURL, &resp); err != nil {
		var statusErr *httputil.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%s: %w", ticker, contracts.ErrNoData)
		}
		return nil, fmt.Errorf("yahoo chart %s: %w", ticker, err)
	}

	points, err := parseChart(&resp, c.useAdjusted)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ticker, err)
	}

	c.logger.WithFields(map[string]interface{}{
		"ticker": ticker,
		"count":  len(points),
	}).Debug("Fetched prices")
	return points, nil
}

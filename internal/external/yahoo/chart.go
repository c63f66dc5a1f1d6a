package yahoo

import (
	"fmt"
	"math"
	"time"

	"github.com/wonny/stockcast/internal/contracts"
)

// chartResponse /v8/finance/chart 응답
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta struct {
		Symbol    string `json:"symbol"`
		Currency  string `json:"currency"`
		GMTOffset int    `json:"gmtoffset"` // 초 단위 거래소 UTC offset
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

// parseChart converts a chart response into price points.
// null / non-positive / non-finite closes are skipped.
func parseChart(resp *chartResponse, useAdjusted bool) ([]contracts.PricePoint, error) {
	if resp.Chart.Error != nil {
		if resp.Chart.Error.Code == "Not Found" {
			return nil, contracts.ErrNoData
		}
		return nil, fmt.Errorf("chart error %s: %s", resp.Chart.Error.Code, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, contracts.ErrNoData
	}

	result := resp.Chart.Result[0]
	var closes []*float64
	if useAdjusted && len(result.Indicators.AdjClose) > 0 {
		closes = result.Indicators.AdjClose[0].AdjClose
	} else if len(result.Indicators.Quote) > 0 {
		closes = result.Indicators.Quote[0].Close
	}

	// 거래소 현지 날짜 기준
	zone := time.FixedZone("exchange", result.Meta.GMTOffset)
	points := make([]contracts.PricePoint, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		v := *closes[i]
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		points = append(points, contracts.PricePoint{
			Date:  contracts.DateOf(time.Unix(ts, 0).In(zone)),
			Close: v,
		})
	}

	if len(points) == 0 {
		return nil, contracts.ErrNoData
	}
	return points, nil
}

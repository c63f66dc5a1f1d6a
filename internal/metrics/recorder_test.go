package metrics

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stockcast/internal/contracts"
	"github.com/wonny/stockcast/internal/daemon"
)

// gather returns name{labels} → value for counters and gauges
func gather(t *testing.T, r *Recorder) map[string]float64 {
	t.Helper()
	families, err := r.Registry().Gather()
	require.NoError(t, err)

	out := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			for _, lp := range m.GetLabel() {
				key += fmt.Sprintf(",%s=%s", lp.GetName(), lp.GetValue())
			}
			switch {
			case m.GetCounter() != nil:
				out[key] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				out[key] = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				out[key] = float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return out
}

func TestRecorder(t *testing.T) {
	r := New()

	r.StateChanged(daemon.StateTraining)
	r.UnitFinished(contracts.StageTraining, nil, 2*time.Second)
	r.UnitFinished(contracts.StageForecasting, errors.New("boom"), time.Second)
	r.UnitFinished(contracts.StageTraining, fmt.Errorf("x: %w", contracts.ErrUnitTimeout), time.Minute)
	r.BatchFinished(daemon.BatchSummary{
		Processed:  []string{"AAA", "BBB"},
		Failed:     map[string]string{"CCC": "boom"},
		FinishedAt: time.Unix(1_700_000_000, 0),
	})

	got := gather(t, r)

	assert.Equal(t, 1.0, got["stockcast_daemon_state,state=TRAINING"])
	assert.Equal(t, 0.0, got["stockcast_daemon_state,state=IDLE"])
	assert.Equal(t, 1.0, got["stockcast_units_total,outcome=success,stage=TRAINING"])
	assert.Equal(t, 1.0, got["stockcast_units_total,outcome=error,stage=FORECASTING"])
	assert.Equal(t, 1.0, got["stockcast_units_total,outcome=timeout,stage=TRAINING"])
	assert.Equal(t, 2.0, got["stockcast_unit_duration_seconds,stage=TRAINING"])
	assert.Equal(t, 1.0, got["stockcast_batches_total"])
	assert.Equal(t, 2.0, got["stockcast_tickers_processed_total"])
	assert.Equal(t, 1.0, got["stockcast_tickers_failed_total"])
	assert.Equal(t, 1_700_000_000.0, got["stockcast_last_batch_timestamp_seconds"])
}

func TestRecorder_Handler(t *testing.T) {
	r := New()
	r.StateChanged(daemon.StateIdle)

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `stockcast_daemon_state{state="IDLE"} 1`)
}

func TestRecorder_ImplementsDaemonRecorder(t *testing.T) {
	var _ daemon.Recorder = New()
}

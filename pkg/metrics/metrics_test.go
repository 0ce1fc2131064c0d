package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tdm/pkg/events"
)

func TestObserve(t *testing.T) {
	m := New()
	m.ObserveRecords("input", 6000)
	m.ObserveRecords("input", 10)
	m.ObserveReport(&events.Report{
		Episodes: []events.Episode{{Start: 0, End: 3}, {Start: 5, End: 300, Long: true}},
		Long:     []events.Episode{{Start: 5, End: 300, Long: true}},
	})

	assert.Equal(t, 6010.0, testutil.ToFloat64(m.RecordsEncoded.WithLabelValues("input")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Episodes))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LongEpisodes))

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "tdm_long_trigger_episodes_total 1"))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRecords("input", 1)
	m.ObserveReport(&events.Report{})
}

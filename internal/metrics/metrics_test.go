package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/richard-senior/podds/pkg/podds"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunMetricsCounts(t *testing.T) {
	rm := NewRunMetrics()

	rm.MatchRated("E0", true)
	rm.MatchRated("E0", false)
	rm.MatchRated("E1", true)
	rm.BetSettled("E0", podds.SideDraw, true, 2.5)
	rm.BetSettled("E0", podds.SideHome, false, 1.5)
	rm.BankrollUpdated("E0", 104.25)

	assert.Equal(t, 2.0, testutil.ToFloat64(rm.MatchesRated.WithLabelValues("E0")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rm.UncertainMatches.WithLabelValues("E0")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rm.UncertainMatches.WithLabelValues("E1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rm.BetsTotal.WithLabelValues("E0", "D", "won")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rm.BetsTotal.WithLabelValues("E0", "H", "lost")))
	assert.Equal(t, 4.0, testutil.ToFloat64(rm.StakeTotal.WithLabelValues("E0")))
	assert.Equal(t, 104.25, testutil.ToFloat64(rm.Bankroll.WithLabelValues("E0")))
}

func TestWriteTextfile(t *testing.T) {
	rm := NewRunMetrics()
	rm.MatchRated("SC0", false)

	path := filepath.Join(t.TempDir(), "podds.prom")
	require.NoError(t, rm.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `podds_matches_rated_total{league="SC0"} 1`)
}

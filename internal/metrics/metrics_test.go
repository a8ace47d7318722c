package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewProm("modhub", reg)

	p.IncInstallsStarted("link")
	p.IncInstallsStarted("link")
	p.IncInstallsFinished("succeeded")
	p.IncExtractAttempt("native", "ok")
	p.AddDownloadedBytes(1024)
	p.AddDownloadedBytes(-5)

	assert.Equal(t, 2.0, testutil.ToFloat64(p.installsStarted.WithLabelValues("link")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.installsFinished.WithLabelValues("succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.extractAttempts.WithLabelValues("native", "ok")))
	assert.Equal(t, 1024.0, testutil.ToFloat64(p.downloadedBytes))
}

func TestHandlerForExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewProm("modhub", reg)
	p.ObserveConflictScan(3, 1, 0.01)

	srv := httptest.NewServer(HandlerFor(reg))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.True(t, strings.Contains(string(body), "modhub_conflict_scan_conflicts 1"), string(body))
}

func TestNoopSatisfiesInterface(t *testing.T) {
	var m Metrics = Noop{}
	m.IncInstallsStarted("local")
	m.ObserveStage("download", 1)
}

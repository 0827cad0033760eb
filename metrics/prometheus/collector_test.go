package prometheus

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gather(t *testing.T, reg *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	out := make(map[string]*dto.MetricFamily, len(mfs))
	for _, mf := range mfs {
		out[mf.GetName()] = mf
	}
	return out
}

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg, "game")
	require.NoError(t, err)

	c.RecordImport("texture", 5*time.Millisecond, nil)
	c.RecordImport("texture", 7*time.Millisecond, errors.New("decode"))
	c.RecordDependencyFailures(3)
	c.RecordQueueDepth(4)
	c.RecordDiscovery(time.Second, 2, 10, 1, nil)
	c.RecordRemove(time.Millisecond, nil)
	c.RecordVerify(5, 1)

	mfs := gather(t, reg)

	imports := mfs["game_respack_import_duration_seconds"]
	require.NotNil(t, imports)
	assert.Len(t, imports.GetMetric(), 2)

	dep := mfs["game_respack_dependency_failures_total"]
	require.NotNil(t, dep)
	assert.Equal(t, 3.0, dep.GetMetric()[0].GetCounter().GetValue())

	depth := mfs["game_respack_import_queue_depth"]
	require.NotNil(t, depth)
	assert.Equal(t, 4.0, depth.GetMetric()[0].GetGauge().GetValue())

	discovered := mfs["game_respack_discovered"]
	require.NotNil(t, discovered)
	assert.Len(t, discovered.GetMetric(), 3)

	verified := mfs["game_respack_verified_containers_total"]
	require.NotNil(t, verified)
	var total float64
	for _, m := range verified.GetMetric() {
		total += m.GetCounter().GetValue()
	}
	assert.Equal(t, 5.0, total)
}

func TestCollector_DoubleRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg, "")
	require.NoError(t, err)
	_, err = New(reg, "")
	assert.Error(t, err)
}

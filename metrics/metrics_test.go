package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBasic(t *testing.T) {
	b := &Basic{}
	b.RecordImport("texture", 10*time.Millisecond, nil)
	b.RecordImport("mesh", 30*time.Millisecond, errors.New("decode"))
	b.RecordDependencyFailures(2)
	b.RecordQueueDepth(5)
	b.RecordQueueDepth(3)
	b.RecordDiscovery(time.Second, 4, 12, 1, nil)
	b.RecordDiscovery(time.Second, 0, 0, 0, errors.New("cancelled"))
	b.RecordRemove(time.Millisecond, nil)
	b.RecordVerify(4, 1)

	s := b.Stats()
	assert.Equal(t, int64(2), s.ImportCount)
	assert.Equal(t, int64(1), s.ImportErrors)
	assert.Equal(t, (20 * time.Millisecond).Nanoseconds(), s.ImportAvgNanos)
	assert.Equal(t, int64(2), s.DependencyFailures)
	assert.Equal(t, int64(3), s.QueueDepth)
	assert.Equal(t, int64(2), s.DiscoveryCount)
	assert.Equal(t, int64(1), s.DiscoveryErrors)
	assert.Equal(t, int64(4), s.Containers)
	assert.Equal(t, int64(12), s.Resources)
	assert.Equal(t, int64(1), s.RemoveCount)
	assert.Equal(t, int64(1), s.Corrupt)
}

func TestNoop(t *testing.T) {
	var c Collector = Noop{}
	c.RecordImport("x", 0, nil)
	c.RecordVerify(1, 0)
}

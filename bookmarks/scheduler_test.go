package bookmarks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSchedule(t *testing.T) {
	valid := []string{"@every 30s", "*/5 * * * *", "@hourly", "45s"}
	for _, spec := range valid {
		_, err := ParseSchedule(spec)
		assert.NoError(t, err, spec)
	}

	invalid := []string{"", "sometimes", "-5s", "0s"}
	for _, spec := range invalid {
		_, err := ParseSchedule(spec)
		assert.Error(t, err, spec)
	}
}

func TestSchedulerTriggersRefresh(t *testing.T) {
	src := &fakeSource{roots: sampleTree()}
	c := NewCache(src, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Watch(ctx) }()

	s, err := NewScheduler(c, "@every 1s")
	require.NoError(t, err)
	s.Start()
	s.Start()
	defer s.Stop()

	require.Eventually(t, c.Populated, 3*time.Second, 20*time.Millisecond)
	assert.GreaterOrEqual(t, src.calls.Load(), int32(1))
}

func TestSchedulerStopIdempotent(t *testing.T) {
	s, err := NewScheduler(NewCache(nil, nil), "@hourly")
	require.NoError(t, err)
	s.Stop()
	s.Start()
	s.Stop()
	s.Stop()
}

package logging

import (
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func messages(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Message
	}
	return out
}

func fill(j *Journal, n int) {
	for i := 0; i < n; i++ {
		j.Append(Entry{Level: slog.LevelInfo, Message: fmt.Sprintf("m%d", i)})
	}
}

func TestJournal_DefaultCapacity(t *testing.T) {
	assert.Equal(t, 100, NewJournal(0).Capacity())
	assert.Equal(t, 100, NewJournal(-5).Capacity())
	assert.Equal(t, 3, NewJournal(3).Capacity())
}

func TestJournal_EvictsOldest(t *testing.T) {
	j := NewJournal(3)
	fill(j, 5)

	assert.Equal(t, 3, j.Len())
	assert.Equal(t, []string{"m2", "m3", "m4"}, messages(j.All()))
}

func TestJournal_Range(t *testing.T) {
	j := NewJournal(10)
	fill(j, 6)

	assert.Equal(t, []string{"m1", "m2"}, messages(j.Range(1, 2)))
	assert.Equal(t, []string{"m4", "m5"}, messages(j.Range(4, 10)), "count is clamped to size")
	assert.Empty(t, j.Range(6, 1))
	assert.Empty(t, j.Range(2, 0))
	assert.Equal(t, []string{"m0", "m1"}, messages(j.Range(-3, 2)), "negative start is clamped to 0")
}

func TestJournal_RangeAfterWrap(t *testing.T) {
	j := NewJournal(4)
	fill(j, 7)

	assert.Equal(t, []string{"m4", "m5"}, messages(j.Range(1, 2)))
}

func TestJournal_AllIsACopy(t *testing.T) {
	j := NewJournal(2)
	fill(j, 1)

	all := j.All()
	all[0].Message = "changed"
	assert.Equal(t, "m0", j.All()[0].Message)
}

func TestJournal_Listeners(t *testing.T) {
	j := NewJournal(5)

	calls := 0
	cancel := j.Subscribe(func() {
		calls++
		// listeners run outside the lock
		_ = j.Len()
	})

	fill(j, 2)
	cancel()
	fill(j, 2)

	assert.Equal(t, 2, calls)
}

func TestJournal_ConcurrentAppend(t *testing.T) {
	j := NewJournal(50)

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fill(j, 200)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, j.Len())
}

func TestEntry_String(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, "03:04:05 INFO  started", Entry{Time: ts, Level: slog.LevelInfo, Message: "started"}.String())
	assert.Equal(t, "03:04:05 ERROR failed err=boom", Entry{Time: ts, Level: slog.LevelError, Message: "failed", Attrs: "err=boom"}.String())
}

func TestJournalHandler(t *testing.T) {
	j := NewJournal(10)
	logger := slog.New(NewJournalHandler(j, slog.LevelInfo))

	logger.Debug("dropped")
	logger.With("component", "robot").WithGroup("pose").Info("moved", "x", 1.5, "y", 2)

	entries := j.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "moved", entries[0].Message)
	assert.Equal(t, slog.LevelInfo, entries[0].Level)
	assert.Equal(t, "component=robot pose.x=1.5 pose.y=2", entries[0].Attrs)
	assert.False(t, entries[0].Time.IsZero())
}

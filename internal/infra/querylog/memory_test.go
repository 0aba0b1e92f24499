package querylog

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/weather-copilot/internal/domain/query"
)

func sampleEntry(id string) query.RouteEntry {
	return query.RouteEntry{
		RequestID:  id,
		Query:      "weather in Taipei",
		Source:     query.SourceRuleBased,
		Intent:     query.IntentCurrentWeather,
		Confidence: 0.55,
		Accepted:   true,
		Latency:    12 * time.Millisecond,
		CreatedAt:  time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}
}

func TestMemoryLogRecordsNewestFirst(t *testing.T) {
	log := NewMemoryLog()

	require.NoError(t, log.Record(context.Background(), sampleEntry("a")))
	require.NoError(t, log.Record(context.Background(), sampleEntry("b")))
	require.NoError(t, log.Record(context.Background(), sampleEntry("c")))

	recent := log.Recent(2)
	require.Len(t, recent, 2)
	require.Equal(t, "c", recent[0].RequestID)
	require.Equal(t, "b", recent[1].RequestID)
}

func TestMemoryLogBoundsRetention(t *testing.T) {
	log := NewMemoryLog()
	for i := 0; i < memoryCapacity+10; i++ {
		require.NoError(t, log.Record(context.Background(), sampleEntry(fmt.Sprintf("req-%d", i))))
	}

	recent := log.Recent(0)
	require.Len(t, recent, memoryCapacity)
	require.Equal(t, fmt.Sprintf("req-%d", memoryCapacity+9), recent[0].RequestID)
}

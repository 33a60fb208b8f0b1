package history

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_RecordAndRecent(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()

	runID := NewRunID()
	require.NotEmpty(t, runID)

	require.NoError(t, s.Record(ctx, CheckRecord{RunID: runID, Model: "SC", File: "sb.trace", Verdict: "NO"}))
	require.NoError(t, s.Record(ctx, CheckRecord{RunID: runID, Model: "TSO", File: "sb.trace", Verdict: "OK"}))

	recs, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "TSO", recs[0].Model, "Recent should return newest first")
	assert.Equal(t, "OK", recs[0].Verdict)
}

func TestStore_RecordBatch(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	runID := NewRunID()
	batch := []CheckRecord{
		{RunID: runID, Model: "SC", File: "a.trace", Verdict: "OK"},
		{RunID: runID, Model: "SC", File: "b.trace", Verdict: "NO", Mismatch: true},
	}
	require.NoError(t, s.RecordBatch(ctx, batch))

	recs, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
}

func TestStore_RecentDefaultLimit(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Record(ctx, CheckRecord{RunID: NewRunID(), Model: "SC", File: "x", Verdict: "OK"}))
	}

	recs, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, recs, 3)
}

func TestStore_RecordBatchEmptyIsNoop(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.RecordBatch(context.Background(), nil))
}

package history

import (
	"bufio"
	"bytes"
	"testing"
	"time"

	"github.com/keilerkonzept/follower-dashboard/internal/telemetry"
	"github.com/ohler55/ojg/oj"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cycle(i int) telemetry.Cycle {
	return telemetry.Cycle{
		Tracker:  telemetry.Sample{"center": []any{float64(i), float64(-i)}},
		Follower: telemetry.Sample{"vel_x": float64(i) / 10},
	}
}

func assertInvariants(t *testing.T, s *Store) {
	t.Helper()
	tr, fo, raw := s.Tracker(), s.Follower(), s.Raw()
	require.Equal(t, len(tr), len(fo))
	require.Equal(t, 2*len(tr), len(raw))
	for i := range tr {
		assert.Equal(t, telemetry.KindTracker, raw[2*i].Kind)
		assert.Equal(t, telemetry.KindFollower, raw[2*i+1].Kind)
		assert.Equal(t, raw[2*i].Seq, raw[2*i+1].Seq)
	}
}

func TestAppendInterleavesRawLog(t *testing.T) {
	s := New(Unbounded)
	assert.True(t, s.Empty())

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.Append(1, cycle(1), at)

	assert.False(t, s.Empty())
	assert.Equal(t, 1, s.Len())
	raw := s.Raw()
	require.Len(t, raw, 2)
	assert.Equal(t, telemetry.KindTracker, raw[0].Kind)
	assert.Equal(t, telemetry.KindFollower, raw[1].Kind)
	assert.Equal(t, at, raw[0].At)
	assertInvariants(t, s)
}

func TestUnboundedRetentionKeepsEverything(t *testing.T) {
	s := New(Unbounded)
	for i := 1; i <= 500; i++ {
		s.Append(uint64(i), cycle(i), time.Time{})
		assertInvariants(t, s)
	}
	assert.Equal(t, 500, s.Len())
}

func TestRingRetentionTrimsTogether(t *testing.T) {
	s := New(3)
	for i := 1; i <= 10; i++ {
		s.Append(uint64(i), cycle(i), time.Time{})
		assertInvariants(t, s)
		assert.LessOrEqual(t, s.Len(), 3)
	}

	tr := s.Tracker()
	require.Len(t, tr, 3)
	first, ok := telemetry.Lookup(tr[0], "center.0")
	require.True(t, ok)
	assert.Equal(t, 8.0, first, "oldest retained cycle")

	raw := s.Raw()
	assert.Equal(t, uint64(8), raw[0].Seq)
	assert.Equal(t, uint64(10), raw[len(raw)-1].Seq)
}

func TestNegativeRetentionIsUnbounded(t *testing.T) {
	assert.Equal(t, Unbounded, New(-4).Retention())
}

func TestAccessorsReturnCopies(t *testing.T) {
	s := New(Unbounded)
	s.Append(1, cycle(1), time.Time{})
	tr := s.Tracker()
	tr[0] = nil
	got, _, ok := s.Latest()
	require.True(t, ok)
	assert.NotNil(t, got)
}

func TestLatest(t *testing.T) {
	s := New(Unbounded)
	_, _, ok := s.Latest()
	assert.False(t, ok)

	s.Append(1, cycle(1), time.Time{})
	s.Append(2, cycle(2), time.Time{})
	tr, fo, ok := s.Latest()
	require.True(t, ok)
	x, _ := telemetry.Lookup(tr, "center.0")
	v, _ := telemetry.Lookup(fo, "vel_x")
	assert.Equal(t, 2.0, x)
	assert.InDelta(t, 0.2, v, 1e-9)
}

func TestSince(t *testing.T) {
	s := New(Unbounded)
	for i := 1; i <= 3; i++ {
		s.Append(uint64(i), cycle(i), time.Time{})
	}
	got := s.Since(2)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(3), got[0].Seq)
	assert.Empty(t, s.Since(3))
}

func TestExportJSONL(t *testing.T) {
	s := New(Unbounded)
	s.Append(7, cycle(1), time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	var buf bytes.Buffer
	require.NoError(t, s.ExportJSONL(&buf))

	var lines []map[string]any
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		v, err := oj.ParseString(sc.Text())
		require.NoError(t, err)
		lines = append(lines, v.(map[string]any))
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "tracker", lines[0]["kind"])
	assert.Equal(t, "follower", lines[1]["kind"])
	assert.Equal(t, int64(7), lines[0]["seq"])
	assert.Equal(t, "2026-01-01T00:00:00Z", lines[0]["at"])
}

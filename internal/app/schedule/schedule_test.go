package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghalamif/uabridge/internal/domain"
)

func TestNextFireTimeMidnight(t *testing.T) {
	loc := time.FixedZone("UZT", 5*3600)
	after := time.Date(2025, 7, 1, 13, 45, 0, 0, loc)

	next, err := NextFireTime("0 0 * * *", after, loc)
	require.NoError(t, err)
	assertSameInstant(t, time.Date(2025, 7, 2, 0, 0, 0, 0, loc), next)
}

func TestNextFireTimeIsStrictlyAfter(t *testing.T) {
	at := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)

	next, err := NextFireTime("0 * * * *", at, time.UTC)
	require.NoError(t, err)
	assertSameInstant(t, at.Add(time.Hour), next)
}

func TestNextFireTimeWithSecondsAndDescriptors(t *testing.T) {
	after := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)

	next, err := NextFireTime("30 0 10 * * *", after, time.UTC)
	require.NoError(t, err)
	assertSameInstant(t, after.Add(30*time.Second), next)

	next, err = NextFireTime("@hourly", after, time.UTC)
	require.NoError(t, err)
	assertSameInstant(t, after.Add(time.Hour), next)
}

func TestParseCronRejectsInvalid(t *testing.T) {
	_, err := ParseCron("")
	require.Error(t, err)

	_, err = ParseCron("61 * * * *")
	require.Error(t, err)
}

func TestDefaultWindowDaily(t *testing.T) {
	now := time.Date(2025, 7, 1, 0, 0, 5, 0, time.Local)

	w, err := DefaultWindow(domain.HistoryTypeDaily, now)
	require.NoError(t, err)
	assertSameInstant(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.Local), w.Start)
	assertSameInstant(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.Local), w.End)
	assert.True(t, w.Valid())
}

func TestDefaultWindowHourly(t *testing.T) {
	now := time.Date(2025, 7, 1, 14, 37, 0, 0, time.UTC)

	w, err := DefaultWindow(domain.HistoryTypeHourly, now)
	require.NoError(t, err)
	assertSameInstant(t, time.Date(2025, 6, 29, 0, 0, 0, 0, time.UTC), w.Start)
	assertSameInstant(t, time.Date(2025, 7, 1, 14, 0, 0, 0, time.UTC), w.End)
}

func TestDefaultWindowUnknownType(t *testing.T) {
	_, err := DefaultWindow(domain.HistoryTypeUnknown, time.Now())
	require.Error(t, err)
}

func TestCheckpointOverridesDefaultStart(t *testing.T) {
	now := time.Date(2025, 7, 2, 0, 0, 0, 0, time.UTC)
	cp := time.Date(2025, 6, 5, 17, 30, 0, 0, time.UTC)

	w, err := CheckpointWindow(domain.HistoryTypeDaily, now, &cp)
	require.NoError(t, err)
	assert.True(t, w.Start.Equal(cp))
	assertSameInstant(t, time.Date(2025, 7, 2, 0, 0, 0, 0, time.UTC), w.End)
}

func TestCheckpointAfterEndYieldsInvalidWindow(t *testing.T) {
	now := time.Date(2025, 7, 2, 9, 0, 0, 0, time.UTC)
	cp := time.Date(2025, 7, 2, 5, 0, 0, 0, time.UTC)

	w, err := CheckpointWindow(domain.HistoryTypeDaily, now, &cp)
	require.NoError(t, err)
	assert.False(t, w.Valid())
}

func assertSameInstant(t *testing.T, want, got time.Time) {
	t.Helper()
	assert.Truef(t, want.Equal(got), "expected %s, got %s", want, got)
}

// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package report

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/7ched7/trakd/pkg/timelog"
)

func localTime(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.ParseInLocation(timelog.TimeLayout, value, time.Local)
	require.NoError(t, err)
	return ts
}

func mockAt(t *testing.T, value string) *clock.Mock {
	t.Helper()
	mock := clock.NewMock()
	mock.Set(localTime(t, value))
	return mock
}

func TestGenerateDaily(t *testing.T) {
	logs := timelog.NewManager(t.TempDir())
	start := localTime(t, "2024-03-10 09:00:00")
	require.NoError(t, logs.SaveStart("foo", start))
	require.NoError(t, logs.SaveEnd("foo", start, localTime(t, "2024-03-10 10:30:00")))

	g := NewGenerator(logs, WithClock(mockAt(t, "2024-03-10 12:00:00")))
	entries, err := g.Generate(Daily)
	require.NoError(t, err)

	require.Len(t, entries, 1)
	assert.Equal(t, "foo", entries[0].Process)
	assert.Equal(t, 90*time.Minute, entries[0].Total)
	assert.Equal(t, 1, entries[0].ActiveDays)
}

func TestGenerateSubstitutesNowForOpenEnd(t *testing.T) {
	logs := timelog.NewManager(t.TempDir())
	require.NoError(t, logs.SaveStart("foo", localTime(t, "2024-03-10 09:00:00")))

	g := NewGenerator(logs, WithClock(mockAt(t, "2024-03-10 09:45:00")))
	entries, err := g.Generate(Daily)
	require.NoError(t, err)

	require.Len(t, entries, 1)
	assert.Equal(t, 45*time.Minute, entries[0].Total)
}

func TestGenerateWeekly(t *testing.T) {
	logs := timelog.NewManager(t.TempDir())

	// One hour on each of three days inside the window, one outside.
	for _, day := range []string{"2024-03-03", "2024-03-05", "2024-03-10"} {
		start := localTime(t, day+" 10:00:00")
		require.NoError(t, logs.SaveStart("foo", start))
		require.NoError(t, logs.SaveEnd("foo", start, localTime(t, day+" 11:00:00")))
	}
	outside := localTime(t, "2024-03-01 10:00:00")
	require.NoError(t, logs.SaveStart("foo", outside))
	require.NoError(t, logs.SaveEnd("foo", outside, localTime(t, "2024-03-01 20:00:00")))

	g := NewGenerator(logs, WithClock(mockAt(t, "2024-03-10 23:00:00")))
	entries, err := g.Generate(Weekly)
	require.NoError(t, err)

	require.Len(t, entries, 1)
	assert.Equal(t, 2*time.Hour, entries[0].Total, "2024-03-03 is outside the last 7 days")
	assert.Equal(t, 2, entries[0].ActiveDays)
}

func TestGenerateMonthlyCoversThirtyDays(t *testing.T) {
	logs := timelog.NewManager(t.TempDir())
	oldest := localTime(t, "2024-02-10 10:00:00") // 29 days before now's date
	require.NoError(t, logs.SaveStart("foo", oldest))
	require.NoError(t, logs.SaveEnd("foo", oldest, localTime(t, "2024-02-10 11:00:00")))

	g := NewGenerator(logs, WithClock(mockAt(t, "2024-03-10 12:00:00")))
	entries, err := g.Generate(Monthly)
	require.NoError(t, err)

	require.Len(t, entries, 1)
	assert.Equal(t, time.Hour, entries[0].Total)
}

func TestGenerateAggregatesMultipleProcessesSorted(t *testing.T) {
	logs := timelog.NewManager(t.TempDir())
	for _, name := range []string{"zsh", "vim", "emacs"} {
		start := localTime(t, "2024-03-10 10:00:00")
		require.NoError(t, logs.SaveStart(name, start))
		require.NoError(t, logs.SaveEnd(name, start, localTime(t, "2024-03-10 10:30:00")))
	}

	g := NewGenerator(logs, WithClock(mockAt(t, "2024-03-10 12:00:00")))
	entries, err := g.Generate(Daily)
	require.NoError(t, err)

	require.Len(t, entries, 3)
	assert.Equal(t, "emacs", entries[0].Process)
	assert.Equal(t, "vim", entries[1].Process)
	assert.Equal(t, "zsh", entries[2].Process)
}

func TestGenerateEmptyWindow(t *testing.T) {
	g := NewGenerator(timelog.NewManager(t.TempDir()), WithClock(mockAt(t, "2024-03-10 12:00:00")))
	entries, err := g.Generate(Weekly)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSpanAccessors(t *testing.T) {
	assert.Equal(t, 1, Daily.Days())
	assert.Equal(t, 7, Weekly.Days())
	assert.Equal(t, 30, Monthly.Days())
	assert.Equal(t, "daily", Daily.String())
	assert.Equal(t, "weekly", Weekly.String())
	assert.Equal(t, "monthly", Monthly.String())
}

package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCronExpression(t *testing.T) {
	ce, err := ParseCronExpression("*/15 9-17 * * 1-5")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 15, 30, 45}, ce.minutes)
	assert.Equal(t, []int{9, 10, 11, 12, 13, 14, 15, 16, 17}, ce.hours)
	assert.Len(t, ce.days, 31)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, ce.weekdays)
	assert.Equal(t, "*/15 9-17 * * 1-5", ce.String())

	ce, err = ParseCronExpression("5,1,5 0 1 1 0")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 5}, ce.minutes)

	ce, err = ParseCronExpression("10/20 * * * *")
	require.NoError(t, err)
	assert.Equal(t, []int{10, 30, 50}, ce.minutes)
}

func TestParseCronExpression_Invalid(t *testing.T) {
	tests := []string{
		"",
		"* * * *",
		"60 * * * *",
		"* 24 * * *",
		"* * 0 * *",
		"* * * 13 *",
		"* * * * 7",
		"*/0 * * * *",
		"10-5 * * * *",
		"a * * * *",
		"1-x * * * *",
	}
	for _, expr := range tests {
		t.Run(expr, func(t *testing.T) {
			_, err := ParseCronExpression(expr)
			assert.Error(t, err)
		})
	}
}

func TestCronExpression_Next(t *testing.T) {
	from := time.Date(2024, 5, 1, 10, 7, 30, 0, time.UTC) // Wednesday

	tests := []struct {
		expr string
		want time.Time
	}{
		{EveryMinute, time.Date(2024, 5, 1, 10, 8, 0, 0, time.UTC)},
		{EveryFiveMinutes, time.Date(2024, 5, 1, 10, 10, 0, 0, time.UTC)},
		{EveryHour, time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC)},
		{EveryDayMidnight, time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)},
		{"0 0 * * 0", time.Date(2024, 5, 5, 0, 0, 0, 0, time.UTC)},
		{"30 2 1 1 *", time.Date(2025, 1, 1, 2, 30, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			assert.Equal(t, tt.want, MustParseCronExpression(tt.expr).Next(from))
		})
	}
}

func TestCronExpression_NextIsStrictlyAfter(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 10, 0, 0, time.UTC)
	assert.Equal(t, at.Add(5*time.Minute), MustParseCronExpression(EveryFiveMinutes).Next(at))
}

func TestCronExpression_NoMatchWithinYear(t *testing.T) {
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	// February 30th never exists.
	assert.True(t, MustParseCronExpression("0 0 30 2 *").Next(from).IsZero())
}

func TestMustParseCronExpression_Panics(t *testing.T) {
	assert.Panics(t, func() { MustParseCronExpression("bogus") })
}

func TestParseSchedule(t *testing.T) {
	s, err := ParseSchedule("@every 30s")
	require.NoError(t, err)
	assert.Equal(t, NewIntervalSchedule(30*time.Second), s)
	assert.Equal(t, "@every 30s", s.String())

	s, err = ParseSchedule(" 5m ")
	require.NoError(t, err)
	assert.Equal(t, NewIntervalSchedule(5*time.Minute), s)

	s, err = ParseSchedule("0 3 * * *")
	require.NoError(t, err)
	assert.IsType(t, &CronExpression{}, s)

	from := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 5, 2, 3, 0, 0, 0, time.UTC), s.Next(from))

	for _, bad := range []string{"", "@every 0s", "-1m", "every day"} {
		_, err := ParseSchedule(bad)
		assert.Error(t, err, bad)
	}
}

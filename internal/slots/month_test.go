package slots

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthGrid(t *testing.T) {
	loc := time.UTC
	today := time.Date(2024, time.June, 10, 15, 0, 0, 0, loc)
	selected := time.Date(2024, time.June, 12, 0, 0, 0, 0, loc)

	grid := MonthGrid(today, selected, today, loc)

	assert.Equal(t, "June 2024", grid.Label)
	assert.Equal(t, 6, grid.Leading, "June 1st 2024 is a Saturday")
	require.Len(t, grid.Days, 30)
	assert.True(t, grid.Days[8].Past)
	assert.False(t, grid.Days[9].Past)
	assert.True(t, grid.Days[9].Today)
	assert.True(t, grid.Days[11].Selected)
	assert.Equal(t, "2024-05", grid.Prev)
	assert.Equal(t, "2024-07", grid.Next)
}

func TestParseMonth(t *testing.T) {
	m, err := ParseMonth("2024-02", time.UTC)
	require.NoError(t, err)
	grid := MonthGrid(m, time.Time{}, m, time.UTC)
	assert.Len(t, grid.Days, 29)
	for _, d := range grid.Days {
		assert.False(t, d.Selected)
	}
}

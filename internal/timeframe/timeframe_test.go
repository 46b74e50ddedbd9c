package timeframe

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup_Catalog(t *testing.T) {
	tests := []struct {
		id       ID
		function string
		interval string
		limit    int
		field    string
		bucket   time.Duration
	}{
		{OneDay, "TIME_SERIES_INTRADAY", "5min", 0, "Time Series (5min)", 5 * time.Minute},
		{OneWeek, "TIME_SERIES_DAILY", "", 7, "Time Series (Daily)", 24 * time.Hour},
		{OneMonth, "TIME_SERIES_DAILY", "", 30, "Time Series (Daily)", 24 * time.Hour},
		{OneYear, "TIME_SERIES_WEEKLY", "", 52, "Weekly Time Series", 7 * 24 * time.Hour},
	}
	for _, tt := range tests {
		tf, err := Lookup(tt.id)
		require.NoError(t, err, tt.id)
		assert.Equal(t, tt.function, tf.Function)
		assert.Equal(t, tt.interval, tf.Interval)
		assert.Equal(t, tt.limit, tf.Limit)
		assert.Equal(t, tt.field, tf.SeriesField)
		assert.Equal(t, tt.bucket, tf.Bucket)
		assert.NotEmpty(t, tf.Label)
	}
}

func TestLookup_Unknown(t *testing.T) {
	_, err := Lookup("5Y")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownTimeframe))
	assert.Contains(t, err.Error(), "5Y")
}

func TestParse_NormalizesInput(t *testing.T) {
	tf, err := Parse(" 1w ")
	require.NoError(t, err)
	assert.Equal(t, OneWeek, tf.ID)
	assert.False(t, tf.Intraday())

	tf, err = Parse("1d")
	require.NoError(t, err)
	assert.True(t, tf.Intraday())
}

func TestAll_ReturnsCopy(t *testing.T) {
	all := All()
	require.Len(t, all, 4)
	all[0].Label = "mutated"
	tf, _ := Lookup(OneDay)
	assert.Equal(t, "1 Day", tf.Label)
}

package sampling

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		input    string
		expected Timestamp
		wantErr  bool
	}{
		{"11:18", Timestamp{Minutes: 11, Seconds: 18}, false},
		{"0:05", Timestamp{Minutes: 0, Seconds: 5}, false},
		{" 2:00 ", Timestamp{Minutes: 2, Seconds: 0}, false},
		{"120:59", Timestamp{Minutes: 120, Seconds: 59}, false},
		{"1:60", Timestamp{}, true},
		{"-1:10", Timestamp{}, true},
		{"1:-1", Timestamp{}, true},
		{"90", Timestamp{}, true},
		{"a:10", Timestamp{}, true},
		{"1:bb", Timestamp{}, true},
		{"", Timestamp{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTimestamp(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTimestamp)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestTimestamp_StringAndOffset(t *testing.T) {
	ts := Timestamp{Minutes: 3, Seconds: 7}
	assert.Equal(t, "3:07", ts.String())
	assert.Equal(t, 3*time.Minute+7*time.Second, ts.Offset())
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name        string
		ts          Timestamp
		fps         int
		totalFrames int
		expected    int
		wantErr     error
	}{
		{"start", Timestamp{0, 0}, 30, 300, 0, nil},
		{"one second", Timestamp{0, 1}, 30, 300, 30, nil},
		{"minutes and seconds", Timestamp{1, 30}, 25, 10000, 2250, nil},
		{"last frame boundary", Timestamp{0, 9}, 30, 271, 270, nil},
		{"exactly at end", Timestamp{0, 10}, 30, 300, 0, ErrBeyondDuration},
		{"far beyond", Timestamp{999, 0}, 30, 300, 0, ErrBeyondDuration},
		{"empty stream", Timestamp{0, 0}, 30, 0, 0, ErrBeyondDuration},
		{"index overflows int", Timestamp{math.MaxInt / 60, 0}, 30, 300, 0, ErrBeyondDuration},
		{"overflow only with seconds", Timestamp{math.MaxInt / 60 / 30, 59}, 30, 300, 0, ErrBeyondDuration},
		{"largest minutes at 1 fps", Timestamp{math.MaxInt / 60, 0}, 1, 300, 0, ErrBeyondDuration},
		{"invalid seconds", Timestamp{0, 75}, 30, 300, 0, ErrInvalidTimestamp},
		{"invalid fps", Timestamp{0, 1}, 0, 300, 0, ErrInvalidParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.ts, tt.fps, tt.totalFrames)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestResolve_ParsedHugeMinutes(t *testing.T) {
	ts, err := ParseTimestamp("153722867280912930:00")
	require.NoError(t, err)

	_, err = Resolve(ts, 30, 300)
	assert.ErrorIs(t, err, ErrBeyondDuration)
}

func TestResolve_Deterministic(t *testing.T) {
	ts := Timestamp{Minutes: 2, Seconds: 3}
	first, err := Resolve(ts, 24, 100000)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		got, err := Resolve(ts, 24, 100000)
		require.NoError(t, err)
		assert.Equal(t, first, got)
	}
}

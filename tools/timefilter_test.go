package tools

import (
	"testing"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xiaorui775/ChatLab/store"
)

func localUnix(year int, month time.Month, day, hour, min, sec int) int64 {
	return time.Date(year, month, day, hour, min, sec, 0, time.Local).Unix()
}

func TestResolveTimeFilterPrecedence(t *testing.T) {
	defaultFilter := &store.TimeRange{Start: 100, End: 200}
	tc := &ToolContext{DefaultTimeFilter: defaultFilter}

	tests := []struct {
		name      string
		params    api.ToolCallFunctionArguments
		wantStart int64
		wantEnd   int64
		wantNil   bool
		wantErr   bool
	}{
		{
			name: "explicit range wins over calendar parameters",
			params: api.ToolCallFunctionArguments{
				"start_time": "2024-03-01 08:00",
				"end_time":   "2024-03-01 18:30",
				"year":       float64(2020),
			},
			wantStart: localUnix(2024, time.March, 1, 8, 0, 0),
			wantEnd:   localUnix(2024, time.March, 1, 18, 30, 0),
		},
		{
			name:      "date-only end extends to end of day",
			params:    api.ToolCallFunctionArguments{"start_time": "2024-03-01", "end_time": "2024-03-02"},
			wantStart: localUnix(2024, time.March, 1, 0, 0, 0),
			wantEnd:   localUnix(2024, time.March, 2, 23, 59, 59),
		},
		{
			name:      "year month day hour rounds to the hour",
			params:    api.ToolCallFunctionArguments{"year": float64(2024), "month": float64(5), "day": float64(10), "hour": float64(14)},
			wantStart: localUnix(2024, time.May, 10, 14, 0, 0),
			wantEnd:   localUnix(2024, time.May, 10, 14, 59, 59),
		},
		{
			name:      "year month day rounds to the day",
			params:    api.ToolCallFunctionArguments{"year": float64(2024), "month": float64(5), "day": float64(10)},
			wantStart: localUnix(2024, time.May, 10, 0, 0, 0),
			wantEnd:   localUnix(2024, time.May, 10, 23, 59, 59),
		},
		{
			name:      "year month rounds to the month",
			params:    api.ToolCallFunctionArguments{"year": float64(2024), "month": float64(2)},
			wantStart: localUnix(2024, time.February, 1, 0, 0, 0),
			wantEnd:   localUnix(2024, time.February, 29, 23, 59, 59),
		},
		{
			name:      "year alone rounds to the year",
			params:    api.ToolCallFunctionArguments{"year": float64(2023)},
			wantStart: localUnix(2023, time.January, 1, 0, 0, 0),
			wantEnd:   localUnix(2023, time.December, 31, 23, 59, 59),
		},
		{
			name:      "no parameters fall back to context default",
			params:    api.ToolCallFunctionArguments{},
			wantStart: 100,
			wantEnd:   200,
		},
		{
			name:    "hour without day is an error",
			params:  api.ToolCallFunctionArguments{"month": float64(5), "hour": float64(3)},
			wantErr: true,
		},
		{
			name:    "day without month is an error",
			params:  api.ToolCallFunctionArguments{"year": float64(2024), "day": float64(3)},
			wantErr: true,
		},
		{
			name:    "garbage start_time is an error",
			params:  api.ToolCallFunctionArguments{"start_time": "yesterday-ish"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveTimeFilter(tt.params, tc)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantStart, got.Start)
			assert.Equal(t, tt.wantEnd, got.End)
		})
	}
}

func TestResolveTimeFilterNoDefault(t *testing.T) {
	got, err := ResolveTimeFilter(api.ToolCallFunctionArguments{}, &ToolContext{})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestResolveTimeFilterCopiesDefault(t *testing.T) {
	def := &store.TimeRange{Start: 1, End: 2}
	got, err := ResolveTimeFilter(nil, &ToolContext{DefaultTimeFilter: def})
	require.NoError(t, err)
	got.Start = 99
	assert.Equal(t, int64(1), def.Start)
}

func TestEffectiveLimit(t *testing.T) {
	tests := []struct {
		name   string
		params api.ToolCallFunctionArguments
		tc     *ToolContext
		def    int
		want   int
	}{
		{"context override beats model request", api.ToolCallFunctionArguments{"limit": float64(500)}, &ToolContext{MaxMessages: 30}, 20, 30},
		{"model request used without override", api.ToolCallFunctionArguments{"limit": float64(7)}, &ToolContext{}, 20, 7},
		{"default when nothing given", api.ToolCallFunctionArguments{}, &ToolContext{}, 20, 20},
		{"nil params", nil, nil, 50, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, effectiveLimit(tt.params, tt.tc, tt.def))
		})
	}
}

func TestArgHelpers(t *testing.T) {
	params := api.ToolCallFunctionArguments{
		"str":     "hello",
		"num":     float64(42),
		"numStr":  "17",
		"empty":   "",
		"list":    []any{"a", "b"},
		"single":  "only",
		"badList": []any{1, 2},
	}

	s, ok := argString(params, "str")
	assert.True(t, ok)
	assert.Equal(t, "hello", s)

	_, ok = argString(params, "empty")
	assert.False(t, ok)

	n, ok := argInt(params, "num")
	assert.True(t, ok)
	assert.Equal(t, 42, n)

	n, ok = argInt(params, "numStr")
	assert.True(t, ok)
	assert.Equal(t, 17, n)

	assert.Equal(t, []string{"a", "b"}, argStringSlice(params, "list"))
	assert.Equal(t, []string{"only"}, argStringSlice(params, "single"))
	assert.Empty(t, argStringSlice(params, "badList"))
	assert.Nil(t, argStringSlice(nil, "list"))
}

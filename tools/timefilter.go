package tools

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/xiaorui775/ChatLab/store"
)

// ResolveTimeFilter derives the effective time range for a call by fixed
// precedence: explicit start_time/end_time strings override a
// year/month/day/hour combination (rounded to the matching calendar
// granularity), which overrides the context default filter, which overrides
// "no filter".
func ResolveTimeFilter(params api.ToolCallFunctionArguments, tc *ToolContext) (*store.TimeRange, error) {
	startStr, hasStart := argString(params, "start_time")
	endStr, hasEnd := argString(params, "end_time")
	if hasStart || hasEnd {
		tr := &store.TimeRange{}
		if hasStart {
			t, _, err := parseLocalTime(startStr)
			if err != nil {
				return nil, fmt.Errorf("invalid start_time %q: %w", startStr, err)
			}
			tr.Start = t.Unix()
		}
		if hasEnd {
			t, dateOnly, err := parseLocalTime(endStr)
			if err != nil {
				return nil, fmt.Errorf("invalid end_time %q: %w", endStr, err)
			}
			if dateOnly {
				t = t.AddDate(0, 0, 1).Add(-time.Second)
			}
			tr.End = t.Unix()
		}
		return tr, nil
	}

	year, hasYear := argInt(params, "year")
	month, hasMonth := argInt(params, "month")
	day, hasDay := argInt(params, "day")
	hour, hasHour := argInt(params, "hour")
	if hasYear || hasMonth || hasDay || hasHour {
		if !hasYear {
			year = time.Now().Year()
		}
		var start, end time.Time
		switch {
		case hasHour:
			if !hasMonth || !hasDay {
				return nil, fmt.Errorf("hour filter requires month and day")
			}
			start = time.Date(year, time.Month(month), day, hour, 0, 0, 0, time.Local)
			end = start.Add(time.Hour - time.Second)
		case hasDay:
			if !hasMonth {
				return nil, fmt.Errorf("day filter requires month")
			}
			start = time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.Local)
			end = start.AddDate(0, 0, 1).Add(-time.Second)
		case hasMonth:
			start = time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.Local)
			end = start.AddDate(0, 1, 0).Add(-time.Second)
		default:
			start = time.Date(year, time.January, 1, 0, 0, 0, 0, time.Local)
			end = start.AddDate(1, 0, 0).Add(-time.Second)
		}
		return &store.TimeRange{Start: start.Unix(), End: end.Unix()}, nil
	}

	if tc != nil && tc.DefaultTimeFilter != nil {
		cp := *tc.DefaultTimeFilter
		return &cp, nil
	}
	return nil, nil
}

// parseLocalTime parses a local date-time; dateOnly reports that the input
// carried no time of day.
func parseLocalTime(s string) (t time.Time, dateOnly bool, err error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02T15:04:05"} {
		if t, err = time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, false, nil
		}
	}
	if t, err = time.ParseInLocation("2006-01-02", s, time.Local); err == nil {
		return t, true, nil
	}
	return time.Time{}, false, fmt.Errorf("unrecognized date-time format")
}

// effectiveLimit returns the row limit for message-retrieval tools. The
// user-configured override always wins over the model-requested value.
func effectiveLimit(params api.ToolCallFunctionArguments, tc *ToolContext, def int) int {
	if tc != nil && tc.MaxMessages > 0 {
		return tc.MaxMessages
	}
	if n, ok := argInt(params, "limit"); ok && n > 0 {
		return n
	}
	return def
}

func argString(params api.ToolCallFunctionArguments, key string) (string, bool) {
	if params == nil {
		return "", false
	}
	v, ok := params[key]
	if !ok || v == nil {
		return "", false
	}
	switch s := v.(type) {
	case string:
		if strings.TrimSpace(s) == "" {
			return "", false
		}
		return s, true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	default:
		return fmt.Sprintf("%v", s), true
	}
}

func argInt(params api.ToolCallFunctionArguments, key string) (int, bool) {
	if params == nil {
		return 0, false
	}
	v, ok := params[key]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func argStringSlice(params api.ToolCallFunctionArguments, key string) []string {
	if params == nil {
		return nil
	}
	v, ok := params[key]
	if !ok {
		return nil
	}
	switch items := v.(type) {
	case []string:
		return items
	case []any:
		out := make([]string, 0, len(items))
		for _, item := range items {
			if s, isStr := item.(string); isStr && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if items == "" {
			return nil
		}
		return []string{items}
	}
	return nil
}

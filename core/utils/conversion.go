package utils

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// timeLayouts are the timestamp layouts accepted from the upstream API, most specific first.
// Values without a zone are interpreted as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// epochMillisThreshold separates epoch seconds from epoch milliseconds.
const epochMillisThreshold = 100_000_000_000

// ToString converts various types to string.
func ToString(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ParseTime converts an ISO-8601 string or an epoch number (seconds or milliseconds)
// into a UTC time truncated to milliseconds, the finest precision every supported
// store keeps. Absent, empty or unparseable values yield nil.
func ParseTime(val any) *time.Time {
	var t time.Time

	switch v := val.(type) {
	case nil:
		return nil
	case time.Time:
		t = v
	case *time.Time:
		if v == nil {
			return nil
		}
		t = *v
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return ParseTime(n)
		}
		parsed, ok := parseLayouts(s)
		if !ok {
			return nil
		}
		t = parsed
	case int64:
		if v == 0 {
			return nil
		}
		if v >= epochMillisThreshold {
			t = time.UnixMilli(v)
		} else {
			t = time.Unix(v, 0)
		}
	case int:
		return ParseTime(int64(v))
	case float64:
		return ParseTime(int64(v))
	default:
		return nil
	}

	t = t.UTC().Truncate(time.Millisecond)
	return &t
}

func parseLayouts(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Canonical normalizes a value for equality comparison.
// Nil values and nil pointers report ok=false so that null and absent compare equal;
// pointers are dereferenced and temporal values become RFC3339Nano UTC strings.
func Canonical(val any) (string, bool) {
	if val == nil {
		return "", false
	}

	rv := reflect.ValueOf(val)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return "", false
		}
		rv = rv.Elem()
	}

	return ToString(rv.Interface()), true
}

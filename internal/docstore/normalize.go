package docstore

import (
	"encoding/json"
	"reflect"
	"sync"
	"time"
)

// TimeLayout is the fixed-width form every time value is stored in, so that
// string order and chronological order agree.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

type serverTimestamp struct{}

// ServerTimestamp is replaced at write time by the store's clock.
var ServerTimestamp = serverTimestamp{}

type monotonicClock struct {
	mu   sync.Mutex
	last time.Time
}

func (c *monotonicClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := time.Now().UTC()
	if !t.After(c.last) {
		t = c.last.Add(time.Nanosecond)
	}
	c.last = t
	return t
}

var clock = &monotonicClock{}

// Now returns the clock used to resolve ServerTimestamp. Values are strictly
// increasing within a process.
func Now() time.Time {
	return clock.now()
}

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Normalize returns a deep copy of f in canonical form: numbers become
// float64, times become TimeLayout strings and ServerTimestamp is resolved.
func Normalize(f Fields) Fields {
	if f == nil {
		return Fields{}
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = normalizeValue(v)
	}
	return out
}

// NormalizeValue brings a single value, such as a filter operand, into the
// canonical form documents are stored in.
func NormalizeValue(v any) any {
	return normalizeValue(v)
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case serverTimestamp:
		return FormatTime(Now())
	case time.Time:
		return FormatTime(x)
	case *time.Time:
		if x == nil {
			return nil
		}
		return FormatTime(*x)
	case string:
		return normalizeString(x)
	case bool:
		return x
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case uint:
		return float64(x)
	case uint32:
		return float64(x)
	case uint64:
		return float64(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return x.String()
		}
		return f
	case Fields:
		return map[string]any(Normalize(x))
	case map[string]any:
		return map[string]any(Normalize(x))
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalizeValue(e)
		}
		return out
	case []string:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalizeString(e)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = normalizeValue(rv.Index(i).Interface())
		}
		return out
	}

	// Anything else goes through its JSON form.
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var decoded any
	if err := json.Unmarshal(b, &decoded); err != nil {
		return nil
	}
	return normalizeValue(decoded)
}

// normalizeString canonicalizes strings that are RFC 3339 timestamps.
func normalizeString(s string) string {
	if len(s) < 20 || s[4] != '-' || s[7] != '-' || s[10] != 'T' {
		return s
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return s
	}
	return FormatTime(t)
}

// Package recurrence maps backend recurrence codes to stable display keys.
//
// The backend defines recurrence as an integer 0..7 or the equivalent uppercase
// tag. The client only needs a lookup key for display; it never computes dates.
package recurrence

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Code is a backend recurrence code.
type Code int

const (
	Once Code = iota
	Yearly
	Monthly
	Weekly
	Daily
	Hourly
	Workdays
	Weekend
)

// Key is a locale-independent lookup key for a recurrence label.
type Key string

const (
	KeyOnce     Key = "recurrence.once"
	KeyYearly   Key = "recurrence.yearly"
	KeyMonthly  Key = "recurrence.monthly"
	KeyWeekly   Key = "recurrence.weekly"
	KeyDaily    Key = "recurrence.daily"
	KeyHourly   Key = "recurrence.hourly"
	KeyWorkdays Key = "recurrence.workdays"
	KeyWeekend  Key = "recurrence.weekend"
	KeyUnknown  Key = "recurrence.unknown"
)

var (
	tags   = [...]string{"ONCE", "YEARLY", "MONTHLY", "WEEKLY", "DAILY", "HOURLY", "WORKDAYS", "WEEKEND"}
	keys   = [...]Key{KeyOnce, KeyYearly, KeyMonthly, KeyWeekly, KeyDaily, KeyHourly, KeyWorkdays, KeyWeekend}
	labels = map[Key]string{
		KeyOnce:     "Once",
		KeyYearly:   "Every year",
		KeyMonthly:  "Every month",
		KeyWeekly:   "Every week",
		KeyDaily:    "Every day",
		KeyHourly:   "Every hour",
		KeyWorkdays: "Workdays (Mon-Fri)",
		KeyWeekend:  "Weekends (Sat-Sun)",
		KeyUnknown:  "Unknown",
	}
)

// All returns every recognized code in backend order.
func All() []Code {
	out := make([]Code, len(tags))
	for i := range out {
		out[i] = Code(i)
	}
	return out
}

// Valid reports whether c is one of the eight backend codes.
func (c Code) Valid() bool { return c >= Once && c <= Weekend }

// String returns the uppercase tag, or "UNKNOWN(n)".
func (c Code) String() string {
	if !c.Valid() {
		return fmt.Sprintf("UNKNOWN(%d)", int(c))
	}
	return tags[c]
}

// Key returns the display key for c.
func (c Code) Key() Key {
	if !c.Valid() {
		return KeyUnknown
	}
	return keys[c]
}

// ParseTag returns the code for a canonical uppercase tag.
func ParseTag(tag string) (Code, bool) {
	for i, t := range tags {
		if t == tag {
			return Code(i), true
		}
	}
	return 0, false
}

// Classify maps an integer code or a canonical uppercase tag to its display key.
// Floats with an integral value count as integers, as produced by decoding JSON into any.
// Anything else, including out-of-range or fractional numbers and lowercase tags, yields KeyUnknown.
func Classify(v any) Key {
	switch x := v.(type) {
	case Code:
		return x.Key()
	case string:
		if c, ok := ParseTag(x); ok {
			return c.Key()
		}
		return KeyUnknown
	case int:
		return Code(x).Key()
	case int8:
		return Code(x).Key()
	case int16:
		return Code(x).Key()
	case int32:
		return Code(x).Key()
	case int64:
		if x < 0 || x > int64(Weekend) {
			return KeyUnknown
		}
		return Code(x).Key()
	case uint:
		if x > uint(Weekend) {
			return KeyUnknown
		}
		return Code(x).Key()
	case uint8:
		return Code(x).Key()
	case uint16:
		return Code(x).Key()
	case uint32:
		if x > uint32(Weekend) {
			return KeyUnknown
		}
		return Code(x).Key()
	case uint64:
		if x > uint64(Weekend) {
			return KeyUnknown
		}
		return Code(x).Key()
	case float32:
		return classifyFloat(float64(x))
	case float64:
		return classifyFloat(x)
	default:
		return KeyUnknown
	}
}

func classifyFloat(f float64) Key {
	if f != math.Trunc(f) || f < 0 || f > float64(Weekend) {
		return KeyUnknown
	}
	return Code(f).Key()
}

// Label returns the English fallback label for k.
func Label(k Key) string {
	if l, ok := labels[k]; ok {
		return l
	}
	return labels[KeyUnknown]
}

// MarshalJSON encodes c as its integer code, which is what the backend stores.
func (c Code) MarshalJSON() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("recurrence: invalid code %d", int(c))
	}
	return json.Marshal(int(c))
}

// UnmarshalJSON accepts either the integer code or the uppercase tag.
func (c *Code) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		if !Code(n).Valid() {
			return fmt.Errorf("recurrence: invalid code %d", n)
		}
		*c = Code(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("recurrence: expected integer or tag, got %s", string(b))
	}
	parsed, ok := ParseTag(strings.TrimSpace(s))
	if !ok {
		return fmt.Errorf("recurrence: unknown tag %q", s)
	}
	*c = parsed
	return nil
}

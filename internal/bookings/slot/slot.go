// Package slot turns the human time and duration labels stored on a booking
// into a half-open interval of minutes since midnight.
package slot

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	MinutesPerDay = 24 * 60
	DateLayout    = "2006-01-02"
)

var (
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidTime     = errors.New("invalid time")
	ErrInvalidDuration = errors.New("invalid duration")
	ErrPastMidnight    = errors.New("booking must end by midnight")
)

var (
	clock12Regex  = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?\s*([AaPp])\.?\s*[Mm]\.?$`)
	clock24Regex  = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
	durationPart  = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(hours|hour|hrs|hr|h|minutes|minute|mins|min|m)\b`)
	bareNumber    = regexp.MustCompile(`^\d+(?:\.\d+)?$`)
	compactGoTime = regexp.MustCompile(`^(\d+h)?(\d+m)?$`)
)

// Interval is [Start, End) in minutes since midnight.
type Interval struct {
	Start int
	End   int
}

func (i Interval) Overlaps(other Interval) bool {
	return i.Start < other.End && other.Start < i.End
}

func (i Interval) String() string {
	return fmt.Sprintf("%s-%s", FormatMinutes(i.Start), FormatMinutes(i.End))
}

// ParseDate accepts an ISO calendar date.
func ParseDate(date string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(date), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q, expected YYYY-MM-DD", ErrInvalidDate, date)
	}
	return t, nil
}

// ParseClock accepts "2:00 PM", "2 PM", "2pm", "14:00" and returns minutes since midnight.
func ParseClock(clock string) (int, error) {
	s := strings.TrimSpace(clock)

	if m := clock12Regex.FindStringSubmatch(s); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute := 0
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		if hour < 1 || hour > 12 || minute > 59 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTime, clock)
		}
		hour %= 12
		if strings.EqualFold(m[3], "p") {
			hour += 12
		}
		return hour*60 + minute, nil
	}

	if m := clock24Regex.FindStringSubmatch(s); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		if hour > 23 || minute > 59 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTime, clock)
		}
		return hour*60 + minute, nil
	}

	return 0, fmt.Errorf("%w: %q, expected e.g. 2:00 PM or 14:00", ErrInvalidTime, clock)
}

// ParseDuration accepts "2 hours", "1 hour", "90 minutes", "1.5 hours",
// "1 hour 30 minutes", "1h30m" and a bare number of hours. The result is in
// whole minutes, positive and at most one day.
func ParseDuration(duration string) (int, error) {
	s := strings.ToLower(strings.TrimSpace(duration))
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidDuration)
	}

	var total float64
	switch {
	case bareNumber.MatchString(s):
		hours, _ := strconv.ParseFloat(s, 64)
		total = hours * 60

	case compactGoTime.MatchString(s):
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, duration)
		}
		total = d.Minutes()

	default:
		rest := s
		for _, m := range durationPart.FindAllStringSubmatch(s, -1) {
			value, _ := strconv.ParseFloat(m[1], 64)
			if strings.HasPrefix(m[2], "h") {
				total += value * 60
			} else {
				total += value
			}
			rest = strings.Replace(rest, m[0], "", 1)
		}
		rest = strings.NewReplacer("and", "", ",", "", " ", "").Replace(rest)
		if rest != "" {
			return 0, fmt.Errorf("%w: %q, expected e.g. 2 hours or 90 minutes", ErrInvalidDuration, duration)
		}
	}

	if total > MinutesPerDay {
		return 0, fmt.Errorf("%w: %q is longer than a day", ErrInvalidDuration, duration)
	}
	minutes := int(total + 0.5)
	if minutes <= 0 {
		return 0, fmt.Errorf("%w: %q must be positive", ErrInvalidDuration, duration)
	}
	return minutes, nil
}

// Parse combines ParseClock and ParseDuration. The interval may not cross midnight.
func Parse(clock, duration string) (Interval, error) {
	start, err := ParseClock(clock)
	if err != nil {
		return Interval{}, err
	}
	length, err := ParseDuration(duration)
	if err != nil {
		return Interval{}, err
	}

	if length > MinutesPerDay-start {
		return Interval{}, fmt.Errorf("%w: %s plus %s ends after 24:00", ErrPastMidnight, clock, duration)
	}
	return Interval{Start: start, End: start + length}, nil
}

// FormatMinutes renders minutes since midnight as a 12-hour clock label.
func FormatMinutes(minutes int) string {
	if minutes == MinutesPerDay {
		return "12:00 AM (next day)"
	}
	hour, minute := minutes/60, minutes%60
	suffix := "AM"
	if hour >= 12 {
		suffix = "PM"
	}
	hour %= 12
	if hour == 0 {
		hour = 12
	}
	return fmt.Sprintf("%d:%02d %s", hour, minute, suffix)
}

package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var clockRe = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?:\s*([AaPp][Mm]))?$`)

// ParseClock converts a schedule time such as "9:05 AM" or "11:59 PM" into
// minutes since midnight. The AM/PM marker is required.
func ParseClock(raw string) (int, error) {
	m, err := matchClock(raw)
	if err != nil {
		return 0, err
	}
	if m.marker == "" {
		return 0, fmt.Errorf("missing AM/PM marker in %q", raw)
	}
	return m.minutes()
}

// MinutesSinceMidnight is the lenient form of ParseClock used when reading
// stored schedules. A missing marker is read as a 24-hour clock and any
// malformed value yields 0, which callers treat as already departed.
func MinutesSinceMidnight(raw string) int {
	m, err := matchClock(raw)
	if err != nil {
		return 0
	}
	n, err := m.minutes()
	if err != nil {
		return 0
	}
	return n
}

// FormatClock renders minutes since midnight as "H:MM AM|PM".
func FormatClock(minutes int) string {
	minutes = ((minutes % 1440) + 1440) % 1440
	hour, minute := minutes/60, minutes%60
	marker := "AM"
	if hour >= 12 {
		marker = "PM"
	}
	hour %= 12
	if hour == 0 {
		hour = 12
	}
	return fmt.Sprintf("%d:%02d %s", hour, minute, marker)
}

type clockMatch struct {
	hour   int
	minute int
	marker string
}

func matchClock(raw string) (clockMatch, error) {
	s := strings.TrimSpace(raw)
	groups := clockRe.FindStringSubmatch(s)
	if groups == nil {
		return clockMatch{}, fmt.Errorf("unable to parse time: %q", raw)
	}
	hour, err := strconv.Atoi(groups[1])
	if err != nil {
		return clockMatch{}, err
	}
	minute, err := strconv.Atoi(groups[2])
	if err != nil {
		return clockMatch{}, err
	}
	return clockMatch{hour: hour, minute: minute, marker: strings.ToUpper(groups[3])}, nil
}

func (m clockMatch) minutes() (int, error) {
	if m.minute > 59 {
		return 0, fmt.Errorf("minute out of range: %d", m.minute)
	}
	hour := m.hour
	switch m.marker {
	case "":
		if hour > 23 {
			return 0, fmt.Errorf("hour out of range: %d", hour)
		}
	default:
		if hour < 1 || hour > 12 {
			return 0, fmt.Errorf("hour out of range: %d", hour)
		}
		if m.marker == "PM" && hour != 12 {
			hour += 12
		}
		if m.marker == "AM" && hour == 12 {
			hour = 0
		}
	}
	return hour*60 + m.minute, nil
}

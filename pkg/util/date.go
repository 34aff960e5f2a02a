package util

import "time"

// ProviderLayout is the wall-clock layout used by the quote provider; values carry no offset and are UTC.
const ProviderLayout = "2006-01-02 15:04:05"

// ParseProviderTime parses "YYYY-MM-DD HH:MM:SS" (or a bare date) as UTC.
func ParseProviderTime(s string) (time.Time, bool) {
	if t, err := time.ParseInLocation(ProviderLayout, s, time.UTC); err == nil {
		return t, true
	}
	if t, err := time.ParseInLocation("2006-01-02", s, time.UTC); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// FormatProviderTime renders t in UTC using ProviderLayout.
func FormatProviderTime(t time.Time) string {
	return t.UTC().Format(ProviderLayout)
}

// FloorTo truncates t to a multiple of d since the unix epoch.
func FloorTo(t time.Time, d time.Duration) time.Time {
	if d <= 0 {
		return t.UTC()
	}
	ms := t.UnixMilli()
	step := d.Milliseconds()
	return time.UnixMilli(ms - mod(ms, step)).UTC()
}

func mod(a, b int64) int64 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

package utils

import "time"

// AlertTimeLayout is the wall-clock layout used on alert records.
const AlertTimeLayout = "2006-01-02 15:04:05"

// FormatAlertTime renders t in local time using AlertTimeLayout.
func FormatAlertTime(t time.Time) string {
	return t.Local().Format(AlertTimeLayout)
}

// ParseAlertTime parses a timestamp produced by FormatAlertTime.
func ParseAlertTime(value string) (time.Time, error) {
	return time.ParseInLocation(AlertTimeLayout, value, time.Local)
}

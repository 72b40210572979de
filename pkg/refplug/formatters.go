package refplug

import (
	"fmt"
	"strconv"
	"strings"
)

// decibelFormatter formats dB values
func decibelFormatter(db float64) string {
	if db <= -60 {
		return "-inf dB"
	}
	return fmt.Sprintf("%.1f dB", db)
}

// decibelParser parses dB strings
func decibelParser(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "-inf") {
		return -60, nil
	}
	s = strings.TrimSuffix(strings.TrimSuffix(s, "dB"), "db")
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// secondsFormatter formats a time in seconds with ms or s units
func secondsFormatter(sec float64) string {
	if sec < 1 {
		return fmt.Sprintf("%.1f ms", sec*1000)
	}
	return fmt.Sprintf("%.2f s", sec)
}

// secondsParser accepts "250 ms", "1.5 s" or a bare number of seconds
func secondsParser(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if v, ok := strings.CutSuffix(s, "ms"); ok {
		ms, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return ms / 1000, err
	}
	s = strings.TrimSpace(strings.TrimSuffix(s, "s"))
	return strconv.ParseFloat(s, 64)
}

// percentFormatter formats a 0-1 value as a percentage
func percentFormatter(v float64) string {
	return fmt.Sprintf("%.0f%%", v*100)
}

func percentParser(s string) (float64, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return v / 100, err
}

func onOffFormatter(v float64) string {
	if v >= 0.5 {
		return "On"
	}
	return "Off"
}

func onOffParser(s string) (float64, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "1", "true":
		return 1, nil
	case "off", "0", "false":
		return 0, nil
	}
	return 0, fmt.Errorf("invalid on/off value %q", s)
}

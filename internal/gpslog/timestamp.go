package gpslog

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Epoch seconds must fit in int64; 2^63 is exactly representable as a float64.
const maxEpochSeconds = 1 << 63

// ParseTimestamp reads epoch seconds such as "1700000000" or "1700000000.25".
// Plain decimals are converted digit by digit so they survive a save unchanged;
// anything else strconv.ParseFloat accepts (e.g. "1.7e9") is taken as a float.
// Values outside the int64 seconds range are rejected.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, ok, err := parseDecimal(s); ok || err != nil {
		return t, err
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
	}
	if f < -maxEpochSeconds || f >= maxEpochSeconds {
		return time.Time{}, fmt.Errorf("timestamp %q out of range", s)
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(math.Round(frac*1e9))).UTC(), nil
}

// parseDecimal reports ok=false when s is not a plain decimal, so the caller
// can try other notations.
func parseDecimal(s string) (time.Time, bool, error) {
	whole, frac, hasFrac := strings.Cut(s, ".")
	negative := strings.HasPrefix(whole, "-")

	sec, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return time.Time{}, false, fmt.Errorf("timestamp %q out of range", s)
		}
		return time.Time{}, false, nil
	}
	if !hasFrac {
		return time.Unix(sec, 0).UTC(), true, nil
	}
	if frac == "" || len(frac) > 9 || strings.ContainsAny(frac, "+-") {
		return time.Time{}, false, nil
	}
	nsec, err := strconv.ParseInt(frac+strings.Repeat("0", 9-len(frac)), 10, 64)
	if err != nil {
		return time.Time{}, false, nil
	}
	if negative {
		if sec == math.MinInt64 && nsec != 0 {
			return time.Time{}, false, fmt.Errorf("timestamp %q out of range", s)
		}
		nsec = -nsec
	}
	return time.Unix(sec, nsec).UTC(), true, nil
}

// FormatTimestamp writes t as epoch seconds, with the fractional part only
// when t is not on a whole second.
func FormatTimestamp(t time.Time) string {
	sec := t.Unix()
	nsec := t.Nanosecond()
	if nsec == 0 {
		return strconv.FormatInt(sec, 10)
	}
	if sec < 0 {
		// Nanosecond is always positive; -1.5 is Unix()=-2 plus 0.5e9 ns.
		sec++
		nsec = 1e9 - nsec
		frac := strings.TrimRight(fmt.Sprintf("%09d", nsec), "0")
		if sec == 0 {
			return "-0." + frac
		}
		return strconv.FormatInt(sec, 10) + "." + frac
	}
	return strconv.FormatInt(sec, 10) + "." + strings.TrimRight(fmt.Sprintf("%09d", nsec), "0")
}

package skymath

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const maxDecimals = 9

// FormatNumber renders v in fixed-point notation with the given number of
// decimals.
func FormatNumber(v float64, decimals int) string {
	return strconv.FormatFloat(v, 'f', clampDecimals(decimals), 64)
}

// ParseNumber parses a decimal number, ignoring surrounding whitespace.
// NaN and infinities are rejected.
func ParseNumber(s string) (float64, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return 0, &NumberError{Input: s}
	}
	v, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return 0, &NumberError{Input: s, Err: err}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &NumberError{Input: s}
	}
	return v, nil
}

// FormatDMS renders decimal degrees as "[-]D:MM:SS[.s…]" with the seconds
// rounded to the given number of decimals. Rounding carries into minutes
// and degrees, so 59.9999″ never prints as 60″.
func FormatDMS(deg float64, decimals int) string {
	decimals = clampDecimals(decimals)
	pow := int64(math.Pow10(decimals))

	units := int64(math.Round(math.Abs(deg) * 3600 * float64(pow)))
	perMinute := 60 * pow
	secUnits := units % perMinute
	minutes := units / perMinute

	sign := ""
	if deg < 0 && units != 0 {
		sign = "-"
	}

	width := 2
	if decimals > 0 {
		width = 3 + decimals
	}
	sec := float64(secUnits) / float64(pow)
	return fmt.Sprintf("%s%d:%02d:%0*.*f", sign, minutes/60, minutes%60, width, decimals, sec)
}

var dmsSeparators = strings.NewReplacer(
	":", " ",
	"°", " ",
	"′", " ",
	"″", " ",
	"'", " ",
	"\"", " ",
	"d", " ",
	"m", " ",
	"s", " ",
)

// ParseDMS parses degrees given as "D:M:S", "D M S", "D°M′S″" or a plain
// decimal. Minutes and seconds are optional and must lie in [0, 60). A leading
// minus sign negates the whole value.
func ParseDMS(s string) (float64, error) {
	t := strings.TrimSpace(s)
	neg := false
	if strings.HasPrefix(t, "-") {
		neg = true
		t = t[1:]
	} else if strings.HasPrefix(t, "+") {
		t = t[1:]
	}

	fields := strings.Fields(dmsSeparators.Replace(t))
	if len(fields) == 0 || len(fields) > 3 {
		return 0, &NumberError{Input: s}
	}

	var parts [3]float64
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return 0, &NumberError{Input: s, Err: err}
		}
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, &NumberError{Input: s}
		}
		if i > 0 && v >= 60 {
			return 0, &NumberError{Input: s, Err: fmt.Errorf("field %d out of range: %v", i, v)}
		}
		parts[i] = v
	}

	v := parts[0] + parts[1]/60 + parts[2]/3600
	if neg {
		v = -v
	}
	return v, nil
}

// FormatDate renders a calendar date as YYYY-MM-DD.
func FormatDate(year, month, day int) string {
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
}

// FormatDateTime renders t in UTC as YYYY-MM-DDTHH:MM:SS.
func FormatDateTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05")
}

var dateTimePattern = regexp.MustCompile(
	`^(\d{4})([-/])(\d{1,2})([-/])(\d{1,2})(?:[Tt\- ](\d{1,2}):(\d{2})(?::(\d{2}(?:\.\d+)?))?)?$`)

// ParseDateTime parses "YYYY-MM-DD" or "YYYY/MM/DD", optionally followed by
// a time "HH:MM[:SS[.fff]]" separated from the date by 'T', 't', '-' or a
// space. Both date separators must match. The result is in UTC.
func ParseDateTime(s string) (time.Time, error) {
	t := strings.TrimSpace(s)
	g := dateTimePattern.FindStringSubmatch(t)
	if g == nil {
		return time.Time{}, &DateError{Input: s, Reason: "unrecognised layout"}
	}
	if g[2] != g[4] {
		return time.Time{}, &DateError{Input: s, Reason: "mixed date separators"}
	}

	year, _ := strconv.Atoi(g[1])
	month, _ := strconv.Atoi(g[3])
	day, _ := strconv.Atoi(g[5])
	if month < 1 || month > 12 {
		return time.Time{}, &DateError{Input: s, Reason: "month out of range"}
	}

	var hour, minute int
	var sec float64
	if g[6] != "" {
		hour, _ = strconv.Atoi(g[6])
		minute, _ = strconv.Atoi(g[7])
		if g[8] != "" {
			sec, _ = strconv.ParseFloat(g[8], 64)
		}
	}
	if hour > 23 || minute > 59 || sec >= 60 {
		return time.Time{}, &DateError{Input: s, Reason: "time out of range"}
	}

	whole := math.Floor(sec)
	nsec := int(math.Round((sec - whole) * 1e9))
	out := time.Date(year, time.Month(month), day, hour, minute, int(whole), nsec, time.UTC)
	if out.Day() != day || int(out.Month()) != month {
		return time.Time{}, &DateError{Input: s, Reason: "day out of range"}
	}
	return out, nil
}

func clampDecimals(d int) int {
	if d < 0 {
		return 0
	}
	if d > maxDecimals {
		return maxDecimals
	}
	return d
}

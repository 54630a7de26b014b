package lyrics

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var timeTagPattern = regexp.MustCompile(`^\[(\d{2}):(\d{2})\.(\d{2,3})\](.*)`)

// Parse converts an LRC body into lines, keeping input order. Lines without a
// leading [MM:SS.xx] tag or with empty text are skipped.
func Parse(raw string) []Line {
	if raw == "" {
		return nil
	}

	rows := strings.Split(raw, "\n")
	result := make([]Line, 0, len(rows))

	for _, row := range rows {
		match := timeTagPattern.FindStringSubmatch(row)
		if match == nil {
			continue
		}

		text := strings.TrimSpace(match[4])
		if text == "" {
			continue
		}

		seconds, ok := tagSeconds(match[1], match[2], match[3])
		if !ok {
			continue
		}

		result = append(result, Line{Time: seconds, Text: text})
	}

	return result
}

// tagSeconds reads the fraction as a decimal fraction, so "12" is 0.12 and
// "123" is 0.123.
func tagSeconds(minutes string, seconds string, fraction string) (float64, bool) {
	m, err := strconv.Atoi(minutes)
	if err != nil {
		return 0, false
	}
	s, err := strconv.Atoi(seconds)
	if err != nil {
		return 0, false
	}
	f, err := strconv.ParseFloat("0."+fraction, 64)
	if err != nil {
		return 0, false
	}
	return float64(m*60+s) + f, true
}

// SortStable orders lines by time in place, keeping the relative order of
// lines that share a timestamp.
func SortStable(lines []Line) []Line {
	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].Time < lines[j].Time
	})
	return lines
}

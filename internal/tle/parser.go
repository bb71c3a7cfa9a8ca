package tle

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Parse reads NORAD TLE text from r. Entries may carry a name line (3-line
// format) or not (2-line format). Malformed entries are skipped with a
// warning.
func Parse(r io.Reader, logger *slog.Logger) ([]Entry, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading TLE data: %w", err)
	}

	var entries []Entry
	for i := 0; i < len(lines); {
		var name string
		if !strings.HasPrefix(lines[i], "1 ") {
			name = strings.TrimSpace(lines[i])
			i++
		}
		if i+1 >= len(lines) {
			if name != "" {
				logger.Warn("skipping truncated TLE entry", "name", name)
			}
			break
		}

		line1, line2 := lines[i], lines[i+1]
		if !strings.HasPrefix(line1, "1 ") || !strings.HasPrefix(line2, "2 ") {
			logger.Warn("skipping malformed TLE entry", "line_index", i, "name", name)
			if name == "" {
				i++
			}
			continue
		}
		i += 2

		e, err := parseEntry(name, line1, line2)
		if err != nil {
			logger.Warn("skipping TLE entry", "name", name, "error", err)
			continue
		}
		entries = append(entries, e)
	}

	return entries, nil
}

func parseEntry(name, line1, line2 string) (Entry, error) {
	if len(line1) < 32 {
		return Entry{}, fmt.Errorf("line1 too short (%d chars)", len(line1))
	}

	noradStr := strings.TrimSpace(line1[2:7])
	noradID, err := strconv.Atoi(noradStr)
	if err != nil {
		return Entry{}, fmt.Errorf("invalid NORAD ID %q: %w", noradStr, err)
	}
	if len(line2) >= 7 && strings.TrimSpace(line2[2:7]) != noradStr {
		return Entry{}, fmt.Errorf("line2 NORAD ID %q does not match %q", strings.TrimSpace(line2[2:7]), noradStr)
	}

	epochStr := strings.TrimSpace(line1[18:32])
	epoch, err := parseEpoch(epochStr)
	if err != nil {
		return Entry{}, fmt.Errorf("invalid epoch %q: %w", epochStr, err)
	}

	if name == "" {
		name = "NORAD " + noradStr
	}
	return Entry{
		NORADID: noradID,
		Name:    name,
		Epoch:   epoch,
		Line1:   line1,
		Line2:   line2,
	}, nil
}

// parseEpoch converts a TLE epoch in YYDDD.DDDDDDDD form to UTC.
// Years 00-56 are 2000s, 57-99 are 1900s.
func parseEpoch(s string) (time.Time, error) {
	if len(s) < 5 {
		return time.Time{}, fmt.Errorf("epoch string too short: %q", s)
	}

	year, err := strconv.Atoi(s[:2])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch year %q: %w", s[:2], err)
	}
	if year >= 57 {
		year += 1900
	} else {
		year += 2000
	}

	dayOfYear, err := strconv.ParseFloat(s[2:], 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch day %q: %w", s[2:], err)
	}

	// Day 1 is January 1.
	t := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	return t.Add(time.Duration((dayOfYear - 1) * float64(24*time.Hour))), nil
}

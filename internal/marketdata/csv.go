// Package marketdata loads bar history from external files into the
// bar store.
package marketdata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"signal-engine/internal/model"
)

// column positions of one CSV layout
type layout struct {
	time, open, high, low, close, volume int
}

// positional layout used when the file has no header
var defaultLayout = layout{time: 0, open: 1, high: 2, low: 3, close: 4, volume: 5}

// ReadBarsCSV parses OHLCV rows. A header row, when present, maps columns
// by name (date/time/timestamp, open, high, low, close, volume) in any
// order; without one the columns are time,open,high,low,close[,volume].
// Times may be epoch seconds, epoch milliseconds, YYYY-MM-DD or RFC3339.
// The result is sorted by time; rows are not otherwise validated.
func ReadBarsCSV(r io.Reader) ([]model.Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var (
		bars []model.Bar
		cols = defaultLayout
		line int
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: %w", err)
		}
		line++

		if line == 1 {
			if _, err := parseTime(rec[0]); err != nil {
				cols, err = headerLayout(rec)
				if err != nil {
					return nil, err
				}
				continue
			}
		}

		b, err := parseRow(rec, cols)
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		bars = append(bars, b)
	}

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time < bars[j].Time })
	return bars, nil
}

func headerLayout(header []string) (layout, error) {
	l := layout{time: -1, open: -1, high: -1, low: -1, close: -1, volume: -1}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "date", "time", "timestamp", "datetime":
			l.time = i
		case "open":
			l.open = i
		case "high":
			l.high = i
		case "low":
			l.low = i
		case "close":
			l.close = i
		case "volume":
			l.volume = i
		}
	}
	if l.time < 0 || l.open < 0 || l.high < 0 || l.low < 0 || l.close < 0 {
		return l, fmt.Errorf("csv header %v: need date, open, high, low and close columns", header)
	}
	return l, nil
}

func parseRow(rec []string, l layout) (model.Bar, error) {
	field := func(i int) (float64, error) {
		if i < 0 || i >= len(rec) {
			return 0, nil
		}
		s := strings.TrimSpace(rec[i])
		if s == "" {
			return 0, nil
		}
		return strconv.ParseFloat(s, 64)
	}

	if l.time >= len(rec) {
		return model.Bar{}, errors.New("missing time column")
	}
	ts, err := parseTime(rec[l.time])
	if err != nil {
		return model.Bar{}, err
	}
	b := model.Bar{Time: ts}
	for _, f := range []struct {
		dst *float64
		col int
	}{
		{&b.Open, l.open}, {&b.High, l.high}, {&b.Low, l.low}, {&b.Close, l.close}, {&b.Volume, l.volume},
	} {
		if *f.dst, err = field(f.col); err != nil {
			return model.Bar{}, err
		}
	}
	return b, nil
}

func parseTime(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n > 1e12 {
			n /= 1000
		}
		return n, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Unix(), nil
		}
	}
	return 0, fmt.Errorf("unrecognised time %q", s)
}

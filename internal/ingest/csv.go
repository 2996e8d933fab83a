package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"margin-liq-lab/internal/domain"
)

// DefaultLocationName is the exchange-local zone applied to naive CSV timestamps.
const DefaultLocationName = "Asia/Tokyo"

// Timestamp layouts accepted in CSV inputs, tried in order.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.RFC3339,
}

// Loader reads minute bars and market sessions from CSV exports.
type Loader struct {
	location *time.Location
	logger   *log.Logger
}

// LoaderOptions contains configuration for creating a Loader.
type LoaderOptions struct {
	// Location interprets naive timestamps. Defaults to Asia/Tokyo,
	// falling back to UTC when the zone database is unavailable.
	Location *time.Location
	Logger   *log.Logger
}

// NewLoader creates a new CSV loader.
func NewLoader(opts LoaderOptions) *Loader {
	loc := opts.Location
	if loc == nil {
		var err error
		loc, err = time.LoadLocation(DefaultLocationName)
		if err != nil {
			loc = time.UTC
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Loader{location: loc, logger: logger}
}

// BarLoadResult contains statistics from a bar load operation.
type BarLoadResult struct {
	Bars              []*domain.PriceBar
	Rows              int
	DuplicatesDropped int
}

// SessionLoadResult contains statistics from a session load operation.
type SessionLoadResult struct {
	Sessions          []*domain.MarketSession
	Rows              int
	IncompleteDropped int
	// BackfilledNextClose is true when the final session had its
	// next_close_time derived from the last bar timestamp.
	BackfilledNextClose bool
}

// LoadBars reads minute bars from a CSV file with header
// timestamp,open,high,low,close. Duplicate timestamps keep the first
// occurrence; output is sorted by timestamp ascending.
func (l *Loader) LoadBars(path, symbol string) (*BarLoadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bars csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read bars header: %w", err)
	}
	cols, err := columnIndex(header, "timestamp", "open", "high", "low", "close")
	if err != nil {
		return nil, fmt.Errorf("bars csv %s: %w", path, err)
	}

	result := &BarLoadResult{}
	seen := make(map[int64]struct{})

	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read bars row: %w", err)
		}
		result.Rows++

		ts, err := l.parseTimestamp(row[cols["timestamp"]])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", result.Rows, err)
		}
		if _, dup := seen[ts.UnixNano()]; dup {
			result.DuplicatesDropped++
			continue
		}
		seen[ts.UnixNano()] = struct{}{}

		bar := &domain.PriceBar{Symbol: symbol, Timestamp: ts}
		if bar.Open, err = parseFloat(row[cols["open"]]); err != nil {
			return nil, fmt.Errorf("row %d open: %w", result.Rows, err)
		}
		if bar.High, err = parseFloat(row[cols["high"]]); err != nil {
			return nil, fmt.Errorf("row %d high: %w", result.Rows, err)
		}
		if bar.Low, err = parseFloat(row[cols["low"]]); err != nil {
			return nil, fmt.Errorf("row %d low: %w", result.Rows, err)
		}
		if bar.Close, err = parseFloat(row[cols["close"]]); err != nil {
			return nil, fmt.Errorf("row %d close: %w", result.Rows, err)
		}
		result.Bars = append(result.Bars, bar)
	}

	sort.Slice(result.Bars, func(i, j int) bool {
		return result.Bars[i].Timestamp.Before(result.Bars[j].Timestamp)
	})

	if result.DuplicatesDropped > 0 {
		l.logger.Printf("dropped %d duplicate bar timestamps from %s", result.DuplicatesDropped, path)
	}

	return result, nil
}

// LoadSessions reads market sessions from a CSV file with header
// close_time,open_time,session_type. Each session's next_close_time is the
// following row's close_time; the final session uses lastBarTime when it is
// non-zero. Sessions missing an open_time are dropped.
func (l *Loader) LoadSessions(path, symbol string, lastBarTime time.Time) (*SessionLoadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sessions csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read sessions header: %w", err)
	}
	cols, err := columnIndex(header, "close_time", "open_time", "session_type")
	if err != nil {
		return nil, fmt.Errorf("sessions csv %s: %w", path, err)
	}

	result := &SessionLoadResult{}
	var sessions []*domain.MarketSession

	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read sessions row: %w", err)
		}
		result.Rows++

		closeTime, err := l.parseTimestamp(row[cols["close_time"]])
		if err != nil {
			return nil, fmt.Errorf("row %d close_time: %w", result.Rows, err)
		}

		sess := &domain.MarketSession{
			Symbol:      symbol,
			CloseTime:   closeTime,
			SessionType: row[cols["session_type"]],
		}
		if raw := strings.TrimSpace(row[cols["open_time"]]); raw != "" {
			openTime, err := l.parseTimestamp(raw)
			if err != nil {
				return nil, fmt.Errorf("row %d open_time: %w", result.Rows, err)
			}
			sess.OpenTime = openTime
		}
		sessions = append(sessions, sess)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CloseTime.Before(sessions[j].CloseTime)
	})

	// Each session holds until the next session's close.
	for i, sess := range sessions {
		if i+1 < len(sessions) {
			sess.NextCloseTime = sessions[i+1].CloseTime
		} else if !lastBarTime.IsZero() {
			sess.NextCloseTime = lastBarTime
			result.BackfilledNextClose = true
		}
	}

	for _, sess := range sessions {
		if !sess.Complete() {
			result.IncompleteDropped++
			continue
		}
		result.Sessions = append(result.Sessions, sess)
	}

	if result.IncompleteDropped > 0 {
		l.logger.Printf("dropped %d incomplete sessions from %s", result.IncompleteDropped, path)
	}

	return result, nil
}

// parseTimestamp tries the accepted layouts in the loader's location.
func (l *Loader) parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if layout == time.RFC3339 {
			if ts, err := time.Parse(layout, raw); err == nil {
				return ts, nil
			}
			continue
		}
		if ts, err := time.ParseInLocation(layout, raw, l.location); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

func parseFloat(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("parse float %q: %w", raw, err)
	}
	return v, nil
}

// columnIndex maps required header names to their positions.
func columnIndex(header []string, required ...string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range required {
		if _, ok := idx[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}
	return idx, nil
}

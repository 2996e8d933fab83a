package domain

import "time"

// MarketSession represents one trading window bounded by a market close
// and the following open. NextCloseTime chains to the next session's
// CloseTime; the last session may have it backfilled from the final bar.
// Corresponds to market_sessions table in PostgreSQL.
type MarketSession struct {
	Symbol        string
	CloseTime     time.Time
	OpenTime      time.Time // zero when the source row is missing the open
	NextCloseTime time.Time // zero when no subsequent closure is recorded
	SessionType   string    // "weekend", "holiday", ...
}

// Session type constants
const (
	SessionTypeWeekend = "weekend"
	SessionTypeHoliday = "holiday"
	SessionTypeDaily   = "daily"
)

// Complete reports whether the session has both boundaries needed for
// judgment. Incomplete sessions are skipped, not errored.
func (s *MarketSession) Complete() bool {
	return !s.OpenTime.IsZero() && !s.NextCloseTime.IsZero()
}

// Hours returns the open-to-next-close span in hours.
func (s *MarketSession) Hours() float64 {
	return s.NextCloseTime.Sub(s.OpenTime).Hours()
}

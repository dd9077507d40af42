// Package calendar fixes all day-boundary and session arithmetic to the NSE
// trading calendar in Asia/Kolkata, independent of the host clock's zone.
package calendar

import "time"

var ist *time.Location

func init() {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		// No tzdata on the host; IST has no DST so a fixed offset is exact.
		loc = time.FixedZone("IST", 5*3600+1800)
	}
	ist = loc
}

// Location returns the trading-calendar timezone.
func Location() *time.Location {
	return ist
}

// TradingDay labels the session date of t in IST (YYYY-MM-DD).
func TradingDay(t time.Time) string {
	return t.In(ist).Format("2006-01-02")
}

// IsTradingDay reports whether t falls on a weekday session date.
// Exchange holidays are not modeled; callers backfill around them.
func IsTradingDay(t time.Time) bool {
	wd := t.In(ist).Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// IsMarketOpen reports whether t is inside NSE cash-market hours
// (09:15-15:30 IST on a trading day).
func IsMarketOpen(t time.Time) bool {
	lt := t.In(ist)
	if !IsTradingDay(lt) {
		return false
	}
	open := time.Date(lt.Year(), lt.Month(), lt.Day(), 9, 15, 0, 0, ist)
	close := time.Date(lt.Year(), lt.Month(), lt.Day(), 15, 30, 0, 0, ist)
	return !lt.Before(open) && !lt.After(close)
}

// SameSession reports whether a and b fall on the same trading day.
func SameSession(a, b time.Time) bool {
	return TradingDay(a) == TradingDay(b)
}

// NextTradingDay returns midnight IST of the first weekday after t.
func NextTradingDay(t time.Time) time.Time {
	lt := t.In(ist)
	d := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, ist)
	for {
		d = d.AddDate(0, 0, 1)
		if IsTradingDay(d) {
			return d
		}
	}
}

// PrevTradingDay returns midnight IST of the last weekday before t.
func PrevTradingDay(t time.Time) time.Time {
	lt := t.In(ist)
	d := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, ist)
	for {
		d = d.AddDate(0, 0, -1)
		if IsTradingDay(d) {
			return d
		}
	}
}

package domain

import "time"

// Bar is one session's OHLC record, used by the replay engine.
type Bar struct {
	Date  time.Time `json:"date"`
	Open  float64   `json:"open"`
	High  float64   `json:"high"`
	Low   float64   `json:"low"`
	Close float64   `json:"close"`
}

// Candle is the market-data feed's intraday record (epoch seconds).
type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// BarFromCandle converts a feed candle into a session bar in the given
// location.
func BarFromCandle(c Candle, loc *time.Location) Bar {
	return Bar{
		Date:  time.Unix(c.Time, 0).In(loc),
		Open:  c.Open,
		High:  c.High,
		Low:   c.Low,
		Close: c.Close,
	}
}

package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ravikal/swing_trade_replay/internal/domain"
)

// Feed is a thin adapter over a candle provider exposing a Bybit-style
// API: REST klines plus a websocket pushing tick and kline topics.
// Topic formats: "tick.SYMBOL" and "kline.INTERVAL.SYMBOL".
type Feed struct {
	baseURL         string
	wsURL           string
	client          *http.Client
	wsConn          *websocket.Conn
	wsDone          chan struct{}
	tickCallbacks   []func(symbol string, price float64)
	candleCallbacks []func(symbol, interval string, c domain.Candle)
	mu              sync.Mutex
}

func NewFeed(baseURL, wsURL string) *Feed {
	return &Feed{
		baseURL: baseURL,
		wsURL:   wsURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		wsDone:  make(chan struct{}),
	}
}

// --- REST API ---

func (f *Feed) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error) {
	path := fmt.Sprintf("/v1/market/kline?symbol=%s&interval=%s&limit=%d", symbol, interval, limit)
	req, err := http.NewRequestWithContext(ctx, "GET", f.baseURL+path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("feed API error: %s", string(body))
	}

	var result struct {
		List [][]string `json:"list"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, err
	}

	var candles []domain.Candle
	for _, raw := range result.List {
		// Format: [startTimeMs, open, high, low, close, volume]
		if len(raw) < 6 {
			continue
		}

		ts, _ := strconv.ParseInt(raw[0], 10, 64)
		open, _ := strconv.ParseFloat(raw[1], 64)
		high, _ := strconv.ParseFloat(raw[2], 64)
		low, _ := strconv.ParseFloat(raw[3], 64)
		closePrice, _ := strconv.ParseFloat(raw[4], 64)
		volume, _ := strconv.ParseFloat(raw[5], 64)

		candles = append(candles, domain.Candle{
			Time:   ts / 1000,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePrice,
			Volume: volume,
		})
	}

	// Provider returns newest first, the engine wants chronological.
	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}

	return candles, nil
}

// --- WebSocket ---

func (f *Feed) OnTick(callback func(symbol string, price float64)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tickCallbacks = append(f.tickCallbacks, callback)
}

func (f *Feed) OnCandle(callback func(symbol, interval string, c domain.Candle)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.candleCallbacks = append(f.candleCallbacks, callback)
}

func (f *Feed) Subscribe(symbols []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.wsConn != nil {
		// Already connected, just subscribe
		return f.subscribe(symbols)
	}

	c, _, err := websocket.DefaultDialer.Dial(f.wsURL, nil)
	if err != nil {
		return err
	}
	f.wsConn = c

	go f.readLoop()

	return f.subscribe(symbols)
}

func (f *Feed) subscribe(symbols []string) error {
	if len(symbols) == 0 {
		return nil
	}
	args := make([]interface{}, 0, len(symbols)*2)
	for _, s := range symbols {
		args = append(args, "tick."+s)
		args = append(args, "kline.5m."+s)
	}

	subMsg := map[string]interface{}{
		"op":   "subscribe",
		"args": args,
	}
	return f.wsConn.WriteJSON(subMsg)
}

func (f *Feed) readLoop() {
	defer func() {
		f.wsConn.Close()
		f.mu.Lock()
		f.wsConn = nil
		f.mu.Unlock()
	}()

	for {
		_, message, err := f.wsConn.ReadMessage()
		if err != nil {
			log.Println("WS Read error:", err)
			close(f.wsDone)
			return
		}

		var event map[string]interface{}
		if err := json.Unmarshal(message, &event); err != nil {
			log.Println("WS Unmarshal error:", err)
			continue
		}

		topic, ok := event["topic"].(string)
		if !ok {
			continue
		}

		if strings.HasPrefix(topic, "tick.") {
			f.handleTick(strings.TrimPrefix(topic, "tick."), event)
		} else if strings.HasPrefix(topic, "kline.") {
			f.handleKline(strings.TrimPrefix(topic, "kline."), event)
		}
	}
}

func (f *Feed) handleTick(symbol string, event map[string]interface{}) {
	data, ok := event["data"].(map[string]interface{})
	if !ok {
		return
	}
	priceStr, ok := data["price"].(string)
	if !ok {
		return
	}
	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil {
		return
	}

	f.mu.Lock()
	callbacks := make([]func(string, float64), len(f.tickCallbacks))
	copy(callbacks, f.tickCallbacks)
	f.mu.Unlock()

	for _, cb := range callbacks {
		cb(symbol, price)
	}
}

func (f *Feed) handleKline(rest string, event map[string]interface{}) {
	// rest is "INTERVAL.SYMBOL"
	idx := strings.Index(rest, ".")
	if idx < 0 {
		return
	}
	interval, symbol := rest[:idx], rest[idx+1:]

	data, ok := event["data"].(map[string]interface{})
	if !ok {
		return
	}
	// Only closed candles drive trigger evaluation.
	if confirmed, ok := data["confirm"].(bool); ok && !confirmed {
		return
	}

	c := domain.Candle{}
	if ts, ok := data["start"].(float64); ok {
		c.Time = int64(ts) / 1000
	}
	c.Open = parseField(data, "open")
	c.High = parseField(data, "high")
	c.Low = parseField(data, "low")
	c.Close = parseField(data, "close")
	c.Volume = parseField(data, "volume")

	f.mu.Lock()
	callbacks := make([]func(string, string, domain.Candle), len(f.candleCallbacks))
	copy(callbacks, f.candleCallbacks)
	f.mu.Unlock()

	for _, cb := range callbacks {
		cb(symbol, interval, c)
	}
}

func parseField(data map[string]interface{}, key string) float64 {
	s, ok := data[key].(string)
	if !ok {
		return 0
	}
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func (f *Feed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.wsConn == nil {
		return nil
	}
	return f.wsConn.Close()
}

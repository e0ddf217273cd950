package models

// NormalizedTrade is the canonical representation of one executed trade
// after validation. Every adapter-specific shape collapses into this before
// anything is persisted.
type NormalizedTrade struct {
	Side       string   `json:"side"`        // "buy" or "sell"
	OptionType string   `json:"option_type"` // "call" or "put"
	Expiry     string   `json:"expiry"`      // date-only, YYYY-MM-DD
	Strike     float64  `json:"strike"`
	Quantity   float64  `json:"quantity"` // absolute magnitude; sign lives in Side
	Price      float64  `json:"price"`
	Timestamp  string   `json:"timestamp"`            // RFC3339 instant, or the raw string if unparseable
	OpenClose  string   `json:"open_close,omitempty"` // "open", "close" or ""
	TradeID    string   `json:"trade_id,omitempty"`
	OrderID    string   `json:"order_id,omitempty"`
	Fee        *float64 `json:"fee,omitempty"`
	Notes      string   `json:"notes,omitempty"`
}

// TransactionLogEntry is an immutable audit record of one imported raw trade.
// Deduplication keys off TradeID / OrderID at write time.
type TransactionLogEntry struct {
	ID         int64   `json:"id,omitempty"`
	ClientName string  `json:"client_name"`
	Exchange   string  `json:"exchange"`
	TradeID    string  `json:"trade_id,omitempty"`
	OrderID    string  `json:"order_id,omitempty"`
	Instrument string  `json:"instrument,omitempty"`
	Side       string  `json:"side,omitempty"`
	Quantity   float64 `json:"quantity,omitempty"`
	Price      float64 `json:"price,omitempty"`
	Timestamp  string  `json:"timestamp,omitempty"`
	Raw        string  `json:"raw,omitempty"` // original row, JSON-encoded
}

// UnprocessedTrade is a raw trade that could not be attached to a position.
// It sits in unprocessed_imports until someone reconciles it by hand.
// Optional fields are pointers so "missing" persists as SQL NULL, never as a
// zero value.
type UnprocessedTrade struct {
	ID         int64    `json:"id,omitempty"`
	ClientName string   `json:"client_name"`
	Exchange   string   `json:"exchange"`
	TradeID    *string  `json:"trade_id"`
	OrderID    *string  `json:"order_id"`
	Instrument *string  `json:"instrument"`
	Side       *string  `json:"side"`
	Quantity   *float64 `json:"quantity"`
	Price      *float64 `json:"price"`
	Timestamp  *string  `json:"timestamp"`
	Expiry     *string  `json:"expiry"`
	Strike     *float64 `json:"strike"`
	OptionType *string  `json:"option_type"`
	OpenClose  *string  `json:"open_close"`
	Fee        *float64 `json:"fee"`
	Notes      *string  `json:"notes"`
	Raw        string   `json:"raw"`
}

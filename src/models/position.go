package models

// ClientScope restricts queries to one tenant. Admin callers see everything.
type ClientScope struct {
	ClientName string `json:"client_name"`
	IsAdmin    bool   `json:"is_admin"`
}

// AdminScope is the unrestricted scope used by maintenance jobs.
var AdminScope = ClientScope{IsAdmin: true}

// Position is the aggregate root: a multi-leg options structure.
// LinkedIDs is kept symmetric across positions by the link synchronizer and
// never contains the position's own id.
type Position struct {
	ID         string   `json:"id"`
	ClientName string   `json:"client_name"`
	Ticker     string   `json:"ticker"`
	ProgramID  string   `json:"program_id,omitempty"`
	Venue      string   `json:"venue,omitempty"`
	Status     string   `json:"status,omitempty"`
	OpenedAt   string   `json:"opened_at,omitempty"`
	ClosedAt   string   `json:"closed_at,omitempty"`
	LinkedIDs  []string `json:"linked_ids,omitempty"`
	Archived   bool     `json:"archived"`
	ArchivedAt string   `json:"archived_at,omitempty"`
	ArchivedBy string   `json:"archived_by,omitempty"`
	Notes      string   `json:"notes,omitempty"`
}

// Leg is one option contract within a position, identified by
// (position id, sequence). Sequences are assigned at append time and are
// monotonically increasing per position.
type Leg struct {
	PositionID string  `json:"position_id"`
	Seq        int     `json:"seq"`
	Side       string  `json:"side"`
	OptionType string  `json:"option_type"`
	Expiry     string  `json:"expiry"`
	Strike     float64 `json:"strike"`
	Quantity   float64 `json:"quantity"`
	Price      float64 `json:"price"`
}

// Fill is one execution event contributing to a leg.
type Fill struct {
	ID         int64    `json:"id,omitempty"`
	PositionID string   `json:"position_id"`
	LegSeq     int      `json:"leg_seq"`
	Timestamp  string   `json:"timestamp"`
	Quantity   float64  `json:"quantity"`
	Price      float64  `json:"price"`
	OpenClose  string   `json:"open_close,omitempty"`
	TradeID    string   `json:"trade_id,omitempty"`
	OrderID    string   `json:"order_id,omitempty"`
	Fee        *float64 `json:"fee,omitempty"`
	Notes      string   `json:"notes,omitempty"`
}

// Program groups positions under one strategy playbook.
type Program struct {
	ID          string `json:"id"`
	ClientName  string `json:"client_name"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Strategy is a reusable playbook entry (e.g. "short strangle", "calendar").
type Strategy struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Venue is an exchange a program trades on.
type Venue struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind string `json:"kind,omitempty"` // e.g. "crypto-options"
}

// ProgramResource is a reference link attached to a program.
type ProgramResource struct {
	ID        int64  `json:"id,omitempty"`
	ProgramID string `json:"program_id"`
	Title     string `json:"title"`
	URL       string `json:"url"`
}

// ProgramPlaybook is free-form playbook text attached to a program.
type ProgramPlaybook struct {
	ID        int64  `json:"id,omitempty"`
	ProgramID string `json:"program_id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

package parsers

import (
	"io"

	"github.com/username/optifolio/src/models"
)

// Parser converts one exchange's trade-history export into raw TxnRows.
// All field-name guessing lives inside the adapters; downstream code sees
// canonical keys (instrument, side, amount, price, timestamp, trade_id,
// order_id, fee, expiry, strike, option_type, exchange).
type Parser interface {
	Parse(file io.Reader) ([]models.TxnRow, error)
}

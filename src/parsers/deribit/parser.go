package deribit

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/username/optifolio/src/models"
)

// DeribitParser reads a Deribit transaction-log CSV export.
type DeribitParser struct{}

func NewParser() *DeribitParser {
	return &DeribitParser{}
}

// headerAliases maps Deribit CSV column names to canonical TxnRow keys.
// Columns without an alias are carried through under a snake_cased key so
// nothing from the export is lost.
var headerAliases = map[string]string{
	"instrument": "instrument",
	"side":       "side",
	"type":       "type",
	"amount":     "amount",
	"size":       "amount",
	"price":      "price",
	"fee":        "fee",
	"date":       "timestamp",
	"time":       "timestamp",
	"trade id":   "trade_id",
	"order id":   "order_id",
	"info":       "notes",
	"position":   "position",
}

// numericKeys are canonical keys whose values should be stored as numbers.
var numericKeys = map[string]bool{
	"amount": true,
	"price":  true,
	"fee":    true,
	"strike": true,
}

func (p *DeribitParser) Parse(file io.Reader) ([]models.TxnRow, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("deribit parser: failed to read CSV header: %w", err)
	}

	keys := make([]string, len(header))
	for i, h := range header {
		keys[i] = canonicalKey(h)
	}

	var rows []models.TxnRow
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("deribit parser: failed to read CSV record at line %d: %w", line, err)
		}

		row := models.TxnRow{"exchange": "deribit"}
		for i, field := range record {
			if i >= len(keys) {
				break
			}
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			key := keys[i]
			if numericKeys[key] {
				if f, err := strconv.ParseFloat(field, 64); err == nil {
					row[key] = f
					continue
				}
			}
			row[key] = field
		}
		if len(row) <= 1 {
			continue
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func canonicalKey(header string) string {
	h := strings.ToLower(strings.TrimSpace(header))
	if alias, ok := headerAliases[h]; ok {
		return alias
	}
	return strings.ReplaceAll(h, " ", "_")
}

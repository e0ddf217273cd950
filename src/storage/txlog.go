package storage

import (
	"fmt"

	"github.com/username/optifolio/src/models"
)

// ExistingLogTradeIDs returns which of the given trade ids already appear in
// transaction_logs. ids should already be chunked by the caller.
func (s *Store) ExistingLogTradeIDs(ids []string) (map[string]bool, error) {
	return s.existingLogIDs("trade_id", ids)
}

// ExistingLogOrderIDs returns which of the given order ids already appear in
// transaction_logs.
func (s *Store) ExistingLogOrderIDs(ids []string) (map[string]bool, error) {
	return s.existingLogIDs("order_id", ids)
}

func (s *Store) existingLogIDs(column string, ids []string) (map[string]bool, error) {
	found := make(map[string]bool)
	if len(ids) == 0 {
		return found, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT %s FROM transaction_logs WHERE %s IN (%s)`,
		column, column, placeholders(len(ids)))
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying existing %ss: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning existing %s: %w", column, err)
		}
		found[id] = true
	}
	return found, rows.Err()
}

// InsertTransactionLogs writes one chunk of audit entries in a transaction.
func (s *Store) InsertTransactionLogs(entries []models.TransactionLogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction log insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO transaction_logs (client_name, exchange, trade_id,
		order_id, instrument, side, quantity, price, timestamp, raw)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing transaction log insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.Exec(e.ClientName, e.Exchange, nullIfEmpty(e.TradeID),
			nullIfEmpty(e.OrderID), nullIfEmpty(e.Instrument), nullIfEmpty(e.Side),
			e.Quantity, e.Price, nullIfEmpty(e.Timestamp), nullIfEmpty(e.Raw)); err != nil {
			return fmt.Errorf("inserting transaction log (trade %s, order %s): %w",
				e.TradeID, e.OrderID, err)
		}
	}
	return tx.Commit()
}

// InsertUnprocessed archives raw trades that could not be attached to a
// position. Pointer fields persist as NULL when absent.
func (s *Store) InsertUnprocessed(rows []models.UnprocessedTrade) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning unprocessed insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO unprocessed_imports (client_name, exchange, trade_id,
		order_id, instrument, side, quantity, price, timestamp, expiry, strike, option_type,
		open_close, fee, notes, raw)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing unprocessed insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.Exec(r.ClientName, r.Exchange, r.TradeID, r.OrderID,
			r.Instrument, r.Side, r.Quantity, r.Price, r.Timestamp, r.Expiry,
			r.Strike, r.OptionType, r.OpenClose, r.Fee, r.Notes, r.Raw); err != nil {
			return fmt.Errorf("inserting unprocessed trade: %w", err)
		}
	}
	return tx.Commit()
}

// ListUnprocessed returns the manual-reconciliation queue for a tenant,
// oldest first.
func (s *Store) ListUnprocessed(scope models.ClientScope) ([]models.UnprocessedTrade, error) {
	clause, args := scopeClause(scope)
	query := `SELECT id, client_name, exchange, trade_id, order_id, instrument, side,
		quantity, price, timestamp, expiry, strike, option_type, open_close, fee, notes, COALESCE(raw, '')
		FROM unprocessed_imports WHERE 1=1` + clause + ` ORDER BY created_at, id`
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing unprocessed imports: %w", err)
	}
	defer rows.Close()

	var out []models.UnprocessedTrade
	for rows.Next() {
		var r models.UnprocessedTrade
		if err := rows.Scan(&r.ID, &r.ClientName, &r.Exchange, &r.TradeID, &r.OrderID,
			&r.Instrument, &r.Side, &r.Quantity, &r.Price, &r.Timestamp, &r.Expiry,
			&r.Strike, &r.OptionType, &r.OpenClose, &r.Fee, &r.Notes, &r.Raw); err != nil {
			return nil, fmt.Errorf("scanning unprocessed trade: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/username/optifolio/src/models"
)

// Store is the narrow query surface the services use: equality/membership
// filters, ordering, upsert-with-conflict-target and single-row selection.
// Callers get a Store handle injected; nothing in the services touches a
// process-wide connection.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// scopeClause restricts a query to one tenant unless the caller is an admin.
// The returned clause starts with " AND" so it can be appended to any WHERE.
func scopeClause(scope models.ClientScope) (string, []any) {
	if scope.IsAdmin {
		return "", nil
	}
	return " AND client_name = ?", []any{scope.ClientName}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func encodeLinkedIDs(ids []string) any {
	if len(ids) == 0 {
		return nil
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return nil
	}
	return string(b)
}

func decodeLinkedIDs(raw sql.NullString) []string {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw.String), &ids); err != nil {
		return nil
	}
	return ids
}

const positionColumns = `id, client_name, ticker, COALESCE(program_id, ''), COALESCE(venue, ''),
	COALESCE(status, ''), COALESCE(opened_at, ''), COALESCE(closed_at, ''), linked_ids,
	archived, COALESCE(archived_at, ''), COALESCE(archived_by, ''), COALESCE(notes, '')`

func scanPosition(row interface{ Scan(...any) error }) (*models.Position, error) {
	var p models.Position
	var linked sql.NullString
	err := row.Scan(&p.ID, &p.ClientName, &p.Ticker, &p.ProgramID, &p.Venue,
		&p.Status, &p.OpenedAt, &p.ClosedAt, &linked,
		&p.Archived, &p.ArchivedAt, &p.ArchivedBy, &p.Notes)
	if err != nil {
		return nil, err
	}
	p.LinkedIDs = decodeLinkedIDs(linked)
	return &p, nil
}

// GetPosition returns the position visible under scope, or nil when it does
// not exist (or is not visible to the caller).
func (s *Store) GetPosition(id string, scope models.ClientScope) (*models.Position, error) {
	clause, args := scopeClause(scope)
	query := "SELECT " + positionColumns + " FROM positions WHERE id = ?" + clause
	p, err := scanPosition(s.db.QueryRow(query, append([]any{id}, args...)...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying position %s: %w", id, err)
	}
	return p, nil
}

// ListPositions returns non-archived positions visible under scope,
// newest first.
func (s *Store) ListPositions(scope models.ClientScope) ([]models.Position, error) {
	clause, args := scopeClause(scope)
	query := "SELECT " + positionColumns + " FROM positions WHERE archived = FALSE" + clause +
		" ORDER BY created_at DESC, id DESC"
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing positions: %w", err)
	}
	defer rows.Close()

	var positions []models.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning position: %w", err)
		}
		positions = append(positions, *p)
	}
	return positions, rows.Err()
}

// UpsertPosition inserts or replaces a position keyed on id.
func (s *Store) UpsertPosition(p *models.Position) error {
	_, err := s.db.Exec(`
		INSERT INTO positions (id, client_name, ticker, program_id, venue, status,
			opened_at, closed_at, linked_ids, archived, archived_at, archived_by, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			ticker = excluded.ticker,
			program_id = excluded.program_id,
			venue = excluded.venue,
			status = excluded.status,
			opened_at = excluded.opened_at,
			notes = excluded.notes`,
		p.ID, p.ClientName, p.Ticker, p.ProgramID, p.Venue, p.Status,
		p.OpenedAt, p.ClosedAt, encodeLinkedIDs(p.LinkedIDs),
		p.Archived, p.ArchivedAt, p.ArchivedBy, p.Notes)
	if err != nil {
		return fmt.Errorf("upserting position %s: %w", p.ID, err)
	}
	return nil
}

// MarkPositionArchived soft-deletes a position.
func (s *Store) MarkPositionArchived(id, archivedAt, archivedBy string) error {
	_, err := s.db.Exec(
		`UPDATE positions SET archived = TRUE, archived_at = ?, archived_by = ? WHERE id = ?`,
		archivedAt, archivedBy, id)
	if err != nil {
		return fmt.Errorf("archiving position %s: %w", id, err)
	}
	return nil
}

// UpdatePositionLinks rewrites a position's linked-ids set (NULL when empty,
// never an empty array) and, when setClosedAt is true, its closed-at value.
func (s *Store) UpdatePositionLinks(id string, linkedIDs []string, closedAt string, setClosedAt bool) error {
	var err error
	if setClosedAt {
		_, err = s.db.Exec(`UPDATE positions SET linked_ids = ?, closed_at = ? WHERE id = ?`,
			encodeLinkedIDs(linkedIDs), nullIfEmpty(closedAt), id)
	} else {
		_, err = s.db.Exec(`UPDATE positions SET linked_ids = ? WHERE id = ?`,
			encodeLinkedIDs(linkedIDs), id)
	}
	if err != nil {
		return fmt.Errorf("updating links for position %s: %w", id, err)
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// AppendLegs assigns sequence numbers (current max + 1, consecutive, in input
// order) and inserts the legs. The max-read and the inserts share one sql
// transaction so concurrent appends cannot hand out the same sequence.
// Returns the first sequence assigned.
func (s *Store) AppendLegs(positionID string, legs []models.Leg) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning leg append: %w", err)
	}
	defer tx.Rollback()

	var maxSeq int
	if err := tx.QueryRow(`SELECT COALESCE(MAX(seq), 0) FROM legs WHERE position_id = ?`,
		positionID).Scan(&maxSeq); err != nil {
		return 0, fmt.Errorf("reading max leg seq for %s: %w", positionID, err)
	}

	stmt, err := tx.Prepare(`INSERT INTO legs (position_id, seq, side, option_type, expiry, strike, quantity, price)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing leg insert: %w", err)
	}
	defer stmt.Close()

	for i, leg := range legs {
		seq := maxSeq + 1 + i
		if _, err := stmt.Exec(positionID, seq, leg.Side, leg.OptionType,
			nullIfEmpty(leg.Expiry), leg.Strike, leg.Quantity, leg.Price); err != nil {
			return 0, fmt.Errorf("inserting leg %d for %s: %w", seq, positionID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing leg append: %w", err)
	}
	return maxSeq + 1, nil
}

// LegsForPosition returns a position's legs in sequence order.
func (s *Store) LegsForPosition(positionID string) ([]models.Leg, error) {
	rows, err := s.db.Query(`SELECT position_id, seq, side, option_type, COALESCE(expiry, ''), strike, quantity, price
		FROM legs WHERE position_id = ? ORDER BY seq`, positionID)
	if err != nil {
		return nil, fmt.Errorf("querying legs for %s: %w", positionID, err)
	}
	defer rows.Close()

	var legs []models.Leg
	for rows.Next() {
		var l models.Leg
		if err := rows.Scan(&l.PositionID, &l.Seq, &l.Side, &l.OptionType,
			&l.Expiry, &l.Strike, &l.Quantity, &l.Price); err != nil {
			return nil, fmt.Errorf("scanning leg: %w", err)
		}
		legs = append(legs, l)
	}
	return legs, rows.Err()
}

// UpdateLegExpiry sets only the expiry of one leg.
func (s *Store) UpdateLegExpiry(positionID string, seq int, expiry string) error {
	_, err := s.db.Exec(`UPDATE legs SET expiry = ? WHERE position_id = ? AND seq = ?`,
		expiry, positionID, seq)
	if err != nil {
		return fmt.Errorf("updating expiry for leg %s/%d: %w", positionID, seq, err)
	}
	return nil
}

// InsertFills writes a batch of fills in one transaction.
func (s *Store) InsertFills(fills []models.Fill) error {
	if len(fills) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning fill insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO fills (position_id, leg_seq, timestamp, quantity, price,
		open_close, trade_id, order_id, fee, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing fill insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range fills {
		if _, err := stmt.Exec(f.PositionID, f.LegSeq, nullIfEmpty(f.Timestamp),
			f.Quantity, f.Price, nullIfEmpty(f.OpenClose), nullIfEmpty(f.TradeID),
			nullIfEmpty(f.OrderID), f.Fee, nullIfEmpty(f.Notes)); err != nil {
			return fmt.Errorf("inserting fill for %s/%d: %w", f.PositionID, f.LegSeq, err)
		}
	}
	return tx.Commit()
}

// FillsByTradeIDs returns fills whose trade_id is in ids. ids should already
// be chunked by the caller.
func (s *Store) FillsByTradeIDs(ids []string) ([]models.Fill, error) {
	return s.fillsByIDColumn("trade_id", ids)
}

// FillsByOrderIDs returns fills whose order_id is in ids.
func (s *Store) FillsByOrderIDs(ids []string) ([]models.Fill, error) {
	return s.fillsByIDColumn("order_id", ids)
}

func (s *Store) fillsByIDColumn(column string, ids []string) ([]models.Fill, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT id, position_id, leg_seq, COALESCE(timestamp, ''), quantity, price,
		COALESCE(open_close, ''), COALESCE(trade_id, ''), COALESCE(order_id, ''), fee, COALESCE(notes, '')
		FROM fills WHERE %s IN (%s)`, column, placeholders(len(ids)))
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying fills by %s: %w", column, err)
	}
	defer rows.Close()

	var fills []models.Fill
	for rows.Next() {
		var f models.Fill
		var fee sql.NullFloat64
		if err := rows.Scan(&f.ID, &f.PositionID, &f.LegSeq, &f.Timestamp, &f.Quantity,
			&f.Price, &f.OpenClose, &f.TradeID, &f.OrderID, &fee, &f.Notes); err != nil {
			return nil, fmt.Errorf("scanning fill: %w", err)
		}
		if fee.Valid {
			v := fee.Float64
			f.Fee = &v
		}
		fills = append(fills, f)
	}
	return fills, rows.Err()
}

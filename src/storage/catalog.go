package storage

import (
	"fmt"

	"github.com/username/optifolio/src/models"
)

// UpsertVenue inserts or updates a venue keyed on id.
func (s *Store) UpsertVenue(v *models.Venue) error {
	_, err := s.db.Exec(`INSERT INTO venues (id, name, kind) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, kind = excluded.kind`,
		v.ID, v.Name, v.Kind)
	if err != nil {
		return fmt.Errorf("upserting venue %s: %w", v.ID, err)
	}
	return nil
}

// UpsertProgram inserts or updates a program keyed on id.
func (s *Store) UpsertProgram(p *models.Program) error {
	_, err := s.db.Exec(`INSERT INTO programs (id, client_name, name, description) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, description = excluded.description`,
		p.ID, p.ClientName, p.Name, p.Description)
	if err != nil {
		return fmt.Errorf("upserting program %s: %w", p.ID, err)
	}
	return nil
}

// UpsertStrategy inserts or updates a strategy keyed on id.
func (s *Store) UpsertStrategy(st *models.Strategy) error {
	_, err := s.db.Exec(`INSERT INTO strategies (id, code, name, description) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET code = excluded.code, name = excluded.name,
		description = excluded.description`,
		st.ID, st.Code, st.Name, st.Description)
	if err != nil {
		return fmt.Errorf("upserting strategy %s: %w", st.ID, err)
	}
	return nil
}

// LinkProgramStrategy records that a program uses a strategy. Idempotent.
func (s *Store) LinkProgramStrategy(programID, strategyID string) error {
	_, err := s.db.Exec(`INSERT INTO program_strategies (program_id, strategy_id) VALUES (?, ?)
		ON CONFLICT(program_id, strategy_id) DO NOTHING`, programID, strategyID)
	if err != nil {
		return fmt.Errorf("linking program %s to strategy %s: %w", programID, strategyID, err)
	}
	return nil
}

// InsertProgramResource attaches a reference link to a program.
func (s *Store) InsertProgramResource(r *models.ProgramResource) error {
	_, err := s.db.Exec(`INSERT INTO program_resources (program_id, title, url) VALUES (?, ?, ?)`,
		r.ProgramID, r.Title, r.URL)
	if err != nil {
		return fmt.Errorf("inserting resource for program %s: %w", r.ProgramID, err)
	}
	return nil
}

// UpsertPlaybook inserts or replaces a program's playbook entry by title.
func (s *Store) UpsertPlaybook(p *models.ProgramPlaybook) error {
	res, err := s.db.Exec(`UPDATE program_playbooks SET body = ?, updated_at = CURRENT_TIMESTAMP
		WHERE program_id = ? AND title = ?`, p.Body, p.ProgramID, p.Title)
	if err != nil {
		return fmt.Errorf("updating playbook for program %s: %w", p.ProgramID, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	_, err = s.db.Exec(`INSERT INTO program_playbooks (program_id, title, body) VALUES (?, ?, ?)`,
		p.ProgramID, p.Title, p.Body)
	if err != nil {
		return fmt.Errorf("inserting playbook for program %s: %w", p.ProgramID, err)
	}
	return nil
}

// ListPrograms returns the programs visible under scope.
func (s *Store) ListPrograms(scope models.ClientScope) ([]models.Program, error) {
	clause, args := scopeClause(scope)
	rows, err := s.db.Query(`SELECT id, client_name, name, COALESCE(description, '')
		FROM programs WHERE 1=1`+clause+` ORDER BY name`, args...)
	if err != nil {
		return nil, fmt.Errorf("listing programs: %w", err)
	}
	defer rows.Close()

	var programs []models.Program
	for rows.Next() {
		var p models.Program
		if err := rows.Scan(&p.ID, &p.ClientName, &p.Name, &p.Description); err != nil {
			return nil, fmt.Errorf("scanning program: %w", err)
		}
		programs = append(programs, p)
	}
	return programs, rows.Err()
}

// ProgramStrategies returns the strategies linked to a program.
func (s *Store) ProgramStrategies(programID string) ([]models.Strategy, error) {
	rows, err := s.db.Query(`SELECT st.id, st.code, st.name, COALESCE(st.description, '')
		FROM strategies st
		JOIN program_strategies ps ON ps.strategy_id = st.id
		WHERE ps.program_id = ? ORDER BY st.code`, programID)
	if err != nil {
		return nil, fmt.Errorf("listing strategies for program %s: %w", programID, err)
	}
	defer rows.Close()

	var strategies []models.Strategy
	for rows.Next() {
		var st models.Strategy
		if err := rows.Scan(&st.ID, &st.Code, &st.Name, &st.Description); err != nil {
			return nil, fmt.Errorf("scanning strategy: %w", err)
		}
		strategies = append(strategies, st)
	}
	return strategies, rows.Err()
}

// ProgramResources returns the reference links attached to a program.
func (s *Store) ProgramResources(programID string) ([]models.ProgramResource, error) {
	rows, err := s.db.Query(`SELECT id, program_id, title, url FROM program_resources
		WHERE program_id = ? ORDER BY id`, programID)
	if err != nil {
		return nil, fmt.Errorf("listing resources for program %s: %w", programID, err)
	}
	defer rows.Close()

	var resources []models.ProgramResource
	for rows.Next() {
		var r models.ProgramResource
		if err := rows.Scan(&r.ID, &r.ProgramID, &r.Title, &r.URL); err != nil {
			return nil, fmt.Errorf("scanning resource: %w", err)
		}
		resources = append(resources, r)
	}
	return resources, rows.Err()
}

// ProgramPlaybooks returns the playbook entries attached to a program.
func (s *Store) ProgramPlaybooks(programID string) ([]models.ProgramPlaybook, error) {
	rows, err := s.db.Query(`SELECT id, program_id, title, COALESCE(body, ''), COALESCE(updated_at, '')
		FROM program_playbooks WHERE program_id = ? ORDER BY id`, programID)
	if err != nil {
		return nil, fmt.Errorf("listing playbooks for program %s: %w", programID, err)
	}
	defer rows.Close()

	var playbooks []models.ProgramPlaybook
	for rows.Next() {
		var p models.ProgramPlaybook
		if err := rows.Scan(&p.ID, &p.ProgramID, &p.Title, &p.Body, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning playbook: %w", err)
		}
		playbooks = append(playbooks, p)
	}
	return playbooks, rows.Err()
}

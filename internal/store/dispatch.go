package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DefaultListLimit caps List when no limit is given.
const DefaultListLimit = 50

// Dispatch represents one attempted label delivery.
type Dispatch struct {
	ID        string
	SessionID string
	Mode      string
	Label     string
	Top       float64
	Second    float64
	Commands  []string
	Success   bool
	Error     string
	CreatedAt time.Time
}

// LabelCount is the number of successful dispatches of one label.
type LabelCount struct {
	Label string
	Count int
}

// DispatchRepository provides operations for dispatches.
type DispatchRepository struct {
	db *sql.DB
}

// Dispatches returns the dispatch repository for this store.
func (s *Store) Dispatches() *DispatchRepository {
	return &DispatchRepository{db: s.db}
}

// Create inserts a dispatch, assigning its ID and timestamp when unset.
func (r *DispatchRepository) Create(d *Dispatch) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}

	commands := d.Commands
	if commands == nil {
		commands = []string{}
	}
	encoded, err := json.Marshal(commands)
	if err != nil {
		return err
	}

	success := 0
	if d.Success {
		success = 1
	}

	_, err = r.db.Exec(
		`INSERT INTO dispatches (id, session_id, mode, label, top, second, commands, success, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.SessionID, d.Mode, d.Label, d.Top, d.Second, string(encoded), success, d.Error, d.CreatedAt,
	)
	return err
}

// List returns the most recent dispatches, newest first.
func (r *DispatchRepository) List(limit int) ([]*Dispatch, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return r.query(
		`SELECT id, session_id, mode, label, top, second, commands, success, error, created_at
		 FROM dispatches ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
}

// ListBySession returns a session's dispatches in the order they happened.
func (r *DispatchRepository) ListBySession(sessionID string) ([]*Dispatch, error) {
	return r.query(
		`SELECT id, session_id, mode, label, top, second, commands, success, error, created_at
		 FROM dispatches WHERE session_id = ? ORDER BY created_at ASC`,
		sessionID,
	)
}

// CountByLabel tallies successful dispatches per label, most frequent first.
func (r *DispatchRepository) CountByLabel() ([]LabelCount, error) {
	rows, err := r.db.Query(
		`SELECT label, COUNT(*) FROM dispatches WHERE success = 1
		 GROUP BY label ORDER BY COUNT(*) DESC, label ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []LabelCount
	for rows.Next() {
		var c LabelCount
		if err := rows.Scan(&c.Label, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func (r *DispatchRepository) query(query string, args ...any) ([]*Dispatch, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dispatches []*Dispatch
	for rows.Next() {
		d := &Dispatch{}
		var commands string
		var success int

		err := rows.Scan(&d.ID, &d.SessionID, &d.Mode, &d.Label, &d.Top, &d.Second, &commands, &success, &d.Error, &d.CreatedAt)
		if err != nil {
			return nil, err
		}

		if err := json.Unmarshal([]byte(commands), &d.Commands); err != nil {
			return nil, err
		}
		d.Success = success != 0
		dispatches = append(dispatches, d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return dispatches, nil
}

package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Sessions table - one row per run, sample or say invocation
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			mode TEXT NOT NULL CHECK(mode IN ('continuous', 'sample', 'manual')),
			started_at DATETIME NOT NULL,
			ended_at DATETIME
		)`,

		// Dispatches table - every attempted label delivery to the controller
		`CREATE TABLE IF NOT EXISTS dispatches (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			mode TEXT NOT NULL DEFAULT '',
			label TEXT NOT NULL,
			top REAL NOT NULL DEFAULT 0,
			second REAL NOT NULL DEFAULT 0,
			commands TEXT NOT NULL DEFAULT '[]',
			success INTEGER NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_dispatches_session_id ON dispatches(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_dispatches_created_at ON dispatches(created_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return s.addColumn("dispatches", "mode", "TEXT NOT NULL DEFAULT ''")
}

// addColumn adds a column to a table created by an older schema.
func (s *Store) addColumn(table, column, def string) error {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column,
	).Scan(&n)
	if err != nil || n > 0 {
		return err
	}
	_, err = s.db.Exec(`ALTER TABLE ` + table + ` ADD COLUMN ` + column + ` ` + def)
	return err
}

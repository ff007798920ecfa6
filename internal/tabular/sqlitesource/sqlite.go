// Package sqlitesource implements tabular.Source on a local SQLite file.
//
// It exists for development and tests: the service can run against a local
// copy of the carteira without reaching the remote sheet API. Cells are
// stored individually with 1-based sheet coordinates (row 1 is the header),
// so UpdateCell maps directly onto one INSERT OR REPLACE.
package sqlitesource

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/normaq/clientbook/internal/model"
	"github.com/normaq/clientbook/internal/tabular"

	_ "modernc.org/sqlite"
)

var _ tabular.Source = (*DB)(nil)

// DB wraps a sql.DB connection pool over the local sheet file.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the SQLite file at dbPath and runs migrations.
// Use ":memory:" in tests.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlitesource: opening database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlitesource: pinging database: %w", err)
	}

	// WAL allows reads concurrent with a write, which matters once the
	// HTTP server shares this handle across requests.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlitesource: setting WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlitesource: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlitesource: running migrations: %w", err)
	}
	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS sheet_headers (
			table_id TEXT    NOT NULL,
			position INTEGER NOT NULL,
			header   TEXT    NOT NULL,
			PRIMARY KEY (table_id, position)
		);
		CREATE TABLE IF NOT EXISTS sheet_cells (
			table_id TEXT    NOT NULL,
			row      INTEGER NOT NULL,
			col      INTEGER NOT NULL,
			value    TEXT    NOT NULL DEFAULT '',
			PRIMARY KEY (table_id, row, col)
		);
		CREATE INDEX IF NOT EXISTS idx_sheet_cells_row ON sheet_cells(table_id, row);
	`)
	if err != nil {
		return fmt.Errorf("creating sheet tables: %w", err)
	}
	return nil
}

// SetHeader defines (or replaces) the header row of a table. Positions are
// 1-based column numbers.
func (db *DB) SetHeader(ctx context.Context, tableID string, headers []string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlitesource: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM sheet_headers WHERE table_id = ?`, tableID); err != nil {
		return fmt.Errorf("sqlitesource: clearing header: %w", err)
	}
	for i, h := range headers {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sheet_headers (table_id, position, header) VALUES (?, ?, ?)`,
			tableID, i+1, h); err != nil {
			return fmt.Errorf("sqlitesource: inserting header %q: %w", h, err)
		}
	}
	return tx.Commit()
}

func (db *DB) HeaderRow(ctx context.Context, tableID string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT header FROM sheet_headers WHERE table_id = ? ORDER BY position`,
		tableID)
	if err != nil {
		return nil, fmt.Errorf("sqlitesource: querying header: %w", err)
	}
	defer rows.Close()

	var header []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("sqlitesource: scanning header: %w", err)
		}
		header = append(header, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlitesource: iterating header: %w", err)
	}
	return header, nil
}

func (db *DB) Rows(ctx context.Context, tableID string) ([]model.Record, error) {
	header, err := db.HeaderRow(ctx, tableID)
	if err != nil {
		return nil, err
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT row, col, value FROM sheet_cells WHERE table_id = ? ORDER BY row, col`,
		tableID)
	if err != nil {
		return nil, fmt.Errorf("sqlitesource: querying cells: %w", err)
	}
	defer rows.Close()

	byRow := make(map[int]model.Record)
	var order []int
	for rows.Next() {
		var rowNum, col int
		var value string
		if err := rows.Scan(&rowNum, &col, &value); err != nil {
			return nil, fmt.Errorf("sqlitesource: scanning cell: %w", err)
		}
		rec, ok := byRow[rowNum]
		if !ok {
			rec = make(model.Record, len(header))
			byRow[rowNum] = rec
			order = append(order, rowNum)
		}
		if col >= 1 && col <= len(header) {
			rec[header[col-1]] = value
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlitesource: iterating cells: %w", err)
	}

	out := make([]model.Record, 0, len(order))
	for _, rowNum := range order {
		out = append(out, byRow[rowNum])
	}
	return out, nil
}

func (db *DB) AppendRow(ctx context.Context, tableID string, values []string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlitesource: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// Data rows start at sheet row 2; row 1 is the header.
	var maxRow sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		`SELECT MAX(row) FROM sheet_cells WHERE table_id = ?`, tableID,
	).Scan(&maxRow); err != nil {
		return fmt.Errorf("sqlitesource: finding last row: %w", err)
	}
	next := int64(2)
	if maxRow.Valid {
		next = maxRow.Int64 + 1
	}

	for i, v := range values {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sheet_cells (table_id, row, col, value) VALUES (?, ?, ?, ?)`,
			tableID, next, i+1, v); err != nil {
			return fmt.Errorf("sqlitesource: appending cell %d: %w", i+1, err)
		}
	}
	return tx.Commit()
}

func (db *DB) UpdateCell(ctx context.Context, tableID string, row, col int, value string) error {
	if row < 2 || col < 1 {
		return fmt.Errorf("sqlitesource: cell (%d,%d) is outside the data range", row, col)
	}
	_, err := db.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO sheet_cells (table_id, row, col, value) VALUES (?, ?, ?, ?)`,
		tableID, row, col, value)
	if err != nil {
		return fmt.Errorf("sqlitesource: updating cell (%d,%d): %w", row, col, err)
	}
	return nil
}

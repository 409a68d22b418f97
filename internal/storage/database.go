package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/conorfennell/ankicol/internal/colconf"
	"github.com/conorfennell/ankicol/internal/domain"
	"github.com/conorfennell/ankicol/internal/ident"
	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// DB represents a wrapper around a collection database connection.
type DB struct {
	conn *sql.DB
}

// Open connects to an existing collection file. Transactions begun on the
// returned DB take an exclusive lock so that no other connection can read a
// stale max id between allocation and insertion.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection matches the host application's single-writer model.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	var tables int
	err = db.QueryRow(`
		SELECT COUNT(*) FROM sqlite_master
		WHERE type = 'table' AND name IN ('col', 'notes', 'cards')
	`).Scan(&tables)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to inspect schema: %w", err)
	}
	if tables != 3 {
		db.Close()
		return nil, fmt.Errorf("%s is not a collection database (found %d of 3 tables)", path, tables)
	}

	return &DB{conn: db}, nil
}

func dsn(path string) string {
	return "file:" + path + "?_txlock=exclusive&_pragma=busy_timeout(5000)"
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Begin starts an exclusive transaction.
func (db *DB) Begin(ctx context.Context) (*Tx, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// Count returns the number of rows in table.
func (db *DB) Count(ctx context.Context, table ident.Table) (int64, error) {
	if err := checkTable(table); err != nil {
		return 0, err
	}
	var n int64
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+string(table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

// FindNote retrieves a note by id. It returns nil when no such note exists.
func (db *DB) FindNote(ctx context.Context, id int64) (*domain.Note, error) {
	var n domain.Note
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, guid, mid, mod, usn, tags, flds, sfld, csum, flags, data
		FROM notes WHERE id = ?
	`, id).Scan(
		&n.ID,
		&n.GUID,
		&n.ModelID,
		&n.Mod,
		&n.USN,
		&n.Tags,
		&n.Fields,
		&n.SortFld,
		&n.Checksum,
		&n.Flags,
		&n.Data,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Note not found
		}
		return nil, fmt.Errorf("failed to find note %d: %w", id, err)
	}
	return &n, nil
}

// CardsByNote retrieves the cards of a note ordered by ordinal.
func (db *DB) CardsByNote(ctx context.Context, noteID int64) ([]domain.Card, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, nid, did, ord, mod, usn, due
		FROM cards WHERE nid = ?
		ORDER BY ord
	`, noteID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cards for note %d: %w", noteID, err)
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		var c domain.Card
		if err := rows.Scan(&c.ID, &c.NoteID, &c.DeckID, &c.Ordinal, &c.Mod, &c.USN, &c.Due); err != nil {
			return nil, fmt.Errorf("failed to scan card row for note %d: %w", noteID, err)
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cards for note %d: %w", noteID, err)
	}
	return cards, nil
}

// Tx is one unit of work against the collection.
type Tx struct {
	tx *sql.Tx
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	return t.tx.Commit()
}

// Rollback aborts the transaction. It is a no-op after Commit.
func (t *Tx) Rollback() error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

// ConfigColumn returns the raw JSON of one column of the configuration row.
func (t *Tx) ConfigColumn(ctx context.Context, column string) ([]byte, error) {
	if column != colconf.DecksColumn && column != colconf.ModelsColumn {
		return nil, fmt.Errorf("unsupported configuration column %q", column)
	}
	var raw string
	err := t.tx.QueryRowContext(ctx, "SELECT "+column+" FROM col LIMIT 1").Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.New("configuration row is missing")
		}
		return nil, fmt.Errorf("failed to read %s: %w", column, err)
	}
	return []byte(raw), nil
}

// MaxID returns the largest id in table, or ident.ErrEmptyTable.
func (t *Tx) MaxID(ctx context.Context, table ident.Table) (int64, error) {
	if err := checkTable(table); err != nil {
		return 0, err
	}
	var maxID sql.NullInt64
	if err := t.tx.QueryRowContext(ctx, "SELECT MAX(id) FROM "+string(table)).Scan(&maxID); err != nil {
		return 0, fmt.Errorf("failed to query max id of %s: %w", table, err)
	}
	if !maxID.Valid {
		return 0, fmt.Errorf("%s: %w", table, ident.ErrEmptyTable)
	}
	return maxID.Int64, nil
}

// NextDue returns one past the largest due position across all cards, so
// new cards are shown in the order they were added.
func (t *Tx) NextDue(ctx context.Context) (int64, error) {
	var due int64
	if err := t.tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(due), 0) + 1 FROM cards").Scan(&due); err != nil {
		return 0, fmt.Errorf("failed to query next due position: %w", err)
	}
	return due, nil
}

// InsertNote inserts one row into the notes table.
func (t *Tx) InsertNote(ctx context.Context, n domain.Note) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO notes (id, guid, mid, mod, usn, tags, flds, sfld, csum, flags, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		n.ID,
		n.GUID,
		n.ModelID,
		n.Mod,
		n.USN,
		n.Tags,
		n.Fields,
		n.SortFld,
		int64(n.Checksum),
		n.Flags,
		n.Data,
	)
	if err != nil {
		return fmt.Errorf("failed to insert note %d: %w", n.ID, err)
	}
	return nil
}

// InsertCard inserts one row into the cards table with new-card defaults
// for every scheduling column except due.
func (t *Tx) InsertCard(ctx context.Context, c domain.Card) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO cards (
			id, nid, did, ord, mod, usn,
			type, queue, due, ivl, factor, reps,
			lapses, left, odue, odid, flags, data
		) VALUES (
			?, ?, ?, ?, ?, ?,
			0, 0, ?, 0, 0, 0,
			0, 0, 0, 0, 0, ''
		)
	`,
		c.ID,
		c.NoteID,
		c.DeckID,
		c.Ordinal,
		c.Mod,
		c.USN,
		c.Due,
	)
	if err != nil {
		return fmt.Errorf("failed to insert card %d (ord %d): %w", c.ID, c.Ordinal, err)
	}
	return nil
}

// NoteExists reports whether a note of the given model already has the
// checksum and sort field.
func (t *Tx) NoteExists(ctx context.Context, modelID int64, checksum uint32, sortField string) (bool, error) {
	var one int
	err := t.tx.QueryRowContext(ctx, `
		SELECT 1 FROM notes
		WHERE mid = ? AND csum = ? AND sfld = ?
		LIMIT 1
	`, modelID, int64(checksum), sortField).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check for duplicate note: %w", err)
	}
	return true, nil
}

func checkTable(table ident.Table) error {
	switch table {
	case ident.Notes, ident.Cards:
		return nil
	}
	return fmt.Errorf("unsupported table %q", table)
}

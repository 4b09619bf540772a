// Package sqlite implements the catalog and ledger stores on a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"librag/internal/domain"
)

// timeLayout is the ISO-8601 form transactions are stored in.
const timeLayout = time.RFC3339Nano

// Store provides the catalog and the ledger on top of one SQLite connection.
type Store struct {
	db *sql.DB

	insertBookStmt *sql.Stmt
	appendTxStmt   *sql.Stmt
}

var (
	_ domain.CatalogStore = (*Store)(nil)
	_ domain.LedgerStore  = (*Store)(nil)
)

// Open opens (or creates) the SQLite database at path, applies schema
// migrations, and prepares common statements.
func Open(path string) (*Store, error) {
	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases prepared statements and closes the DB.
func (s *Store) Close() error {
	if s.insertBookStmt != nil {
		s.insertBookStmt.Close()
	}
	if s.appendTxStmt != nil {
		s.appendTxStmt.Close()
	}
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

func applyMigrations(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return err
	}

	var current int
	_ = db.QueryRow(`SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS books (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            title TEXT NOT NULL,
            author TEXT NOT NULL DEFAULT '',
            description TEXT NOT NULL DEFAULT '',
            tags TEXT NOT NULL DEFAULT '',
            copies INTEGER NOT NULL DEFAULT 0 CHECK (copies >= 0)
        );`,
		// book_id has no foreign key: the ledger must survive catalog drift.
		`CREATE TABLE IF NOT EXISTS transactions (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            book_id INTEGER NOT NULL,
            action TEXT NOT NULL CHECK (action IN ('borrow','return')),
            user_name TEXT NOT NULL DEFAULT '',
            user_college TEXT NOT NULL DEFAULT '',
            user_id_email TEXT NOT NULL DEFAULT '',
            user_phone TEXT NOT NULL DEFAULT '',
            timestamp TEXT NOT NULL
        );`,
		`INSERT INTO meta(key,value) VALUES('schema_version',?)
            ON CONFLICT(key) DO UPDATE SET value=excluded.value;`,
	}

	for _, stmt := range stmts {
		var args []any
		if strings.Contains(stmt, "?") {
			args = append(args, schemaVersion)
		}
		if _, err := tx.Exec(stmt, args...); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}

	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Prepared statements
// ---------------------------------------------------------------------------

func (s *Store) prepareStatements() error {
	var err error
	if s.insertBookStmt, err = s.db.Prepare(`INSERT INTO books(title,author,description,tags,copies) VALUES(?,?,?,?,?)`); err != nil {
		return err
	}
	if s.appendTxStmt, err = s.db.Prepare(`INSERT INTO transactions(book_id,action,user_name,user_college,user_id_email,user_phone,timestamp) VALUES(?,?,?,?,?,?,?)`); err != nil {
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// Catalog
// ---------------------------------------------------------------------------

// ListBooks returns every book ordered by id.
func (s *Store) ListBooks(ctx context.Context) ([]domain.Book, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,title,author,description,tags,copies FROM books ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var books []domain.Book
	for rows.Next() {
		var b domain.Book
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.Description, &b.Tags, &b.Copies); err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// GetBook returns nil and no error when the book does not exist.
func (s *Store) GetBook(ctx context.Context, id int64) (*domain.Book, error) {
	var b domain.Book
	err := s.db.QueryRowContext(ctx, `SELECT id,title,author,description,tags,copies FROM books WHERE id=?`, id).
		Scan(&b.ID, &b.Title, &b.Author, &b.Description, &b.Tags, &b.Copies)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// InsertBook stores b and returns its assigned id; b.ID is ignored.
func (s *Store) InsertBook(ctx context.Context, b domain.Book) (int64, error) {
	if b.Copies < 0 {
		return 0, fmt.Errorf("%w: copies must not be negative", domain.ErrInvalidBook)
	}
	res, err := s.insertBookStmt.ExecContext(ctx, b.Title, b.Author, b.Description, b.Tags, b.Copies)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// InsertBooks stores books in one SQL transaction and returns their ids in
// order. Either every book is written or none is.
func (s *Store) InsertBooks(ctx context.Context, books []domain.Book) ([]int64, error) {
	for _, b := range books {
		if b.Copies < 0 {
			return nil, fmt.Errorf("%w: copies must not be negative", domain.ErrInvalidBook)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	stmt := tx.StmtContext(ctx, s.insertBookStmt)
	ids := make([]int64, 0, len(books))
	for _, b := range books {
		res, err := stmt.ExecContext(ctx, b.Title, b.Author, b.Description, b.Tags, b.Copies)
		if err != nil {
			return nil, err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

// UpdateBook overwrites the fields set in patch.
func (s *Store) UpdateBook(ctx context.Context, id int64, patch domain.BookPatch) error {
	if patch.Copies != nil && *patch.Copies < 0 {
		return fmt.Errorf("%w: copies must not be negative", domain.ErrInvalidBook)
	}
	var (
		sets []string
		args []any
	)
	add := func(col string, v any) {
		sets = append(sets, col+"=?")
		args = append(args, v)
	}
	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Author != nil {
		add("author", *patch.Author)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.Tags != nil {
		add("tags", *patch.Tags)
	}
	if patch.Copies != nil {
		add("copies", *patch.Copies)
	}

	if len(sets) == 0 {
		b, err := s.GetBook(ctx, id)
		if err != nil {
			return err
		}
		if b == nil {
			return fmt.Errorf("%w: %d", domain.ErrBookNotFound, id)
		}
		return nil
	}

	args = append(args, id)
	res, err := s.db.ExecContext(ctx, `UPDATE books SET `+strings.Join(sets, ",")+` WHERE id=?`, args...)
	if err != nil {
		return err
	}
	return requireRow(res, id)
}

// AdjustCopies adds delta to a book's copies, refusing to go below zero.
func (s *Store) AdjustCopies(ctx context.Context, id int64, delta int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := adjustCopies(ctx, tx, id, delta); err != nil {
		return err
	}
	return tx.Commit()
}

func adjustCopies(ctx context.Context, tx *sql.Tx, id int64, delta int) error {
	var copies int
	err := tx.QueryRowContext(ctx, `SELECT copies FROM books WHERE id=?`, id).Scan(&copies)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %d", domain.ErrBookNotFound, id)
	}
	if err != nil {
		return err
	}
	if copies+delta < 0 {
		return fmt.Errorf("%w: book %d has %d copies", domain.ErrNoCopiesAvailable, id, copies)
	}
	_, err = tx.ExecContext(ctx, `UPDATE books SET copies=copies+? WHERE id=?`, delta, id)
	return err
}

func requireRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", domain.ErrBookNotFound, id)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Ledger
// ---------------------------------------------------------------------------

// ListTransactions returns every transaction in append order.
func (s *Store) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	return s.queryTransactions(ctx, `SELECT id,book_id,action,user_name,user_college,user_id_email,user_phone,timestamp FROM transactions ORDER BY id`)
}

// LatestTransactions returns the newest limit transactions, oldest first.
func (s *Store) LatestTransactions(ctx context.Context, limit int) ([]domain.Transaction, error) {
	return s.queryTransactions(ctx, `SELECT * FROM (
        SELECT id,book_id,action,user_name,user_college,user_id_email,user_phone,timestamp
        FROM transactions ORDER BY id DESC LIMIT ?) ORDER BY id`, limit)
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		var (
			t      domain.Transaction
			action string
			ts     string
		)
		if err := rows.Scan(&t.ID, &t.BookID, &action, &t.User.Name, &t.User.College, &t.User.IDEmail, &t.User.Phone, &ts); err != nil {
			return nil, err
		}
		t.Action = domain.Action(action)
		if t.Timestamp, err = time.Parse(timeLayout, ts); err != nil {
			return nil, fmt.Errorf("transaction %d: bad timestamp %q: %w", t.ID, ts, err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// AppendTransaction appends t and returns its assigned id; t.ID is ignored.
func (s *Store) AppendTransaction(ctx context.Context, t domain.Transaction) (int64, error) {
	res, err := s.appendTxStmt.ExecContext(ctx, t.BookID, string(t.Action), t.User.Name, t.User.College, t.User.IDEmail, t.User.Phone, t.Timestamp.UTC().Format(timeLayout))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ---------------------------------------------------------------------------
// Circulation
// ---------------------------------------------------------------------------

// Circulate applies a borrow (-1 copy) or return (+1 copy) and appends the
// matching transaction in one SQL transaction. On any validation failure
// nothing is written.
func (s *Store) Circulate(ctx context.Context, t domain.Transaction) (domain.Transaction, error) {
	var delta int
	switch t.Action {
	case domain.ActionBorrow:
		delta = -1
	case domain.ActionReturn:
		delta = 1
	default:
		return domain.Transaction{}, fmt.Errorf("unknown action %q", t.Action)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Transaction{}, err
	}
	defer tx.Rollback()

	if err := adjustCopies(ctx, tx, t.BookID, delta); err != nil {
		return domain.Transaction{}, err
	}
	res, err := tx.StmtContext(ctx, s.appendTxStmt).ExecContext(ctx, t.BookID, string(t.Action), t.User.Name, t.User.College, t.User.IDEmail, t.User.Phone, t.Timestamp.UTC().Format(timeLayout))
	if err != nil {
		return domain.Transaction{}, err
	}
	if t.ID, err = res.LastInsertId(); err != nil {
		return domain.Transaction{}, err
	}
	return t, tx.Commit()
}

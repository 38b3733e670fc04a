package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // registers "mysql"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // registers "sqlite"

	"github.com/cleared-dev/reconcile/internal/id"
	"github.com/cleared-dev/reconcile/internal/model"
)

// Supported database/sql driver names.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Migrations returns the ledger schema statements. Each string is a
// single statement; the DDL is the subset SQLite and MySQL share.
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS ledger_transactions (
			id              VARCHAR(64)  NOT NULL PRIMARY KEY,
			owner_id        VARCHAR(128) NOT NULL,
			txn_date        VARCHAR(10)  NOT NULL,
			description     TEXT         NOT NULL,
			amount          VARCHAR(32)  NOT NULL,
			direction       VARCHAR(16)  NOT NULL,
			category        VARCHAR(64)  NOT NULL,
			created_at      VARCHAR(40)  NOT NULL,
			reconciled_with VARCHAR(128) NOT NULL DEFAULT '',
			import_key      VARCHAR(128) NULL,
			UNIQUE (owner_id, import_key)
		)`,
	}
}

// SQLStore keeps ledgers in a SQL database (SQLite or MySQL).
type SQLStore struct {
	db     *sql.DB
	driver string

	Now   func() time.Time
	NewID func() string
}

// OpenSQL opens a database with the given driver and DSN, verifies the
// connection and applies migrations. For SQLite the DSN is a file path.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	switch driver {
	case DriverSQLite, DriverMySQL:
	default:
		return nil, fmt.Errorf("unsupported ledger driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s ledger: %w", driver, err)
	}
	if driver == DriverSQLite {
		// One writer keeps SQLite from returning SQLITE_BUSY under load.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to %s ledger: %w", driver, err)
	}

	s, err := NewSQLStore(ctx, db, driver)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an open database and applies migrations.
func NewSQLStore(ctx context.Context, db *sql.DB, driver string) (*SQLStore, error) {
	for i, stmt := range Migrations() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("ledger migration %d: %w", i, err)
		}
	}
	return &SQLStore{db: db, driver: driver, Now: time.Now, NewID: id.NewLedgerID}, nil
}

// Close closes the underlying database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// sqlTimeLayout is fixed-width so created_at sorts correctly as text.
const sqlTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const selectColumns = `SELECT id, txn_date, description, amount, direction, category, created_at, reconciled_with, import_key FROM ledger_transactions`

// List returns the owner's ledger ordered by date and creation time.
func (s *SQLStore) List(ctx context.Context, owner string) ([]model.LedgerTransaction, error) {
	if err := CheckOwner(owner); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, selectColumns+` WHERE owner_id = ? ORDER BY txn_date, created_at, id`, owner)
	if err != nil {
		return nil, fmt.Errorf("listing ledger: %w", err)
	}
	defer rows.Close()

	var txns []model.LedgerTransaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("listing ledger: %w", err)
		}
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing ledger: rows iteration error: %w", err)
	}
	return txns, nil
}

// Create inserts a transaction. A repeated import key returns the row
// already stored under that key.
func (s *SQLStore) Create(ctx context.Context, owner string, fields model.LedgerFields) (model.LedgerTransaction, error) {
	if err := CheckOwner(owner); err != nil {
		return model.LedgerTransaction{}, err
	}

	if fields.ImportKey != "" {
		existing, err := s.getByImportKey(ctx, owner, fields.ImportKey)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return model.LedgerTransaction{}, fmt.Errorf("checking import key: %w", err)
		}
	}

	txn := newTransaction(s.NewID(), s.Now(), fields)
	var importKey sql.NullString
	if txn.ImportKey != "" {
		importKey = sql.NullString{String: txn.ImportKey, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ledger_transactions
			(id, owner_id, txn_date, description, amount, direction, category, created_at, reconciled_with, import_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, '', ?)`,
		txn.ID, owner, model.DateKey(txn.Date), txn.Description, txn.Amount.String(),
		string(txn.Direction), txn.Category, txn.CreatedAt.Format(sqlTimeLayout), importKey)
	if err != nil {
		// A concurrent create with the same key wins the unique constraint.
		if importKey.Valid {
			if existing, gerr := s.getByImportKey(ctx, owner, txn.ImportKey); gerr == nil {
				return existing, nil
			}
		}
		return model.LedgerTransaction{}, fmt.Errorf("inserting ledger transaction: %w", err)
	}
	return txn, nil
}

// MarkReconciled sets the back-reference on one transaction.
func (s *SQLStore) MarkReconciled(ctx context.Context, owner, ledgerID, ref string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE ledger_transactions SET reconciled_with = ? WHERE owner_id = ? AND id = ?`,
		ref, owner, ledgerID)
	if err != nil {
		return fmt.Errorf("marking %s reconciled: %w", ledgerID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("marking %s reconciled: RowsAffected failed: %w", ledgerID, err)
	}
	if n == 0 {
		// MySQL reports 0 affected rows when the value is unchanged.
		var exists int
		qerr := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM ledger_transactions WHERE owner_id = ? AND id = ?`, owner, ledgerID).Scan(&exists)
		if qerr != nil {
			return fmt.Errorf("marking %s reconciled: %w", ledgerID, qerr)
		}
		if exists == 0 {
			return fmt.Errorf("marking %s reconciled: %w", ledgerID, ErrNotFound)
		}
	}
	return nil
}

func (s *SQLStore) getByImportKey(ctx context.Context, owner, key string) (model.LedgerTransaction, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE owner_id = ? AND import_key = ?`, owner, key)
	return scanTransaction(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(r rowScanner) (model.LedgerTransaction, error) {
	var (
		txn                     model.LedgerTransaction
		date, amount, createdAt string
		direction               string
		importKey               sql.NullString
	)
	if err := r.Scan(&txn.ID, &date, &txn.Description, &amount, &direction, &txn.Category, &createdAt, &txn.ReconciledWith, &importKey); err != nil {
		return model.LedgerTransaction{}, err
	}

	d, err := time.Parse(model.DateFormat, date)
	if err != nil {
		return model.LedgerTransaction{}, fmt.Errorf("parsing date %q: %w", date, err)
	}
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return model.LedgerTransaction{}, fmt.Errorf("parsing amount %q: %w", amount, err)
	}
	ca, err := time.Parse(sqlTimeLayout, createdAt)
	if err != nil {
		return model.LedgerTransaction{}, fmt.Errorf("parsing created_at %q: %w", createdAt, err)
	}

	txn.Date = d
	txn.Amount = amt
	txn.Direction = model.Direction(direction)
	txn.CreatedAt = ca
	txn.ImportKey = importKey.String
	return txn, nil
}

package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/reconcile/internal/model"
)

// Header is the CSV header for a ledger file.
const Header = "id,date,description,amount,direction,category,created_at,reconciled_with,import_key"

const (
	numFields       = 9
	colID           = 0
	colDate         = 1
	colDesc         = 2
	colAmount       = 3
	colDirection    = 4
	colCategory     = 5
	colCreatedAt    = 6
	colReconciled   = 7
	colImportKey    = 8
	createdAtLayout = time.RFC3339Nano
)

// ReadTransactions reads all ledger transactions from a CSV reader.
func ReadTransactions(r io.Reader) ([]model.LedgerTransaction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading ledger CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	// Skip header row.
	var txns []model.LedgerTransaction
	for i, rec := range records[1:] {
		txn, err := UnmarshalTransaction(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		txns = append(txns, txn)
	}
	return txns, nil
}

// WriteTransactions writes a full ledger file including the header.
func WriteTransactions(w io.Writer, txns []model.LedgerTransaction) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, txn := range txns {
		if err := cw.Write(MarshalTransaction(txn)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	return cw.Error()
}

// AppendTransactions appends rows to an existing ledger file (no header).
func AppendTransactions(w io.Writer, txns []model.LedgerTransaction) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	for i, txn := range txns {
		if err := cw.Write(MarshalTransaction(txn)); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}
	return cw.Error()
}

// MarshalTransaction converts a LedgerTransaction to a CSV row.
func MarshalTransaction(txn model.LedgerTransaction) []string {
	row := make([]string, numFields)
	row[colID] = txn.ID
	row[colDate] = model.DateKey(txn.Date)
	row[colDesc] = txn.Description
	row[colAmount] = txn.Amount.StringFixed(2)
	row[colDirection] = string(txn.Direction)
	row[colCategory] = txn.Category
	if !txn.CreatedAt.IsZero() {
		row[colCreatedAt] = txn.CreatedAt.UTC().Format(createdAtLayout)
	}
	row[colReconciled] = txn.ReconciledWith
	row[colImportKey] = txn.ImportKey
	return row
}

// UnmarshalTransaction converts a CSV row to a LedgerTransaction.
func UnmarshalTransaction(record []string) (model.LedgerTransaction, error) {
	if len(record) != numFields {
		return model.LedgerTransaction{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	date, err := time.Parse(model.DateFormat, record[colDate])
	if err != nil {
		return model.LedgerTransaction{}, fmt.Errorf("parsing date %q: %w", record[colDate], err)
	}

	amount, err := decimal.NewFromString(record[colAmount])
	if err != nil {
		return model.LedgerTransaction{}, fmt.Errorf("parsing amount %q: %w", record[colAmount], err)
	}

	var createdAt time.Time
	if record[colCreatedAt] != "" {
		createdAt, err = time.Parse(createdAtLayout, record[colCreatedAt])
		if err != nil {
			return model.LedgerTransaction{}, fmt.Errorf("parsing created_at %q: %w", record[colCreatedAt], err)
		}
	}

	return model.LedgerTransaction{
		ID:             record[colID],
		Date:           date,
		Description:    record[colDesc],
		Amount:         amount,
		Direction:      model.Direction(record[colDirection]),
		Category:       record[colCategory],
		CreatedAt:      createdAt,
		ReconciledWith: record[colReconciled],
		ImportKey:      record[colImportKey],
	}, nil
}

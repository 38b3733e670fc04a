package auditlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cleared-dev/reconcile/internal/reconcile"
)

// Entry is one row in the reconciliation audit log.
type Entry struct {
	Timestamp  time.Time
	Owner      string
	Batch      string
	Action     string
	ImportedID int
	LedgerID   string
	Details    string
}

// Header is the CSV header for reconcile-log.csv.
const Header = "timestamp,owner,batch,action,imported_id,ledger_id,details"

// File is the audit log path relative to the repo root.
const File = "logs/reconcile-log.csv"

const (
	numFields     = 7
	logDir        = "logs"
	colTimestamp  = 0
	colOwner      = 1
	colBatch      = 2
	colAction     = 3
	colImportedID = 4
	colLedgerID   = 5
	colDetails    = 6
)

// appendMu serializes appends from concurrent batches in one process.
var appendMu sync.Mutex

// FromEvents converts a batch's events to log entries for owner.
func FromEvents(owner string, events []reconcile.Event) []Entry {
	entries := make([]Entry, len(events))
	for i, e := range events {
		entries[i] = Entry{
			Timestamp:  e.Time,
			Owner:      owner,
			Batch:      e.Batch,
			Action:     e.Action,
			ImportedID: e.ImportedID,
			LedgerID:   e.LedgerID,
			Details:    e.Details,
		}
	}
	return entries
}

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.UTC().Format(time.RFC3339)
	row[colOwner] = e.Owner
	row[colBatch] = e.Batch
	row[colAction] = e.Action
	row[colImportedID] = strconv.Itoa(e.ImportedID)
	row[colLedgerID] = e.LedgerID
	row[colDetails] = e.Details
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}
	row, err := strconv.Atoi(record[colImportedID])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing imported_id %q: %w", record[colImportedID], err)
	}

	return Entry{
		Timestamp:  ts,
		Owner:      record[colOwner],
		Batch:      record[colBatch],
		Action:     record[colAction],
		ImportedID: row,
		LedgerID:   record[colLedgerID],
		Details:    record[colDetails],
	}, nil
}

// Append writes entries to <repoRoot>/logs/reconcile-log.csv, creating the
// file and header if needed.
func Append(repoRoot string, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	appendMu.Lock()
	defer appendMu.Unlock()

	dir := filepath.Join(repoRoot, logDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	path := filepath.Join(repoRoot, File)
	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	defer cw.Flush()

	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}

	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Read returns all entries from <repoRoot>/logs/reconcile-log.csv.
// Returns nil if the file does not exist.
func Read(repoRoot string) ([]Entry, error) {
	f, err := os.Open(filepath.Join(repoRoot, File))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading audit log CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

package ledger

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cleared-dev/reconcile/internal/id"
	"github.com/cleared-dev/reconcile/internal/model"
)

// ledgerDir is the subdirectory holding one CSV file per owner.
const ledgerDir = "ledger"

// FileStore keeps each owner's ledger in <repoRoot>/ledger/<owner>.csv.
// Files are plain CSV so they diff cleanly under git.
type FileStore struct {
	repoRoot string
	mu       sync.Mutex

	// Now and NewID are replaceable for tests.
	Now   func() time.Time
	NewID func() string
}

// NewFileStore creates a FileStore rooted at repoRoot.
func NewFileStore(repoRoot string) *FileStore {
	return &FileStore{repoRoot: repoRoot, Now: time.Now, NewID: id.NewLedgerID}
}

// Path returns the ledger file for an owner.
func (s *FileStore) Path(owner string) string {
	return filepath.Join(s.repoRoot, ledgerDir, owner+".csv")
}

// List returns the owner's ledger in file order.
func (s *FileStore) List(ctx context.Context, owner string) ([]model.LedgerTransaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := CheckOwner(owner); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(owner)
}

// Create appends a transaction, or returns the existing one when the
// import key was already used.
func (s *FileStore) Create(ctx context.Context, owner string, fields model.LedgerFields) (model.LedgerTransaction, error) {
	if err := ctx.Err(); err != nil {
		return model.LedgerTransaction{}, err
	}
	if err := CheckOwner(owner); err != nil {
		return model.LedgerTransaction{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.read(owner)
	if err != nil {
		return model.LedgerTransaction{}, err
	}
	if txn, ok := findByImportKey(existing, fields.ImportKey); ok {
		return txn, nil
	}

	txn := newTransaction(s.NewID(), s.Now(), fields)

	path := s.Path(owner)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return model.LedgerTransaction{}, fmt.Errorf("creating ledger dir: %w", err)
	}

	isNew := false
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		isNew = true
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return model.LedgerTransaction{}, fmt.Errorf("opening ledger: %w", err)
	}
	defer f.Close()

	if isNew {
		if _, err := fmt.Fprintln(f, Header); err != nil {
			return model.LedgerTransaction{}, fmt.Errorf("writing header: %w", err)
		}
	}

	if err := AppendTransactions(f, []model.LedgerTransaction{txn}); err != nil {
		return model.LedgerTransaction{}, fmt.Errorf("appending transaction: %w", err)
	}
	return txn, nil
}

// MarkReconciled rewrites the owner's file with the back-reference set.
func (s *FileStore) MarkReconciled(ctx context.Context, owner, ledgerID, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := CheckOwner(owner); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	txns, err := s.read(owner)
	if err != nil {
		return err
	}

	found := false
	for i := range txns {
		if txns[i].ID == ledgerID {
			txns[i].ReconciledWith = ref
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("marking %s reconciled: %w", ledgerID, ErrNotFound)
	}

	path := s.Path(owner)
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating ledger temp file: %w", err)
	}
	if err := WriteTransactions(f, txns); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("rewriting ledger: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing ledger temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing ledger: %w", err)
	}
	return nil
}

func (s *FileStore) read(owner string) ([]model.LedgerTransaction, error) {
	path := s.Path(owner)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening ledger %s: %w", path, err)
	}
	defer f.Close()

	txns, err := ReadTransactions(f)
	if err != nil {
		return nil, fmt.Errorf("reading ledger %s: %w", path, err)
	}
	return txns, nil
}

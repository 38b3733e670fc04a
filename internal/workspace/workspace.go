// Package workspace opens a reconcile project directory and wires its
// config, categories, ledger store and parsers together. The CLI and the
// HTTP API both run batches through a Workspace.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/cleared-dev/reconcile/internal/categories"
	"github.com/cleared-dev/reconcile/internal/config"
	"github.com/cleared-dev/reconcile/internal/importer"
	"github.com/cleared-dev/reconcile/internal/ledger"
)

// Workspace holds references to all services of one project directory.
type Workspace struct {
	Root       string
	Config     *config.Config
	Categories *categories.Service
	Ledger     *ledger.Service
	Parsers    *importer.Registry

	store  ledger.Store
	closer io.Closer
}

// Open loads the config found in root and opens the configured store.
func Open(ctx context.Context, root string) (*Workspace, error) {
	path, err := config.Find(root)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return New(ctx, root, cfg)
}

// New wires a Workspace from an already loaded config.
func New(ctx context.Context, root string, cfg *config.Config) (*Workspace, error) {
	cats, err := categories.Load(root)
	if err != nil {
		return nil, fmt.Errorf("loading categories: %w", err)
	}

	store, closer, err := openStore(ctx, root, cfg.Store)
	if err != nil {
		return nil, err
	}

	return &Workspace{
		Root:       root,
		Config:     cfg,
		Categories: cats,
		Ledger:     ledger.NewService(store, cats),
		Parsers:    importer.DefaultRegistry(),
		store:      store,
		closer:     closer,
	}, nil
}

// Close releases the ledger store.
func (w *Workspace) Close() error {
	if w.closer == nil {
		return nil
	}
	return w.closer.Close()
}

// FileBacked reports whether the ledger lives in CSV files under Root.
func (w *Workspace) FileBacked() bool {
	_, ok := w.store.(*ledger.FileStore)
	return ok
}

func openStore(ctx context.Context, root string, sc config.StoreConfig) (ledger.Store, io.Closer, error) {
	switch sc.Driver {
	case config.DriverCSV, "":
		return ledger.NewFileStore(root), nil, nil
	case config.DriverSQLite:
		dsn := sc.DSN
		if !filepath.IsAbs(dsn) {
			dsn = filepath.Join(root, dsn)
		}
		s, err := ledger.OpenSQL(ctx, ledger.DriverSQLite, dsn)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case config.DriverMySQL:
		s, err := ledger.OpenSQL(ctx, ledger.DriverMySQL, sc.DSN)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return nil, nil, errors.New("unknown store driver " + sc.Driver)
	}
}

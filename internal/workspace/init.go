package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cleared-dev/reconcile/internal/categories"
	"github.com/cleared-dev/reconcile/internal/config"
	"github.com/cleared-dev/reconcile/internal/gitops"
)

// InitOptions configures a new project directory.
type InitOptions struct {
	Owner   string
	Profile string // category profile, household or small_business
	Git     bool   // create a git repo and an initial commit
}

// Layout lists the directories of a project, relative to its root.
var Layout = []string{
	"categories",
	"ledger",
	"logs",
	"import",
	filepath.Join("import", "processed"),
}

// Init creates the project layout, config and category list in dir.
// Returns the initial commit hash when opts.Git is set.
func Init(ctx context.Context, dir string, opts InitOptions) (string, error) {
	for _, d := range Layout {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return "", fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	cfg := config.Default(opts.Owner)
	if opts.Profile != "" {
		cfg.Categories.Profile = opts.Profile
	}
	cfg.Git.AutoCommit = opts.Git
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	if err := config.Save(filepath.Join(dir, config.FileName), cfg); err != nil {
		return "", fmt.Errorf("writing config: %w", err)
	}

	svc := categories.NewService(categories.DefaultCategories(cfg.Categories.Profile))
	if err := svc.Save(dir); err != nil {
		return "", fmt.Errorf("writing categories: %w", err)
	}

	gitignore := "*.db\n.env\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return "", fmt.Errorf("writing .gitignore: %w", err)
	}
	for _, d := range []string{"ledger", "import"} {
		if err := os.WriteFile(filepath.Join(dir, d, ".gitkeep"), []byte{}, 0o644); err != nil {
			return "", fmt.Errorf("writing .gitkeep: %w", err)
		}
	}

	if !opts.Git {
		return "", nil
	}
	if err := gitops.Init(ctx, dir); err != nil {
		return "", err
	}
	hash, err := gitops.Commit(ctx, dir, "init: reconcile project for "+opts.Owner,
		gitops.Author{Name: cfg.Git.AuthorName, Email: cfg.Git.AuthorEmail})
	if err != nil {
		return "", fmt.Errorf("initial commit: %w", err)
	}
	return hash, nil
}

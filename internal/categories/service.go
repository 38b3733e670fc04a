package categories

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cleared-dev/reconcile/internal/model"
)

// Service provides in-memory lookup over the category list.
type Service struct {
	cats   []model.Category
	byName map[string]model.Category
}

// NewService creates a Service from a slice of categories. The
// uncategorized bucket is always present.
func NewService(cats []model.Category) *Service {
	byName := make(map[string]model.Category, len(cats)+1)
	for _, c := range cats {
		byName[c.Name] = c
	}
	if _, ok := byName[model.Uncategorized]; !ok {
		c := model.Category{Name: model.Uncategorized}
		cats = append([]model.Category{c}, cats...)
		byName[c.Name] = c
	}
	return &Service{cats: cats, byName: byName}
}

// Load reads categories/categories.csv from a repo root. A missing file
// yields the default household list.
func Load(repoRoot string) (*Service, error) {
	path := filepath.Join(repoRoot, "categories", "categories.csv")
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewService(DefaultCategories("household")), nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening categories: %w", err)
	}
	defer f.Close()

	cats, err := ReadCategories(f)
	if err != nil {
		return nil, fmt.Errorf("reading categories: %w", err)
	}
	return NewService(cats), nil
}

// All returns all categories.
func (s *Service) All() []model.Category {
	return s.cats
}

// Get returns a category by name.
func (s *Service) Get(name string) (model.Category, bool) {
	c, ok := s.byName[name]
	return c, ok
}

// Exists reports whether a category name is known.
func (s *Service) Exists(name string) bool {
	_, ok := s.byName[name]
	return ok
}

// Allows reports whether category name may be used for direction d.
func (s *Service) Allows(name string, d model.Direction) bool {
	c, ok := s.byName[name]
	if !ok {
		return false
	}
	return c.Direction == "" || c.Direction == d
}

// Save writes the list to categories/categories.csv.
func (s *Service) Save(repoRoot string) error {
	dir := filepath.Join(repoRoot, "categories")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating categories dir: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, "categories.csv"))
	if err != nil {
		return fmt.Errorf("creating categories file: %w", err)
	}
	defer f.Close()

	if err := WriteCategories(f, s.cats); err != nil {
		return fmt.Errorf("writing categories: %w", err)
	}
	return nil
}

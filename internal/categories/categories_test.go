package categories

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/reconcile/internal/model"
)

func TestRoundTrip(t *testing.T) {
	cats := []model.Category{
		{Name: "groceries", Direction: model.DirectionExpense, Description: "Food, \"household\" goods"},
		{Name: "transfers"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCategories(&buf, cats))

	got, err := ReadCategories(&buf)
	require.NoError(t, err)
	assert.Equal(t, cats, got)
}

func TestReadCategories_BadDirection(t *testing.T) {
	_, err := ReadCategories(strings.NewReader("name,direction,description\nfood,sideways,\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
}

func TestReadCategories_Empty(t *testing.T) {
	cats, err := ReadCategories(strings.NewReader(""))
	require.NoError(t, err)
	assert.Nil(t, cats)
}

func TestDefaultCategories(t *testing.T) {
	for _, profile := range []string{"household", "small_business", "unknown"} {
		svc := NewService(DefaultCategories(profile))
		assert.True(t, svc.Exists(model.Uncategorized), "profile %s", profile)
		for _, c := range svc.All() {
			assert.NotEmpty(t, c.Name)
		}
	}
}

func TestServiceAllows(t *testing.T) {
	svc := NewService(DefaultCategories("household"))

	assert.True(t, svc.Allows("groceries", model.DirectionExpense))
	assert.False(t, svc.Allows("groceries", model.DirectionIncome))
	assert.True(t, svc.Allows("transfers", model.DirectionIncome))
	assert.True(t, svc.Allows(model.Uncategorized, model.DirectionIncome))
	assert.False(t, svc.Allows("nope", model.DirectionExpense))
}

func TestNewService_AddsUncategorized(t *testing.T) {
	svc := NewService([]model.Category{{Name: "salary", Direction: model.DirectionIncome}})
	assert.True(t, svc.Exists(model.Uncategorized))
	assert.Len(t, svc.All(), 2)

	c, ok := svc.Get("salary")
	require.True(t, ok)
	assert.Equal(t, model.DirectionIncome, c.Direction)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	svc, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.True(t, svc.Exists("groceries"))
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	svc := NewService(DefaultCategories("small_business"))
	require.NoError(t, svc.Save(dir))

	_, err := os.Stat(filepath.Join(dir, "categories", "categories.csv"))
	require.NoError(t, err)

	got, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, svc.All(), got.All())
	assert.True(t, got.Exists("software"))
	assert.False(t, got.Exists("groceries"))
}

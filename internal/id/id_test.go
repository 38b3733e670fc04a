package id

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLedgerID(t *testing.T) {
	a := NewLedgerID()
	b := NewLedgerID()
	assert.NotEqual(t, a, b)

	_, err := uuid.Parse(a)
	assert.NoError(t, err)
}

func TestBatchID(t *testing.T) {
	raw := []byte("date,description,amount\n2024-01-15,ICA,-250\n")
	got := BatchID(raw)
	assert.Len(t, got, 12)
	assert.Equal(t, got, BatchID(raw), "same content, same batch")
	assert.NotEqual(t, got, BatchID([]byte("date,description,amount\n2024-01-16,ICA,-250\n")))
}

func TestFormatImportKey(t *testing.T) {
	tests := []struct {
		batch string
		row   int
		want  string
	}{
		{"abc123", 0, "abc123/0000"},
		{"abc123", 42, "abc123/0042"},
		{"abc123", 12345, "abc123/12345"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatImportKey(tt.batch, tt.row))
	}
}

func TestParseImportKey(t *testing.T) {
	batch, row, err := ParseImportKey("abc123/0042")
	require.NoError(t, err)
	assert.Equal(t, "abc123", batch)
	assert.Equal(t, 42, row)

	batch, row, err = ParseImportKey(FormatImportKey("ff00", 7))
	require.NoError(t, err)
	assert.Equal(t, "ff00", batch)
	assert.Equal(t, 7, row)
}

func TestParseImportKey_Errors(t *testing.T) {
	badInputs := []string{
		"",
		"no-slash",
		"/0001",
		"abc/xyz",
		"abc/-1",
	}
	for _, input := range badInputs {
		_, _, err := ParseImportKey(input)
		assert.Error(t, err, "expected error for input: %s", input)
	}
}

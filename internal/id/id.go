package id

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// batchIDLen is the number of hex characters kept from the content hash.
const batchIDLen = 12

// NewLedgerID returns a fresh ledger transaction ID.
func NewLedgerID() string {
	return uuid.NewString()
}

// BatchID derives a batch ID from the raw import text. The same export
// always yields the same batch ID, so re-imports reuse their import keys.
func BatchID(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])[:batchIDLen]
}

// FormatImportKey returns an idempotency key like "3f2a9c1d0b7e/0004".
func FormatImportKey(batchID string, row int) string {
	return fmt.Sprintf("%s/%04d", batchID, row)
}

// ParseImportKey splits an import key into batch ID and row index.
func ParseImportKey(key string) (batchID string, row int, err error) {
	batchID, rowPart, ok := strings.Cut(key, "/")
	if !ok || batchID == "" {
		return "", 0, fmt.Errorf("invalid import key format: %q", key)
	}
	row, err = strconv.Atoi(rowPart)
	if err != nil {
		return "", 0, fmt.Errorf("invalid row in import key %q: %w", key, err)
	}
	if row < 0 {
		return "", 0, fmt.Errorf("negative row in import key %q", key)
	}
	return batchID, row, nil
}

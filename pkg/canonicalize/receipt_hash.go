package canonicalize

import (
	"encoding/json"
	"fmt"

	"github.com/Mindburn-Labs/backplane/pkg/contract"
)

// ReceiptHash computes the lowercase-hex SHA-256 of the receipt's canonical
// form with receipt_sha256 nulled. The field is always nulled before hashing
// regardless of its prior value; an empty string is treated the same as null.
// This is what lets the stored hash live inside the hashed object.
func ReceiptHash(r contract.Receipt) (string, error) {
	intermediate, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("receipt hash: marshal failed: %w", err)
	}
	var generic map[string]json.RawMessage
	if err := json.Unmarshal(intermediate, &generic); err != nil {
		return "", fmt.Errorf("receipt hash: decode failed: %w", err)
	}
	generic["receipt_sha256"] = json.RawMessage("null")
	canonical, err := JCS(generic)
	if err != nil {
		return "", fmt.Errorf("receipt hash: %w", err)
	}
	return HashBytes(canonical), nil
}

// WithHash returns r with receipt_sha256 set to its own canonical hash.
// Repeated application is idempotent.
func WithHash(r contract.Receipt) (contract.Receipt, error) {
	h, err := ReceiptHash(r)
	if err != nil {
		return r, err
	}
	r.ReceiptSHA = &h
	return r, nil
}

// VerifyHash reports whether the stored hash matches the recomputed one. A
// receipt with no stored hash verifies trivially; an empty-string sentinel is
// preserved by storage and compared like any other stored value.
func VerifyHash(r contract.Receipt) (bool, error) {
	if r.ReceiptSHA == nil {
		return true, nil
	}
	h, err := ReceiptHash(r)
	if err != nil {
		return false, err
	}
	return *r.ReceiptSHA == h, nil
}

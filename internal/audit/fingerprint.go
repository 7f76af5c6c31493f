package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/fernet/fernet-go"
)

// Fingerprinter produces the bank-detail fingerprints stored with audit
// records: a short digest for correlation plus a fernet-encrypted copy that
// compliance can decrypt with the key. Raw bank details are never persisted.
type Fingerprinter struct {
	key *fernet.Key
}

// NewFingerprinter parses a base64 fernet key from configuration.
func NewFingerprinter(encodedKey string) (*Fingerprinter, error) {
	key, err := fernet.DecodeKey(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("invalid audit encryption key: %w", err)
	}
	return &Fingerprinter{key: key}, nil
}

// Fingerprint returns "digest:token" for the given bank details. On
// encryption failure it degrades to digest only; fingerprinting must never
// block a settlement.
func (f *Fingerprinter) Fingerprint(bankDetails string) string {
	sum := sha256.Sum256([]byte(bankDetails))
	digest := hex.EncodeToString(sum[:8])

	token, err := fernet.EncryptAndSign([]byte(bankDetails), f.key)
	if err != nil {
		return digest
	}
	return digest + ":" + string(token)
}

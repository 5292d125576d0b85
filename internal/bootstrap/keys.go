package bootstrap

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
)

const keySize = 32

// DeriveKey turns a configured secret into key bytes. A 64-character hex
// string is decoded as is; anything else is hashed with SHA-256.
func DeriveKey(secret string) []byte {
	if decoded, err := hex.DecodeString(secret); err == nil && len(decoded) == keySize {
		return decoded
	}
	sum := sha256.Sum256([]byte(secret))
	return sum[:]
}

// resolveKey derives the key named by envName. An empty secret yields a
// random key that only lives as long as the process.
func resolveKey(envName, secret string, logger *slog.Logger) ([]byte, error) {
	if secret != "" {
		return DeriveKey(secret), nil
	}
	if logger != nil {
		logger.Warn("key is not configured, using a random key for this process", "env", envName)
	}
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate %s: %w", envName, err)
	}
	return key, nil
}

// verifierKey salts the return-URL verifier HMAC. The verifier secret lives in
// the shared internals store, so an unset key stays nil instead of random:
// every replica and every restart must sign return URLs identically.
func verifierKey(secret string) []byte {
	if secret == "" {
		return nil
	}
	return DeriveKey(secret)
}

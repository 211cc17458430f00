// Package integrity signs action log entries so tampering with a stored log
// is detectable even when the digest chain is recomputed consistently.
package integrity

import (
	"crypto/hkdf"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/batchmessaging/internal/services/batch/domain/action"
)

const signingInfo = "batch.action.state"

// ErrSignatureMismatch indicates a signature that does not verify.
var ErrSignatureMismatch = errors.New("signature mismatch")

// Keyring stores root HMAC keys and the active key id.
type Keyring struct {
	keys        map[string][]byte
	activeKeyID string
}

// NewKeyring constructs a keyring for HMAC signing and verification.
func NewKeyring(keys map[string][]byte, activeKeyID string) (*Keyring, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("hmac keys are required")
	}
	activeKeyID = strings.TrimSpace(activeKeyID)
	if activeKeyID == "" {
		return nil, fmt.Errorf("active hmac key id is required")
	}
	if _, ok := keys[activeKeyID]; !ok {
		return nil, fmt.Errorf("active hmac key id is not configured")
	}
	return &Keyring{keys: keys, activeKeyID: activeKeyID}, nil
}

// ActiveKeyID returns the configured signing key id.
func (k *Keyring) ActiveKeyID() string {
	if k == nil {
		return ""
	}
	return k.activeKeyID
}

// SignState signs the state reached by batch seq with the active key.
func (k *Keyring) SignState(seq uint64, state action.State) (signature, keyID string, err error) {
	if k == nil {
		return "", "", fmt.Errorf("hmac keyring is not configured")
	}
	keyID = k.activeKeyID
	key, err := deriveKey(k.keys[keyID])
	if err != nil {
		return "", "", err
	}
	return mac(key, seq, state), keyID, nil
}

// VerifyState checks a signature produced by SignState.
func (k *Keyring) VerifyState(seq uint64, state action.State, signature, keyID string) error {
	if k == nil {
		return fmt.Errorf("hmac keyring is not configured")
	}
	keyID = strings.TrimSpace(keyID)
	if keyID == "" {
		return fmt.Errorf("signature key id is required")
	}
	rootKey, ok := k.keys[keyID]
	if !ok {
		return fmt.Errorf("signature key id %q is unknown", keyID)
	}
	key, err := deriveKey(rootKey)
	if err != nil {
		return err
	}
	if !hmac.Equal([]byte(mac(key, seq, state)), []byte(signature)) {
		return fmt.Errorf("batch %d: %w", seq, ErrSignatureMismatch)
	}
	return nil
}

func deriveKey(rootKey []byte) ([]byte, error) {
	key, err := hkdf.Key(sha256.New, rootKey, nil, signingInfo, 32)
	if err != nil {
		return nil, fmt.Errorf("derive signing key: %w", err)
	}
	return key, nil
}

func mac(key []byte, seq uint64, state action.State) string {
	h := hmac.New(sha256.New, key)
	var seqBytes [8]byte
	binary.BigEndian.PutUint64(seqBytes[:], seq)
	_, _ = h.Write(seqBytes[:])
	_, _ = h.Write(state[:])
	return hex.EncodeToString(h.Sum(nil))
}

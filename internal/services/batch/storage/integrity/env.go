package integrity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/batchmessaging/internal/platform/config"
)

const (
	envHMACKeys  = "ACTION_HMAC_KEYS"
	envHMACKey   = "ACTION_HMAC_KEY"
	envHMACKeyID = "ACTION_HMAC_KEY_ID"
	defaultKeyID = "v1"
)

// ErrNotConfigured indicates that no signing key is present in the environment.
var ErrNotConfigured = errors.New("action hmac key is not configured")

// KeyringFromEnv loads the keyring from BATCHMESSAGING_ACTION_HMAC_KEYS
// ("id=secret,...") or BATCHMESSAGING_ACTION_HMAC_KEY, with the active id in
// BATCHMESSAGING_ACTION_HMAC_KEY_ID (default "v1").
func KeyringFromEnv() (*Keyring, error) {
	keyID := config.Getenv(envHMACKeyID)
	if keyID == "" {
		keyID = defaultKeyID
	}

	keySpec := config.Getenv(envHMACKeys)
	if keySpec == "" {
		raw := config.Getenv(envHMACKey)
		if raw == "" {
			return nil, ErrNotConfigured
		}
		return NewKeyring(map[string][]byte{keyID: []byte(raw)}, keyID)
	}

	keys := make(map[string][]byte)
	for _, entry := range strings.Split(keySpec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id, value, ok := strings.Cut(entry, "=")
		id = strings.TrimSpace(id)
		value = strings.TrimSpace(value)
		if !ok || id == "" || value == "" {
			return nil, fmt.Errorf("invalid %s%s entry", config.EnvPrefix, envHMACKeys)
		}
		keys[id] = []byte(value)
	}
	return NewKeyring(keys, keyID)
}

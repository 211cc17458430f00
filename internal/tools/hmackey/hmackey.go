// Package hmackey generates action signing keys in environment form.
package hmackey

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/louisbranch/batchmessaging/internal/platform/config"
)

// Config holds configuration for HMAC key generation.
type Config struct {
	Bytes int
	// KeyID, when set, emits the rotation form: a keyed entry plus the
	// active key id.
	KeyID string
}

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{Bytes: 32}
	fs.IntVar(&cfg.Bytes, "bytes", cfg.Bytes, "number of random bytes (default: 32)")
	fs.StringVar(&cfg.KeyID, "key-id", cfg.KeyID, "key id for a rotation entry (default: single key form)")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run generates the key and writes it to out.
func Run(cfg Config, out io.Writer, reader io.Reader) error {
	if cfg.Bytes <= 0 {
		return errors.New("bytes must be greater than zero")
	}
	if out == nil {
		return errors.New("output is required")
	}
	keyID := strings.TrimSpace(cfg.KeyID)
	if strings.ContainsAny(keyID, "=,") {
		return fmt.Errorf("key id %q must not contain '=' or ','", keyID)
	}
	if reader == nil {
		reader = rand.Reader
	}

	buf := make([]byte, cfg.Bytes)
	if _, err := io.ReadFull(reader, buf); err != nil {
		return fmt.Errorf("generate random bytes: %w", err)
	}
	secret := hex.EncodeToString(buf)

	if keyID == "" {
		_, err := fmt.Fprintf(out, "%sACTION_HMAC_KEY=%s\n", config.EnvPrefix, secret)
		return err
	}
	_, err := fmt.Fprintf(out, "%sACTION_HMAC_KEYS=%s=%s\n%sACTION_HMAC_KEY_ID=%s\n",
		config.EnvPrefix, keyID, secret, config.EnvPrefix, keyID)
	return err
}

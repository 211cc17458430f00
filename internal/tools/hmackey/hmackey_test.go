package hmackey

import (
	"bytes"
	"flag"
	"fmt"
	"strings"
	"testing"

	"github.com/louisbranch/batchmessaging/internal/services/batch/storage/integrity"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("hmackey", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Bytes != 32 {
		t.Fatalf("expected default bytes 32, got %d", cfg.Bytes)
	}
}

func TestParseConfigOverride(t *testing.T) {
	fs := flag.NewFlagSet("hmackey", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-bytes", "16"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Bytes != 16 {
		t.Fatalf("expected bytes 16, got %d", cfg.Bytes)
	}
}

func TestRunRejectsInvalidBytes(t *testing.T) {
	if err := Run(Config{Bytes: 0}, &bytes.Buffer{}, bytes.NewReader(nil)); err == nil {
		t.Fatal("expected error for non-positive bytes")
	}
}

func TestRunWritesHex(t *testing.T) {
	buf := &bytes.Buffer{}
	reader := bytes.NewReader([]byte{0x01, 0x02, 0x03, 0x04})
	if err := Run(Config{Bytes: 4}, buf, reader); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != "BATCHMESSAGING_ACTION_HMAC_KEY=01020304" {
		t.Fatalf("expected env output, got %q", got)
	}
}

func TestRunWritesRotationEntry(t *testing.T) {
	buf := &bytes.Buffer{}
	reader := bytes.NewReader([]byte{0xaa, 0xbb})
	if err := Run(Config{Bytes: 2, KeyID: "v2"}, buf, reader); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := "BATCHMESSAGING_ACTION_HMAC_KEYS=v2=aabb\nBATCHMESSAGING_ACTION_HMAC_KEY_ID=v2\n"
	if buf.String() != want {
		t.Fatalf("expected %q, got %q", want, buf.String())
	}
}

func TestRunRejectsMalformedKeyID(t *testing.T) {
	for _, id := range []string{"a=b", "a,b"} {
		if err := Run(Config{Bytes: 4, KeyID: id}, &bytes.Buffer{}, nil); err == nil {
			t.Fatalf("expected error for key id %q", id)
		}
	}
}

func TestRunOutputLoadsAsKeyring(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := Run(Config{Bytes: 16, KeyID: "v3"}, buf, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		name, value, ok := strings.Cut(line, "=")
		if !ok {
			t.Fatalf("malformed line %q", line)
		}
		t.Setenv(name, value)
	}
	keyring, err := integrity.KeyringFromEnv()
	if err != nil {
		t.Fatalf("load keyring: %v", err)
	}
	if keyring.ActiveKeyID() != "v3" {
		t.Fatalf("expected active key v3, got %q", keyring.ActiveKeyID())
	}
}

func TestRunNilOutput(t *testing.T) {
	if err := Run(Config{Bytes: 4}, nil, nil); err == nil {
		t.Fatal("expected error for nil output")
	}
}

func TestRunDefaultReader(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := Run(Config{Bytes: 4}, buf, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	// Default reader is crypto/rand, so output should be env key + 8 hex chars.
	got := strings.TrimSpace(buf.String())
	const prefix = "BATCHMESSAGING_ACTION_HMAC_KEY="
	if !strings.HasPrefix(got, prefix) {
		t.Fatalf("expected env prefix, got %q", got)
	}
	if len(strings.TrimPrefix(got, prefix)) != 8 {
		t.Fatalf("expected 8 hex chars, got %d: %q", len(strings.TrimPrefix(got, prefix)), got)
	}
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, fmt.Errorf("read error") }

func TestRunReaderError(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := Run(Config{Bytes: 4}, buf, errReader{}); err == nil {
		t.Fatal("expected error from failing reader")
	}
}

func TestParseConfigBadArgs(t *testing.T) {
	fs := flag.NewFlagSet("hmackey", flag.ContinueOnError)
	fs.SetOutput(&bytes.Buffer{})
	if _, err := ParseConfig(fs, []string{"-invalid"}); err == nil {
		t.Fatal("expected error for unknown flag")
	}
}

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix namespaces every environment variable the module reads.
const EnvPrefix = "BATCHMESSAGING_"

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Getenv returns the trimmed value of EnvPrefix+name.
func Getenv(name string) string {
	return strings.TrimSpace(os.Getenv(EnvPrefix + name))
}

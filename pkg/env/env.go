package env

import (
	"os"
	"strings"
)

// Prefix namespaces every promoredeem environment variable.
const Prefix = "PROMOREDEEM"

// Key returns the prefixed variable name for name.
func Key(name string) string {
	return Prefix + "_" + strings.ToUpper(name)
}

// Get returns the value of the given environment variable or a fallback.
func Get(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

package secrets

import (
	"fmt"
	"os"
	"strings"
)

// Lookup resolves a credential. A KEY_FILE variable (Docker/K8s mounted
// secret) wins over the plain KEY variable. found is false when neither is set.
func Lookup(envKey string) (value string, found bool, err error) {
	if path := os.Getenv(envKey + "_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", false, fmt.Errorf("read secret file %s: %w", path, err)
		}
		return strings.TrimSpace(string(data)), true, nil
	}

	if value := os.Getenv(envKey); value != "" {
		return value, true, nil
	}

	return "", false, nil
}

// Optional returns the credential or fallback when it is unset or unreadable.
func Optional(envKey, fallback string) string {
	value, found, err := Lookup(envKey)
	if err != nil || !found {
		return fallback
	}
	return value
}

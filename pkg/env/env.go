package env

import "os"

// Get reads an environment variable, falling back when unset or empty.
func Get(key, fallback string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	return v
}

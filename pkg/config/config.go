package config

import (
	"log"
	"os"
	"strconv"
)

// GetString reads an environment variable, returning fallback when unset.
func GetString(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// GetInt reads an environment variable as an integer. Unset or unparseable
// values yield the fallback.
func GetInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("ignoring unparseable value for %s: %v", key, err)
		return fallback
	}
	return parsed
}

// GetBool reads an environment variable as a bool. Unset or unparseable
// values yield the fallback.
func GetBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("ignoring unparseable value for %s: %v", key, err)
		return fallback
	}
	return parsed
}

// Package env reads the settings of the pgrepl binary that live outside of the
// config file, such as PGREPL_SKIP_CHECKS.
package env

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// GetBool returns the boolean value of the environment variable name. An unset
// or blank variable yields fallback. A malformed value yields fallback and an error.
func GetBool(name string, fallback bool) (bool, error) {
	s, ok := lookup(name)
	if !ok {
		return fallback, nil
	}

	v, err := strconv.ParseBool(s)
	if err != nil {
		return fallback, fmt.Errorf("get bool %s: %w", name, err)
	}
	return v, nil
}

// GetInt is GetBool for integers.
func GetInt(name string, fallback int) (int, error) {
	s, ok := lookup(name)
	if !ok {
		return fallback, nil
	}

	v, err := strconv.Atoi(s)
	if err != nil {
		return fallback, fmt.Errorf("get int %s: %w", name, err)
	}
	return v, nil
}

func lookup(name string) (string, bool) {
	s := strings.TrimSpace(os.Getenv(name))
	return s, s != ""
}

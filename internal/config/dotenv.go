package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadDotEnv copies KEY=VALUE lines from path into the process environment and
// reports how many keys were set. Keys already present in the environment win.
// A missing file is not an error.
func LoadDotEnv(path string) (int, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return 0, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("open env file: %w", err)
	}
	defer f.Close()

	loaded := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, val, ok := parseEnvLine(scanner.Text())
		if !ok {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, val); err != nil {
			return loaded, fmt.Errorf("set %s: %w", key, err)
		}
		loaded++
	}
	if err := scanner.Err(); err != nil {
		return loaded, fmt.Errorf("scan env file: %w", err)
	}
	return loaded, nil
}

func parseEnvLine(line string) (string, string, bool) {
	raw := strings.TrimSpace(line)
	if raw == "" || strings.HasPrefix(raw, "#") {
		return "", "", false
	}
	raw = strings.TrimPrefix(raw, "export ")

	key, val, ok := strings.Cut(raw, "=")
	if !ok {
		return "", "", false
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", "", false
	}

	val = strings.TrimSpace(val)
	if quoted, ok := unquoteEnv(val); ok {
		return key, quoted, true
	}
	// Unquoted values may carry a trailing " # comment".
	if idx := strings.Index(val, " #"); idx >= 0 {
		val = strings.TrimSpace(val[:idx])
	}
	return key, val, true
}

func unquoteEnv(v string) (string, bool) {
	if len(v) < 2 {
		return v, false
	}
	first, last := v[0], v[len(v)-1]
	if (first == '"' || first == '\'') && first == last {
		return v[1 : len(v)-1], true
	}
	return v, false
}

// Package env reads typed values from environment variables.
package env

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Lookup is the environment source. Tests replace it.
type Lookup func(key string) (string, bool)

// OS reads the process environment.
var OS Lookup = os.LookupEnv

func (l Lookup) get(key string) (string, bool) {
	lookup := l
	if lookup == nil {
		lookup = os.LookupEnv
	}
	v, ok := lookup(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// String returns the variable or def when unset or empty.
func (l Lookup) String(key string, def string) string {
	if v, ok := l.get(key); ok {
		return v
	}
	return def
}

// Int parses the variable as an integer.
func (l Lookup) Int(key string, def int) (int, error) {
	if v, ok := l.get(key); ok {
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("parse %s: %w", key, err)
		}
		return i, nil
	}
	return def, nil
}

// Bool parses the variable as a boolean.
func (l Lookup) Bool(key string, def bool) (bool, error) {
	if v, ok := l.get(key); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, fmt.Errorf("parse %s: %w", key, err)
		}
		return b, nil
	}
	return def, nil
}

// Duration parses the variable as a time.Duration.
func (l Lookup) Duration(key string, def time.Duration) (time.Duration, error) {
	if v, ok := l.get(key); ok {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("parse %s: %w", key, err)
		}
		return d, nil
	}
	return def, nil
}

// List splits the variable on sep, trimming entries and dropping blanks.
func (l Lookup) List(key, sep string, def []string) []string {
	v, ok := l.get(key)
	if !ok {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Map returns a Lookup over a fixed map.
func Map(m map[string]string) Lookup {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

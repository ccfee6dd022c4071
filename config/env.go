package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// env reads typed values from the environment, remembering the first value
// that fails to parse.
type env struct {
	err error
}

func (e *env) lookup(key string) (string, bool) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return "", false
	}
	return value, true
}

func (e *env) fail(key, value string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("invalid value %q for %s: %w", value, key, err)
	}
}

func (e *env) String(key, defaultValue string) string {
	if value, ok := e.lookup(key); ok {
		return value
	}
	return defaultValue
}

func (e *env) Bool(key string, defaultValue bool) bool {
	value, ok := e.lookup(key)
	if !ok {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		e.fail(key, value, err)
		return defaultValue
	}
	return b
}

func (e *env) Float(key string, defaultValue float64) float64 {
	value, ok := e.lookup(key)
	if !ok {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		e.fail(key, value, err)
		return defaultValue
	}
	return f
}

func (e *env) Duration(key string, defaultValue time.Duration) time.Duration {
	value, ok := e.lookup(key)
	if !ok {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		e.fail(key, value, err)
		return defaultValue
	}
	return d
}

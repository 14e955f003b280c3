// Package args reads typed values out of decoded tool arguments.
package args

import (
	"fmt"
	"strings"
)

// String returns args[key] trimmed, or "" when absent. A present non-string value is an error.
func String(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string", key)
	}
	return strings.TrimSpace(s), nil
}

// RequiredString is String that rejects blank values.
func RequiredString(args map[string]any, key string) (string, error) {
	s, err := String(args, key)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", fmt.Errorf("%s cannot be empty", key)
	}
	return s, nil
}

// Int returns args[key] as an int, accepting JSON numbers, or def when absent.
func Int(args map[string]any, key string, def int) (int, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	}
	return 0, fmt.Errorf("%s must be a number", key)
}

// Bool returns args[key] as a bool, or def when absent.
func Bool(args map[string]any, key string, def bool) (bool, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%s must be a boolean", key)
	}
	return b, nil
}

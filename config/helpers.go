package config

import (
	"fmt"

	bridgeerrors "github.com/cmdbridge/cmdbridge/domain/errors"
)

// Map is configuration as a key-value map, as decoded from a script table.
type Map = map[string]any

// GetString extracts a string from m, returning (value, found).
func GetString(m Map, key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetInt extracts an int from m, handling int, int64, and integral float64.
func GetInt(m Map, key string) (int, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

// GetBool extracts a bool from m, returning (value, found).
func GetBool(m Map, key string) (bool, bool) {
	v, ok := m[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// GetMap extracts a nested table from m, returning (value, found).
func GetMap(m Map, key string) (Map, bool) {
	v, ok := m[key]
	if !ok {
		return nil, false
	}
	sub, ok := v.(map[string]any)
	return sub, ok
}

// MustGetString extracts a required string from m or returns error.
func MustGetString(m Map, key string) (string, error) {
	s, ok := GetString(m, key)
	if !ok {
		return "", &bridgeerrors.ConfigError{
			Field: key,
			Err:   fmt.Errorf("required string field '%s' is missing or not a string", key),
		}
	}
	return s, nil
}

// MustGetInt extracts a required int from m or returns error.
func MustGetInt(m Map, key string) (int, error) {
	i, ok := GetInt(m, key)
	if !ok {
		return 0, &bridgeerrors.ConfigError{
			Field: key,
			Err:   fmt.Errorf("required int field '%s' is missing or not an integer", key),
		}
	}
	return i, nil
}

// MustGetMap extracts a required nested table from m or returns error.
func MustGetMap(m Map, key string) (Map, error) {
	sub, ok := GetMap(m, key)
	if !ok {
		return nil, &bridgeerrors.ConfigError{
			Field: key,
			Err:   fmt.Errorf("required table field '%s' is missing or not a table", key),
		}
	}
	return sub, nil
}

// GetStringDefault extracts a string from m or returns the default value.
func GetStringDefault(m Map, key, defaultValue string) string {
	s, ok := GetString(m, key)
	if !ok {
		return defaultValue
	}
	return s
}

// GetIntDefault extracts an int from m or returns the default value.
func GetIntDefault(m Map, key string, defaultValue int) int {
	i, ok := GetInt(m, key)
	if !ok {
		return defaultValue
	}
	return i
}

// GetBoolDefault extracts a bool from m or returns the default value.
func GetBoolDefault(m Map, key string, defaultValue bool) bool {
	b, ok := GetBool(m, key)
	if !ok {
		return defaultValue
	}
	return b
}

// Package testutil provides common test utilities and assertions for cmdbridge tests
package testutil

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bridgeerrors "github.com/cmdbridge/cmdbridge/domain/errors"
)

// AssertJSONEqual compares two JSON strings for equality, ignoring formatting
func AssertJSONEqual(t *testing.T, expected, actual string, msgAndArgs ...interface{}) {
	t.Helper()

	var expectedJSON, actualJSON interface{}
	require.NoError(t, json.Unmarshal([]byte(expected), &expectedJSON), "expected JSON is invalid")
	require.NoError(t, json.Unmarshal([]byte(actual), &actualJSON), "actual JSON is invalid")

	assert.Equal(t, expectedJSON, actualJSON, msgAndArgs...)
}

// AssertMapContains asserts that a map contains all expected key-value pairs
func AssertMapContains(t *testing.T, expectedMap, actualMap map[string]interface{}, msgAndArgs ...interface{}) {
	t.Helper()

	for key, expectedValue := range expectedMap {
		actualValue, ok := actualMap[key]
		assert.True(t, ok, "map should contain key %q", key)
		assert.Equal(t, expectedValue, actualValue, msgAndArgs...)
	}
}

// RequireExecCode asserts that err is or wraps an ExecError with the given host code
func RequireExecCode(t *testing.T, err error, code string) {
	t.Helper()

	var ee *bridgeerrors.ExecError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, code, ee.Code, "error: %v", err)
}

// RequireConfigField asserts that err is or wraps a ConfigError for field
func RequireConfigField(t *testing.T, err error, field string) *bridgeerrors.ConfigError {
	t.Helper()

	var ce *bridgeerrors.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, field, ce.Field, "error: %v", err)
	return ce
}

// AssertValueError asserts that err is or wraps a ValueError
func AssertValueError(t *testing.T, err error, msgAndArgs ...interface{}) {
	t.Helper()
	assert.True(t, bridgeerrors.IsValue(err), msgAndArgs...)
}

package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	bridgeerrors "github.com/cmdbridge/cmdbridge/domain/errors"
	"github.com/cmdbridge/cmdbridge/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaults_Valid(t *testing.T) {
	s := Defaults()
	require.NoError(t, Validate(s))
	assert.Equal(t, 20, s.Threshold)
	assert.Equal(t, "BridgeFn_", s.Prefix)
	assert.Equal(t, "_", s.Suffix)
	assert.Equal(t, " ", s.Separator)
	assert.Equal(t, "bridge", s.LuaGlobal)
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "cmdbridge.toml", `
threshold = 5
prefix = "Hook_"
extension_dir = "ext"

[log]
level = "debug"
`)
	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, s.Threshold)
	assert.Equal(t, "Hook_", s.Prefix)
	assert.Equal(t, "ext", s.ExtensionDir)
	assert.Equal(t, "debug", s.Log.Level)
	assert.Equal(t, "text", s.Log.Format, "unset keys keep their defaults")
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "cmdbridge.yml", "threshold: 0\nlog:\n  format: json\n")
	s, err := Load(path)
	require.NoError(t, err)
	assert.Zero(t, s.Threshold)
	assert.Equal(t, "json", s.Log.Format)

	empty := writeFile(t, "empty.yaml", "")
	_, err = Load(empty)
	require.NoError(t, err)
}

func TestLoad_UnknownKeys(t *testing.T) {
	_, err := Load(writeFile(t, "bad.toml", "treshold = 5\n"))
	testutil.RequireConfigField(t, err, "treshold")
	assert.ErrorIs(t, err, bridgeerrors.ErrUnknownOption)

	_, err = Load(writeFile(t, "bad.yaml", "treshold: 5\n"))
	assert.True(t, bridgeerrors.IsConfig(err))
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(writeFile(t, "cmdbridge.json", "{}"))
	assert.True(t, bridgeerrors.IsConfig(err))

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeFile(t, "invalid.toml", "prefix = \"lower_\"\n"))
	testutil.RequireConfigField(t, err, "prefix")
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("CMDBRIDGE_THRESHOLD", "3")
	t.Setenv("CMDBRIDGE_LOG_LEVEL", "warn")

	path := writeFile(t, "cmdbridge.toml", "threshold = 5\n")
	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Threshold, "the environment overrides the file")
	assert.Equal(t, "warn", s.Log.Level)

	t.Setenv("CMDBRIDGE_THRESHOLD", "many")
	_, err = Load("")
	testutil.RequireConfigField(t, err, "env")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *Settings)
		field  string
	}{
		{name: "negative threshold", mutate: func(s *Settings) { s.Threshold = -1 }, field: "threshold"},
		{name: "lower-case prefix", mutate: func(s *Settings) { s.Prefix = "bridge_" }, field: "prefix"},
		{name: "empty prefix", mutate: func(s *Settings) { s.Prefix = "" }, field: "prefix"},
		{name: "suffix punctuation", mutate: func(s *Settings) { s.Suffix = "-" }, field: "suffix"},
		{name: "empty separator", mutate: func(s *Settings) { s.Separator = "" }, field: "separator"},
		{name: "lua global", mutate: func(s *Settings) { s.LuaGlobal = "a.b" }, field: "lua_global"},
		{name: "log level", mutate: func(s *Settings) { s.Log.Level = "trace" }, field: "log.level"},
		{name: "log format", mutate: func(s *Settings) { s.Log.Format = "xml" }, field: "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Defaults()
			tt.mutate(s)
			testutil.RequireConfigField(t, Validate(s), tt.field)
		})
	}

	s := Defaults()
	s.Suffix = ""
	assert.NoError(t, Validate(s), "an empty suffix is allowed")
}

func TestFromMap(t *testing.T) {
	s := Defaults()
	err := FromMap(s, Map{
		"threshold": float64(7),
		"separator": ",",
		"log":       map[string]any{"level": "error"},
	})
	require.NoError(t, err)
	assert.Equal(t, 7, s.Threshold)
	assert.Equal(t, ",", s.Separator)
	assert.Equal(t, "error", s.Log.Level)
}

func TestFromMap_Errors(t *testing.T) {
	tests := []struct {
		name  string
		m     Map
		field string
	}{
		{name: "unknown key", m: Map{"treshold": 1}, field: "treshold"},
		{name: "unknown log key", m: Map{"log": map[string]any{"lvl": "x"}}, field: "log.lvl"},
		{name: "wrong type", m: Map{"threshold": "5"}, field: "threshold"},
		{name: "fractional int", m: Map{"threshold": 1.5}, field: "threshold"},
		{name: "log not a table", m: Map{"log": "debug"}, field: "log"},
		{name: "invalid value", m: Map{"prefix": "x"}, field: "prefix"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Defaults()
			testutil.RequireConfigField(t, FromMap(s, tt.m), tt.field)
			assert.Equal(t, Defaults(), s, "a failed overlay leaves settings unchanged")
		})
	}
}

func TestSchema(t *testing.T) {
	data, err := Schema()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	testutil.AssertMapContains(t, map[string]any{
		"title": "cmdbridge settings",
		"type":  "object",
	}, doc)

	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "threshold")
	assert.Contains(t, props, "lua_global")
	assert.Contains(t, props, "log")
}

func TestHelpers(t *testing.T) {
	m := Map{"s": "x", "i": int64(3), "f": 2.0, "b": true, "t": map[string]any{}}

	v, ok := GetString(m, "s")
	assert.True(t, ok)
	assert.Equal(t, "x", v)

	i, ok := GetInt(m, "i")
	assert.True(t, ok)
	assert.Equal(t, 3, i)
	i, ok = GetInt(m, "f")
	assert.True(t, ok)
	assert.Equal(t, 2, i)

	assert.True(t, GetBoolDefault(m, "b", false))
	assert.Equal(t, "d", GetStringDefault(m, "missing", "d"))
	assert.Equal(t, 9, GetIntDefault(m, "s", 9))

	_, err := MustGetString(m, "i")
	testutil.RequireConfigField(t, err, "i")
	_, err = MustGetMap(m, "t")
	assert.NoError(t, err)
}

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_UnknownKey_TopLevel(t *testing.T) {
	path := writeTestConfig(t, `
unknown_section = "value"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
}

func TestLoad_UnknownKey_Typo(t *testing.T) {
	path := writeTestConfig(t, "client_di = \"abc\"\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
	assert.Contains(t, err.Error(), `did you mean "client_id"`)
}

func TestLoad_UnknownKey_KnownKeyInsideTable(t *testing.T) {
	path := writeTestConfig(t, `
[download]
output_dir = "/tmp/x"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "top-level key")
	assert.Contains(t, err.Error(), "[download]")
}

func TestLoad_UnknownKey_NoSuggestion(t *testing.T) {
	path := writeTestConfig(t, `
completely_unrelated_key = true
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
	assert.NotContains(t, err.Error(), "did you mean")
}

func TestLoad_UnknownKey_ReportsAll(t *testing.T) {
	path := writeTestConfig(t, "page_sise = 10\nlog_levl = \"debug\"\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page_size")
	assert.Contains(t, err.Error(), "log_level")
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b     string
		expected int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"abc", "abc", 0},
		{"abc", "abd", 1},
		{"client_di", "client_id", 2},
		{"output_dirs", "output_dir", 1},
		{"kitten", "sitting", 3},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, levenshtein(tt.a, tt.b), "%q vs %q", tt.a, tt.b)
	}
}

func TestClosestMatch(t *testing.T) {
	assert.Equal(t, "page_size", closestMatch("pagesize", knownKeyList))
	assert.Empty(t, closestMatch("zzzzzzzzzzzz", knownKeyList))
}

func TestKnownKeys_CoverEveryConfigField(t *testing.T) {
	for _, key := range []string{"client_id", "page_size", "output_dir", "log_format", "user_agent", "history_db"} {
		assert.True(t, knownKeys[key], key)
	}

	assert.Len(t, knownKeys, 22)
	assert.IsNonDecreasing(t, knownKeyList)
}

package mirror

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"Drawings", "Drawings"},
		{"a/b", "a_b"},
		{`a\b`, "a_b"},
		{"nul\x00byte", "nul_byte"},
		{"", "_"},
		{".", "_"},
		{"..", "_"},
		{"  spaced  ", "spaced"},
		{"...", "..."},
		{"café", "café"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeName(tt.in), "input %q", tt.in)
	}
}

func TestLatestVersion(t *testing.T) {
	t.Parallel()

	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	feb := jan.AddDate(0, 1, 0)

	t.Run("latest timestamp wins", func(t *testing.T) {
		t.Parallel()

		v, ok := LatestVersion([]Version{
			{ID: 9, CreatedAt: jan, URL: "u9"},
			{ID: 1, CreatedAt: feb, URL: "u1"},
		})
		assert.True(t, ok)
		assert.Equal(t, int64(1), v.ID)
	})

	t.Run("tie broken by highest id", func(t *testing.T) {
		t.Parallel()

		v, ok := LatestVersion([]Version{
			{ID: 3, CreatedAt: jan, URL: "u3"},
			{ID: 5, CreatedAt: jan, URL: "u5"},
			{ID: 4, CreatedAt: jan, URL: "u4"},
		})
		assert.True(t, ok)
		assert.Equal(t, int64(5), v.ID)
	})

	t.Run("zero timestamp ranks oldest", func(t *testing.T) {
		t.Parallel()

		v, ok := LatestVersion([]Version{
			{ID: 99, URL: "u99"},
			{ID: 1, CreatedAt: jan, URL: "u1"},
		})
		assert.True(t, ok)
		assert.Equal(t, int64(1), v.ID)
	})

	t.Run("versions without url ignored", func(t *testing.T) {
		t.Parallel()

		v, ok := LatestVersion([]Version{
			{ID: 2, CreatedAt: feb},
			{ID: 1, CreatedAt: jan, URL: "u1"},
		})
		assert.True(t, ok)
		assert.Equal(t, int64(1), v.ID)
	})

	t.Run("none usable", func(t *testing.T) {
		t.Parallel()

		_, ok := LatestVersion(nil)
		assert.False(t, ok)
	})
}

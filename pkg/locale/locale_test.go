package locale

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()

	en := c.For(English)
	assert.Equal(t, []string{"Sensing your energy...", "Consulting the ancient scrolls...", "Finding the path to stillness..."}, en.Analyzing)
	assert.Equal(t, "The connection to the ether is weak...", en.ErrorGeneric)
	assert.Equal(t, "Unknown Realm", en.Fallback.Realm)

	vi := c.For("vi-VN")
	assert.Equal(t, "Kết nối tâm linh đang yếu...", vi.ErrorGeneric)
	assert.Len(t, vi.Analyzing, 3)
}

func TestUnknownLanguageUsesDefault(t *testing.T) {
	c := Default()

	assert.False(t, c.Supports("fr"))
	assert.Equal(t, c.For(English), c.For("fr"))
}

func TestParseRejectsMissingDefault(t *testing.T) {
	_, err := Parse([]byte("vi:\n  analyzing: [\"a\"]\n"), English)
	require.Error(t, err)

	_, err = Parse([]byte("en:\n  error_generic: x\n"), English)
	require.Error(t, err)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"EN", "en"},
		{" vi_VN ", "vi"},
		{"en-US", "en"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), tt.in)
	}
}

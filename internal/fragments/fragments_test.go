package fragments

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk(t *testing.T) {
	tests := []struct {
		name string
		text string
		size int
		want []string
	}{
		{"empty", "", 4, nil},
		{"shorter than size", "abc", 4, []string{"abc"}},
		{"exact multiple", "abcdefgh", 4, []string{"abcd", "efgh"}},
		{"remainder", "abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
		{"multibyte", "héllo wörld", 5, []string{"héllo", " wörl", "d"}},
		{"zero size uses default", "abc", 0, []string{"abc"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Chunk(tt.text, tt.size))
		})
	}
}

func TestChunk_Reassembles(t *testing.T) {
	text := strings.Repeat("日本語のテキスト ", 300)

	chunks := Chunk(text, DefaultSize)
	assert.Equal(t, text, strings.Join(chunks, ""))
	for i, c := range chunks {
		assert.True(t, utf8.ValidString(c))
		if i < len(chunks)-1 {
			assert.Equal(t, DefaultSize, utf8.RuneCountInString(c))
		}
	}
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(a, []byte("0123456789"), 0o600))
	require.NoError(t, os.WriteFile(b, []byte("xyz"), 0o600))

	got, err := LoadFiles([]string{a, b}, 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"0123", "4567", "89", "xyz"}, got)
}

func TestLoadFiles_NoPaths(t *testing.T) {
	got, err := LoadFiles(nil, DefaultSize)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLoadFiles_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFiles([]string{filepath.Join(dir, "missing.txt")}, 10)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadFiles([]string{dir}, 10)
	assert.ErrorContains(t, err, "is a directory")

	bin := filepath.Join(dir, "bin")
	require.NoError(t, os.WriteFile(bin, []byte{0xff, 0xfe, 0xfd}, 0o600))
	_, err = LoadFiles([]string{bin}, 10)
	assert.ErrorIs(t, err, ErrInvalidUTF8)
}

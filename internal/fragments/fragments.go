// Package fragments turns context files into fixed-size document fragments
// that the backend prepends to every prompt.
package fragments

import (
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"
)

// DefaultSize is the fragment length in characters.
const DefaultSize = 1000

// maxFileSize bounds a single context file.
const maxFileSize = 8 << 20

// ErrInvalidUTF8 is returned for context files that are not UTF-8 text.
var ErrInvalidUTF8 = errors.New("context file is not valid UTF-8")

// Chunk splits text into consecutive pieces of at most size characters.
// Splits fall on rune boundaries. Empty text yields no fragments.
func Chunk(text string, size int) []string {
	if size <= 0 {
		size = DefaultSize
	}
	if text == "" {
		return nil
	}

	out := make([]string, 0, utf8.RuneCountInString(text)/size+1)
	start, n := 0, 0
	for i := range text {
		if n == size {
			out = append(out, text[start:i])
			start, n = i, 0
		}
		n++
	}
	return append(out, text[start:])
}

// LoadFiles reads paths in order and returns their fragments in file order.
func LoadFiles(paths []string, size int) ([]string, error) {
	var out []string
	for _, path := range paths {
		text, err := readFile(path)
		if err != nil {
			return nil, err
		}
		out = append(out, Chunk(text, size)...)
	}
	return out, nil
}

func readFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open context file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat context file: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("context file %s is a directory", path)
	}
	if info.Size() > maxFileSize {
		return "", fmt.Errorf("context file %s too large: %d bytes (max %d)", path, info.Size(), maxFileSize)
	}

	data, err := io.ReadAll(io.LimitReader(f, maxFileSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read context file: %w", err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %s", ErrInvalidUTF8, path)
	}
	return string(data), nil
}

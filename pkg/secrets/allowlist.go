package secrets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"

	"github.com/BurntSushi/toml"
)

// Allowlist excludes matches from secret detection.
type Allowlist struct {
	// Regexes are content patterns whose matches are never redacted.
	Regexes []string `toml:"regexes"`
	// StopWords suppress any finding whose secret contains one of them.
	StopWords []string `toml:"stopwords"`
}

// LoadAllowlist reads an allowlist TOML file:
//
//	[allowlist]
//	regexes = ['DEMO_[A-Z_]+']
//	stopwords = ["example"]
//
// An empty path yields an empty allowlist. A configured path that does not
// exist is an error.
func LoadAllowlist(path string) (*Allowlist, error) {
	if path == "" {
		return &Allowlist{}, nil
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrAllowlistNotFound, path)
		}
		return nil, err
	}

	var file struct {
		Allowlist Allowlist `toml:"allowlist"`
	}
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTOML, path, err)
	}

	// Fail fast so applyAllowlist never sees a bad pattern.
	for _, pattern := range file.Allowlist.Regexes {
		if _, err := regexp.Compile(pattern); err != nil {
			return nil, fmt.Errorf("%w: invalid content pattern '%s' in %s: %v",
				ErrInvalidRegex, pattern, path, err)
		}
	}

	return &file.Allowlist, nil
}

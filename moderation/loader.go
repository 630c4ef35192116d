package moderation

import (
	"bufio"
	"bytes"
	"embed"
	"io/fs"
	"strings"
)

//go:embed censored/*
var censoredFS embed.FS

// LoadWords reads the embedded blacklist dictionaries. Each .txt file under
// censored/ is one language, one word per line; blank lines and #-comments
// are skipped. Words are deduplicated across languages.
func LoadWords() ([]string, error) {
	entries, err := fs.ReadDir(censoredFS, "censored")
	if err != nil {
		return nil, err
	}

	unique := make(map[string]struct{})
	var words []string

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		data, err := censoredFS.ReadFile("censored/" + entry.Name())
		if err != nil {
			return nil, err
		}

		// A scanner handles both \n and \r\n line endings.
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			word := strings.TrimSpace(scanner.Text())
			if word == "" || strings.HasPrefix(word, "#") {
				continue
			}
			if _, seen := unique[strings.ToLower(word)]; seen {
				continue
			}
			unique[strings.ToLower(word)] = struct{}{}
			words = append(words, word)
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
	}
	return words, nil
}

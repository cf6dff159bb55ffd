// Package lang loads localized message templates from JSON files, one file
// per language code. Callers treat templates as opaque: a key plus named
// placeholders in, formatted text out.
package lang

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

type Store struct {
	languages   map[string]map[string]string
	defaultLang string
	logger      *slog.Logger
}

// Load reads every *.json file in dir. A missing or empty dir is not fatal:
// lookups then echo the key back, which keeps the bot functional.
func Load(dir, defaultLang string, logger *slog.Logger) *Store {
	s := &Store{
		languages:   make(map[string]map[string]string),
		defaultLang: defaultLang,
		logger:      logger,
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Warn("Language directory not readable", "dir", dir, "error", err)
		return s
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		code := strings.TrimSuffix(name, ".json")
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn("Failed to read language file", "file", name, "error", err)
			continue
		}
		var strs map[string]string
		if err := json.Unmarshal(data, &strs); err != nil {
			logger.Warn("Failed to parse language file", "file", name, "error", err)
			continue
		}
		s.languages[code] = strs
	}
	logger.Info("Loaded language files", "count", len(s.languages), "dir", dir)
	return s
}

// Get resolves key in the given language, falling back to the default
// language and finally to the key itself. Placeholders look like {name}.
func (s *Store) Get(key, langCode string, args map[string]string) string {
	strs, ok := s.languages[langCode]
	if !ok {
		strs = s.languages[s.defaultLang]
	}
	text, ok := strs[key]
	if !ok {
		if fallback, ok := s.languages[s.defaultLang][key]; ok {
			text = fallback
		} else {
			return key
		}
	}
	for name, val := range args {
		text = strings.ReplaceAll(text, fmt.Sprintf("{%s}", name), val)
	}
	return text
}

// Has reports whether a language code is loaded.
func (s *Store) Has(langCode string) bool {
	_, ok := s.languages[langCode]
	return ok
}

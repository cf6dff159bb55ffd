// Package slang holds the word list for the slang filter and matches
// message text against it.
package slang

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

type List struct {
	words []string
}

// LoadFile reads one word or phrase per line. Blank lines and lines
// starting with # are skipped; matching is case-insensitive.
func LoadFile(path string) (*List, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("os.Open: %w", err)
	}
	defer f.Close()

	seen := make(map[string]bool)
	var words []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		word := strings.TrimSpace(scanner.Text())
		if word == "" || strings.HasPrefix(word, "#") {
			continue
		}
		word = strings.ToLower(word)
		if seen[word] {
			continue
		}
		seen[word] = true
		words = append(words, word)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanner.Err: %w", err)
	}
	return &List{words: words}, nil
}

// NewList builds a list from in-memory words, normalizing the same way
// LoadFile does.
func NewList(words []string) *List {
	seen := make(map[string]bool)
	var normalized []string
	for _, word := range words {
		word = strings.ToLower(strings.TrimSpace(word))
		if word == "" || seen[word] {
			continue
		}
		seen[word] = true
		normalized = append(normalized, word)
	}
	return &List{words: normalized}
}

// Match returns every listed word found in text, in list order.
func (l *List) Match(text string) []string {
	if len(l.words) == 0 {
		return nil
	}
	lowered := strings.ToLower(text)
	var found []string
	for _, word := range l.words {
		if strings.Contains(lowered, word) {
			found = append(found, word)
		}
	}
	return found
}

// Len is the number of distinct words loaded.
func (l *List) Len() int {
	return len(l.words)
}

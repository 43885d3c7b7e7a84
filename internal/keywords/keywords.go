// Package keywords loads the category → trigger keyword table used by the
// categorization engine.
//
// The table file may be JSON or YAML. It is parsed through yaml.v3's node API
// so categories keep the order they were written in; that order is part of the
// engine's tie-break rule.
package keywords

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Table is an immutable, ordered mapping from category name to keywords.
// The zero value is an empty table.
type Table struct {
	categories []string
	keywords   map[string][]string
}

// Entry is one category with its keywords, used to build a Table in code.
type Entry struct {
	Category string
	Keywords []string
}

// New builds a table from entries. Repeated categories are merged and
// repeated keywords within a category are kept once, compared without case.
// Blank keywords and blank category names are dropped.
func New(entries ...Entry) Table {
	t := Table{keywords: make(map[string][]string)}
	for _, e := range entries {
		t.add(e.Category, e.Keywords)
	}
	return t
}

func (t *Table) add(category string, kws []string) {
	category = strings.TrimSpace(category)
	if category == "" {
		return
	}
	if _, ok := t.keywords[category]; !ok {
		t.categories = append(t.categories, category)
		t.keywords[category] = nil
	}
	seen := make(map[string]bool, len(t.keywords[category])+len(kws))
	for _, kw := range t.keywords[category] {
		seen[strings.ToLower(kw)] = true
	}
	for _, kw := range kws {
		if strings.TrimSpace(kw) == "" {
			continue
		}
		// Matching is case-insensitive, so "Invoice" and "invoice" are one keyword.
		k := strings.ToLower(kw)
		if seen[k] {
			continue
		}
		seen[k] = true
		t.keywords[category] = append(t.keywords[category], kw)
	}
}

// Len returns the number of categories in the table.
func (t Table) Len() int {
	return len(t.categories)
}

// Categories returns the category names in file order.
func (t Table) Categories() []string {
	out := make([]string, len(t.categories))
	copy(out, t.categories)
	return out
}

// Keywords returns a copy of the keywords for category.
func (t Table) Keywords(category string) []string {
	kws := t.keywords[category]
	out := make([]string, len(kws))
	copy(out, kws)
	return out
}

// Each calls fn for every category in order. fn must not modify keywords.
func (t Table) Each(fn func(category string, keywords []string)) {
	for _, c := range t.categories {
		fn(c, t.keywords[c])
	}
}

// Parse decodes a JSON or YAML document of the form
// {"Category": ["kw1", "kw2"], ...}.
func Parse(data []byte) (Table, error) {
	t := New()

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Table{}, fmt.Errorf("parse keyword table: %w", err)
	}
	if len(doc.Content) == 0 {
		return t, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return Table{}, fmt.Errorf("keyword table: expected a mapping at line %d", root.Line)
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		var kws []string
		switch val.Kind {
		case yaml.SequenceNode:
			if err := val.Decode(&kws); err != nil {
				return Table{}, fmt.Errorf("keyword table: category %q: %w", key.Value, err)
			}
		case yaml.ScalarNode:
			// A lone string is accepted as a one-keyword list.
			if val.Tag != "!!null" {
				kws = []string{val.Value}
			}
		default:
			return Table{}, fmt.Errorf("keyword table: category %q: expected a list at line %d", key.Value, val.Line)
		}
		t.add(key.Value, kws)
	}
	return t, nil
}

// Load reads the table at path. It never fails: a missing, unreadable or
// malformed file yields an empty table and a warning, which leaves the engine
// with label and read/importance signals only.
func Load(path string, log zerolog.Logger) Table {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Warn().Str("path", path).Msg("keyword file not found, using empty keyword table")
		} else {
			log.Warn().Err(err).Str("path", path).Msg("keyword file unreadable, using empty keyword table")
		}
		return New()
	}

	t, err := Parse(data)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("keyword file invalid, using empty keyword table")
		return New()
	}

	log.Debug().Str("path", path).Int("categories", t.Len()).Msg("loaded keyword table")
	return t
}

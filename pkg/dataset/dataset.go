// Package dataset finds per-subject connectome files and organises raw
// subject folders into them.
package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// DefaultPattern matches <SUBJECT>_<METHOD>.csv for the two tractography
// methods, case-insensitively.
const DefaultPattern = `(?i)^(INsIDER_[^_]+)_(ACT|TREKKER)\.csv$`

// Groups inferred from subject codes.
const (
	Control = "control"
	Patient = "patient"
)

// Entry is one connectome file.
type Entry struct {
	Subject string `json:"subject"`
	Method  string `json:"method"`
	Group   string `json:"group"`
	File    string `json:"file"`
	Path    string `json:"path"`
}

// InferGroup reads the group from the first character after the first
// underscore of a subject code: C is control, P is patient. Anything else
// has no group.
func InferGroup(subject string) string {
	_, after, ok := strings.Cut(subject, "_")
	if !ok || after == "" {
		return ""
	}
	switch after[0] {
	case 'C', 'c':
		return Control
	case 'P', 'p':
		return Patient
	}
	return ""
}

// Compile builds the discovery regex. The pattern must capture the subject
// and the method.
func Compile(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid file pattern %q: %w", pattern, err)
	}
	if re.NumSubexp() < 2 {
		return nil, fmt.Errorf("file pattern %q must capture subject and method", pattern)
	}
	return re, nil
}

// Discover lists the regular files of dir whose names match re, sorted by
// name. The method is upper-cased.
func Discover(dir string, re *regexp.Regexp) ([]Entry, error) {
	items, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	names := make([]string, 0, len(items))
	for _, it := range items {
		if it.IsDir() {
			continue
		}
		names = append(names, it.Name())
	}
	sort.Strings(names)

	var entries []Entry
	for _, name := range names {
		m := re.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		entries = append(entries, Entry{
			Subject: m[1],
			Method:  strings.ToUpper(m[2]),
			Group:   InferGroup(m[1]),
			File:    name,
			Path:    filepath.Join(dir, name),
		})
	}
	return entries, nil
}

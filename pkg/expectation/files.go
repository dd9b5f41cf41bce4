package expectation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ExpandFiles resolves a file name or a glob pattern to the files it names.
// Patterns may use ** to match across directories. A plain name is returned
// as is so a missing file is reported when it is read.
func ExpandFiles(pattern string) ([]string, error) {
	if !strings.ContainsAny(pattern, "*?[{") {
		return []string{pattern}, nil
	}
	matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("expanding glob pattern %q: %w", pattern, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no files match %q", pattern)
	}
	sort.Strings(matches)
	return matches, nil
}

// LoadFiles loads every file pattern names, in lexical order.
func LoadFiles(pattern string) ([]*Expectation, error) {
	files, err := ExpandFiles(pattern)
	if err != nil {
		return nil, err
	}
	var all []*Expectation
	for _, file := range files {
		exps, err := LoadFile(file)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		all = append(all, exps...)
	}
	return all, nil
}

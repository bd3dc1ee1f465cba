// Package ignore implements the builder's path-skip rules: hidden files,
// the fixed skip-list (.git, node_modules, target, __pycache__, venvs),
// user-supplied ignored_paths, and .gitignore / global gitignore /
// .git/info/exclude patterns, all compiled through the same glob engine
// the query planner's path: filter uses.
package ignore

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

var fixedSkipDirs = map[string]bool{
	".git":          true,
	"node_modules":  true,
	"target":        true,
	"__pycache__":   true,
	".venv":         true,
	"venv":          true,
	".tox":          true,
	".mypy_cache":   true,
	".pytest_cache": true,
}

// Pattern is one compiled gitignore-style rule.
type Pattern struct {
	glob   string
	negate bool
	dirOnly bool
}

// Matcher decides whether a relative path should be skipped during a
// build walk.
type Matcher struct {
	patterns     []Pattern
	userIgnored  []string
}

// New builds a Matcher from the explicit ignored_paths list plus whatever
// .gitignore-style files exist: the root ".gitignore", the root
// ".git/info/exclude", and $HOME/.config/fxs/ignore as the "global
// gitignore". .gitignore files in subdirectories are not read.
func New(root string, userIgnored []string) (*Matcher, error) {
	m := &Matcher{userIgnored: userIgnored}

	if err := m.loadFile(filepath.Join(root, ".gitignore")); err != nil {
		return nil, err
	}
	if err := m.loadFile(filepath.Join(root, ".git", "info", "exclude")); err != nil {
		return nil, err
	}
	if home, err := os.UserHomeDir(); err == nil {
		_ = m.loadFile(filepath.Join(home, ".config", "fxs", "ignore"))
	}
	return m, nil
}

func (m *Matcher) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		p := Pattern{}
		if strings.HasPrefix(line, "!") {
			p.negate = true
			line = line[1:]
		}
		if strings.HasSuffix(line, "/") {
			p.dirOnly = true
			line = strings.TrimSuffix(line, "/")
		}
		if !strings.Contains(line, "/") {
			line = "**/" + line
		} else if strings.HasPrefix(line, "/") {
			line = strings.TrimPrefix(line, "/")
		}
		if !strings.Contains(line, "*") {
			line = line + "{,/**}"
		} else {
			line = line + "{,/**}"
		}
		p.glob = line
		m.patterns = append(m.patterns, p)
	}
	return scanner.Err()
}

// SkipDir reports whether a directory entry (by base name) should never be
// descended into, independent of gitignore rules.
func SkipDir(base string) bool {
	if base != "." && strings.HasPrefix(base, ".") {
		return true
	}
	return fixedSkipDirs[base]
}

// Match reports whether relPath (slash-separated, relative to the index
// root) should be excluded from the build. Hidden entries (base name
// starting with '.') are always excluded.
func (m *Matcher) Match(relPath string) bool {
	if strings.HasPrefix(filepath.Base(relPath), ".") {
		return true
	}
	relPath = filepath.ToSlash(relPath)
	for _, pat := range m.userIgnored {
		if ok, _ := doublestar.Match(filepath.ToSlash(pat), relPath); ok {
			return true
		}
	}
	matched := false
	for _, p := range m.patterns {
		ok, err := doublestar.Match(p.glob, relPath)
		if err != nil || !ok {
			continue
		}
		matched = !p.negate
	}
	return matched
}

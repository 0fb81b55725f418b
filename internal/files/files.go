package files

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// Expander turns user-supplied paths and globs into the set of files to index.
type Expander struct {
	root    string
	force   bool
	matcher *ignore.GitIgnore
}

// NewExpander builds an expander rooted at projectRoot. The root's
// .gitignore and the exclude patterns (gitignore syntax) filter results
// unless force is set.
func NewExpander(projectRoot string, exclude []string, force bool) (*Expander, error) {
	root, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}

	lines := append([]string(nil), exclude...)
	data, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	switch {
	case err == nil:
		lines = append(lines, strings.Split(string(data), "\n")...)
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("failed to read .gitignore: %w", err)
	}

	return &Expander{
		root:    root,
		force:   force,
		matcher: ignore.CompileIgnoreLines(lines...),
	}, nil
}

// Root returns the absolute project root.
func (e *Expander) Root() string {
	return e.root
}

// Expand resolves paths relative to the project root. Files are taken as
// is, glob patterns are expanded, and directories are walked only when
// recursive is set. Paths that do not exist are skipped. The result is
// absolute, sorted and free of duplicates.
func (e *Expander) Expand(paths []string, recursive bool) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	add := func(p string) {
		if !seen[p] && !e.Ignored(p) {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, p := range paths {
		if !filepath.IsAbs(p) {
			p = filepath.Join(e.root, p)
		}
		p = filepath.Clean(p)

		if hasMeta(p) {
			matches, err := e.glob(p, recursive)
			if err != nil {
				return nil, err
			}
			for _, m := range matches {
				if err := e.expandPath(m, recursive, add); err != nil {
					return nil, err
				}
			}
			continue
		}

		if err := e.expandPath(p, recursive, add); err != nil {
			return nil, err
		}
	}

	sort.Strings(out)
	return out, nil
}

func (e *Expander) expandPath(p string, recursive bool, add func(string)) error {
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to stat %s: %w", p, err)
	}
	switch {
	case info.Mode().IsRegular():
		add(p)
	case info.IsDir() && recursive:
		return e.walk(p, func(path string) { add(path) })
	}
	return nil
}

// walk visits regular files under dir, skipping hidden and ignored
// directories.
func (e *Expander) walk(dir string, visit func(string)) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && (isHidden(d.Name()) || e.Ignored(path)) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			visit(path)
		}
		return nil
	})
}

// glob expands pattern. A "**" segment matches any number of directories
// and needs recursive.
func (e *Expander) glob(pattern string, recursive bool) ([]string, error) {
	idx := strings.Index(pattern, "**")
	if idx < 0 {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		return matches, nil
	}
	if !recursive {
		return nil, nil
	}

	base := filepath.Clean(pattern[:idx])
	rest := strings.TrimLeft(pattern[idx+2:], string(filepath.Separator))
	if rest == "" {
		rest = "*"
	}
	if _, err := filepath.Match(rest, ""); err != nil {
		return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
	}

	var matches []string
	if _, err := os.Stat(base); err != nil {
		return nil, nil
	}
	err := e.walk(base, func(path string) {
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return
		}
		if matchTail(rest, rel) {
			matches = append(matches, path)
		}
	})
	return matches, err
}

// matchTail matches pattern against the last segments of rel.
func matchTail(pattern, rel string) bool {
	want := strings.Count(pattern, string(filepath.Separator)) + 1
	parts := strings.Split(rel, string(filepath.Separator))
	if len(parts) < want {
		return false
	}
	tail := filepath.Join(parts[len(parts)-want:]...)
	ok, _ := filepath.Match(pattern, tail)
	return ok
}

// Ignored reports whether p is filtered by .gitignore or the exclude list.
// Paths outside the project root are never ignored.
func (e *Expander) Ignored(p string) bool {
	if e.force || e.matcher == nil {
		return false
	}
	rel, err := filepath.Rel(e.root, p)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return false
	}
	return e.matcher.MatchesPath(filepath.ToSlash(rel))
}

func hasMeta(p string) bool {
	return strings.ContainsAny(p, "*?[")
}

func isHidden(name string) bool {
	return len(name) > 1 && strings.HasPrefix(name, ".")
}

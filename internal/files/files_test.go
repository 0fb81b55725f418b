package files

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func rels(t *testing.T, root string, paths []string) []string {
	t.Helper()
	out := make([]string, len(paths))
	for i, p := range paths {
		r, err := filepath.Rel(root, p)
		require.NoError(t, err)
		out[i] = filepath.ToSlash(r)
	}
	return out
}

func setupProject(t *testing.T) string {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"main.go":            "package main",
		"README.md":          "# readme",
		"pkg/a.go":           "package pkg",
		"pkg/a_test.go":      "package pkg",
		"pkg/sub/b.go":       "package sub",
		"build/out.bin":      "binary",
		".git/config":        "[core]",
		".hidden/secret.txt": "s",
		"notes.log":          "log",
		".gitignore":         "build/\n*.log\n",
	})
	return root
}

func TestExpand_FilesAndDirs(t *testing.T) {
	root := setupProject(t)
	exp, err := NewExpander(root, nil, false)
	require.NoError(t, err)
	assert.Equal(t, root, exp.Root())

	got, err := exp.Expand([]string{"main.go", "pkg"}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"main.go"}, rels(t, root, got))

	got, err = exp.Expand([]string{"main.go", "pkg", "main.go"}, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"main.go", "pkg/a.go", "pkg/a_test.go", "pkg/sub/b.go"}, rels(t, root, got))
}

func TestExpand_RecursiveRootSkipsHiddenAndIgnored(t *testing.T) {
	root := setupProject(t)
	exp, err := NewExpander(root, nil, false)
	require.NoError(t, err)

	got, err := exp.Expand([]string{"."}, true)
	require.NoError(t, err)
	assert.Equal(t, []string{
		".gitignore", "README.md", "main.go", "pkg/a.go", "pkg/a_test.go", "pkg/sub/b.go",
	}, rels(t, root, got))
}

func TestExpand_Globs(t *testing.T) {
	root := setupProject(t)
	exp, err := NewExpander(root, nil, false)
	require.NoError(t, err)

	got, err := exp.Expand([]string{"pkg/*.go"}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"pkg/a.go", "pkg/a_test.go"}, rels(t, root, got))

	got, err = exp.Expand([]string{"**/*.go"}, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"main.go", "pkg/a.go", "pkg/a_test.go", "pkg/sub/b.go"}, rels(t, root, got))

	got, err = exp.Expand([]string{"**/*.go"}, false)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = exp.Expand([]string{"pkg/[.go"}, false)
	assert.Error(t, err)
}

func TestExpand_ExcludeAndForce(t *testing.T) {
	root := setupProject(t)
	exp, err := NewExpander(root, []string{"*_test.go"}, false)
	require.NoError(t, err)

	got, err := exp.Expand([]string{"pkg", "notes.log"}, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"pkg/a.go", "pkg/sub/b.go"}, rels(t, root, got))

	forced, err := NewExpander(root, []string{"*_test.go"}, true)
	require.NoError(t, err)
	got, err = forced.Expand([]string{"pkg/a_test.go", "notes.log", "build"}, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"build/out.bin", "notes.log", "pkg/a_test.go"}, rels(t, root, got))
}

func TestExpand_MissingAndOutsideRoot(t *testing.T) {
	root := setupProject(t)
	outside := t.TempDir()
	writeTree(t, outside, map[string]string{"x.log": "x"})

	exp, err := NewExpander(root, nil, false)
	require.NoError(t, err)

	got, err := exp.Expand([]string{"does-not-exist.go", filepath.Join(outside, "x.log")}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(outside, "x.log")}, got)
}

func TestIgnored(t *testing.T) {
	root := setupProject(t)
	exp, err := NewExpander(root, nil, false)
	require.NoError(t, err)

	assert.True(t, exp.Ignored(filepath.Join(root, "build", "out.bin")))
	assert.True(t, exp.Ignored(filepath.Join(root, "notes.log")))
	assert.False(t, exp.Ignored(filepath.Join(root, "main.go")))
	assert.False(t, exp.Ignored(root))
}

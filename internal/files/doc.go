// Package files expands user-supplied paths into the files a sync run
// indexes.
//
//	exp, err := files.NewExpander(root, cfg.Exclude, force)
//	paths, err := exp.Expand([]string{"src", "*.md"}, true)
//
// Hidden directories such as .git are never descended into.
package files

// Package report renders command output. Human mode styles text with
// lipgloss; pipe mode emits one JSON document per call, e.g.
//
//	{"add":3,"update":1,"removed":0}
package report

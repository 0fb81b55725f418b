package types

// SyncStats counts the outcome of one sync run. The JSON field names are
// the structured output format.
type SyncStats struct {
	Added   int `json:"add"`
	Updated int `json:"update"`
	Removed int `json:"removed"`
}

// Total returns the number of files touched.
func (s SyncStats) Total() int {
	return s.Added + s.Updated + s.Removed
}

// QueryResult is one file returned by a query, ranked by its best chunk.
type QueryResult struct {
	Path     string  `json:"path"`
	Distance float64 `json:"distance"`
	Document string  `json:"document,omitempty"`
}

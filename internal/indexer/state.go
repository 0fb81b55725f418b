package indexer

// State is the stage a sync run is in.
type State int32

const (
	StateIdle State = iota
	StateEnumerating
	StateDiffing
	StateProcessingFiles
	StatePruningOrphans
	StateReporting
	StateDone
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEnumerating:
		return "enumerating"
	case StateDiffing:
		return "diffing"
	case StateProcessingFiles:
		return "processing_files"
	case StatePruningOrphans:
		return "pruning_orphans"
	case StateReporting:
		return "reporting"
	case StateDone:
		return "done"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Mode selects which files a run processes.
type Mode int

const (
	// ModeVectorise indexes the supplied paths, creating the collection if
	// needed.
	ModeVectorise Mode = iota
	// ModeUpdate re-indexes every stored file that still exists, plus any
	// supplied paths. The collection must already exist.
	ModeUpdate
)

func (m Mode) String() string {
	if m == ModeUpdate {
		return "update"
	}
	return "vectorise"
}

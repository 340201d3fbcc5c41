package tasks

// Phase identifies where in a migration a progress update was emitted.
type Phase string

const (
	PhaseSearching Phase = "searching"
	PhaseCreating  Phase = "creating"
	PhaseAdding    Phase = "adding"
	PhaseMerging   Phase = "merging"
	PhaseDone      Phase = "done"
)

// ProgressUpdate is a point-in-time snapshot of a running migration.
type ProgressUpdate struct {
	Phase     Phase  `json:"phase"`
	Current   int    `json:"current"`
	Total     int    `json:"total"`
	TrackName string `json:"track_name,omitempty"`
}

// sendProgress emits an update without blocking. A slow or absent consumer
// never stalls the migration.
func sendProgress(ch chan<- ProgressUpdate, update ProgressUpdate) {
	if ch == nil {
		return
	}
	select {
	case ch <- update:
	default:
	}
}

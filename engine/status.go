package engine

// Status describes where the session stands with respect to the remote store.
type Status string

const (
	// StatusIdle means there is nothing to save and the last save succeeded.
	StatusIdle Status = "idle"
	// StatusSaving means a remote write is in flight.
	StatusSaving Status = "saving"
	// StatusSaved is shown briefly after a successful write before reverting
	// to idle.
	StatusSaved Status = "saved"
	// StatusError means the last remote write failed; the offline cache still
	// holds the document.
	StatusError Status = "error"
	// StatusOffline means the initial remote load failed and the session is
	// serving the cached or default document.
	StatusOffline Status = "offline"
)

package ledger

// SyncStatus reflects where a session stands relative to the store.
type SyncStatus string

const (
	StatusSynced  SyncStatus = "synced"
	StatusSyncing SyncStatus = "syncing"
	StatusOffline SyncStatus = "offline"
	StatusError   SyncStatus = "error"
)

// transition applies one event to the status machine. Connectivity events
// dominate: while offline, writes never claim to be syncing.
func transition(cur SyncStatus, ev statusEvent) SyncStatus {
	switch ev {
	case eventWentOffline:
		return StatusOffline
	case eventWentOnline:
		if cur == StatusOffline {
			return StatusSyncing
		}
		return cur
	case eventWriteStarted:
		if cur == StatusOffline {
			return StatusOffline
		}
		return StatusSyncing
	case eventWriteFailed:
		if cur == StatusOffline {
			return StatusOffline
		}
		return StatusError
	case eventSettled:
		if cur == StatusOffline {
			return StatusOffline
		}
		return StatusSynced
	}
	return cur
}

type statusEvent int

const (
	eventWentOffline statusEvent = iota
	eventWentOnline
	eventWriteStarted
	eventWriteFailed
	eventSettled
)

package content

import "time"

// Snapshot is a loaded document ready to serve.
type Snapshot struct {
	Store    *Store
	Meta     Meta
	LoadedAt time.Time
}

package database

import "time"

// BackendRecord represents one backend row in the shared backends table.
type BackendRecord struct {
	ServiceID  string
	BackendID  string
	Weight     int
	Available  bool
	Overloaded bool
	UpdatedAt  time.Time
}

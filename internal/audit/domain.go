package audit

import "time"

// Entry is an append-only record of an authorization state change. Entries
// are write-once: nothing in the application updates or deletes them.
type Entry struct {
	ID       int64
	ActorID  int64
	Action   string
	Module   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

// Filters narrows an audit query. Zero values mean "no filter".
type Filters struct {
	Actor    int64
	Entity   string
	EntityID string
	Action   string
	From     time.Time
	To       time.Time
	Page     int
	PageSize int
}

// PagingInfo describes the window returned by a paged query.
type PagingInfo struct {
	Page     int
	PageSize int
	HasNext  bool
	PrevPage int
	NextPage int
}

// Result bundles entries with paging information.
type Result struct {
	Entries []Entry
	Paging  PagingInfo
}

package models

import "time"

// JournalEntry is one append-only record of a consumed domain event. Entries
// are written exactly once by the event consumer and never mutated or
// deleted; the only store mutation is insert.
type JournalEntry struct {
	// ID is the store-assigned surrogate key, monotonic and unique.
	ID        int64
	EventType string
	UserID    *int64
	Username  *string
	// EventTimestamp is event-origin time, taken from the envelope.
	EventTimestamp time.Time
	// DetailsJSON is the event's details payload canonicalized to a JSON
	// string at write time; nil when the event carried no details.
	DetailsJSON *string
	// ReceivedTimestamp is assigned from the store-local clock at persistence
	// time. Clock skew across services means it is NOT guaranteed to be
	// >= EventTimestamp; consumers must not assume it.
	ReceivedTimestamp time.Time
}

// Page is a count-aware slice of a query result.
type Page struct {
	Entries       []JournalEntry
	TotalElements int64
	TotalPages    int
	Number        int
	Size          int
}

// NewPage derives pagination bookkeeping from a result slice and total count.
func NewPage(entries []JournalEntry, total int64, number, size int) Page {
	totalPages := 0
	if size > 0 {
		totalPages = int((total + int64(size) - 1) / int64(size))
	}
	return Page{
		Entries:       entries,
		TotalElements: total,
		TotalPages:    totalPages,
		Number:        number,
		Size:          size,
	}
}

package model

import "time"

// Status describes the lifecycle state of a share record. The only legal
// transition is StatusActive -> StatusDeleted.
type Status string

const (
	StatusActive  Status = "active"
	StatusDeleted Status = "deleted"
)

// ShareRecord stores information about a shared file. The token is the
// public link id and also addresses the blob in the blob store.
type ShareRecord struct {
	Token       string    `json:"token"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Status      Status    `json:"status"`
}

func (r *ShareRecord) ID() string {
	return r.Token
}

// Expired reports whether the retention window has passed at the given time.
func (r *ShareRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Live reports whether the record is still downloadable at the given time.
func (r *ShareRecord) Live(now time.Time) bool {
	return r.Status == StatusActive && !r.Expired(now)
}

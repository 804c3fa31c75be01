package audit

import (
	"time"

	"gorm.io/datatypes"
)

// Direction says which engine operation handled an event.
type Direction string

const (
	// DirectionPropagate is a local update pushed to the mirrors.
	DirectionPropagate Direction = "propagate"
	// DirectionApply is a mirror's update applied locally.
	DirectionApply Direction = "apply"
)

// Outcome summarises how an event ended.
type Outcome string

const (
	// OutcomeApplied: every ref that needed updating was updated.
	OutcomeApplied Outcome = "applied"
	// OutcomeUnchanged: the local ref already had the new value.
	OutcomeUnchanged Outcome = "unchanged"
	// OutcomePartial: applied locally but some mirrors lag behind.
	OutcomePartial Outcome = "partial"
	// OutcomeFailed: nothing was applied.
	OutcomeFailed Outcome = "failed"
)

// Record is one processed ref update event.
type Record struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	Repository string `gorm:"index:idx_audit_repo_ref;type:varchar(255);not null" json:"repository"`
	Ref        string `gorm:"index:idx_audit_repo_ref;type:varchar(255);not null" json:"ref"`
	OldSHA     string `gorm:"type:char(40)" json:"old"`
	NewSHA     string `gorm:"type:char(40)" json:"new"`

	// Origin is the reporting mirror, empty for local pushes
	Origin    string    `gorm:"type:varchar(255)" json:"origin,omitempty"`
	Direction Direction `gorm:"type:varchar(16);not null" json:"direction"`
	Outcome   Outcome   `gorm:"type:varchar(16);not null" json:"outcome"`

	Classification string `gorm:"type:varchar(32)" json:"classification,omitempty"`

	// FailedMirrors is a JSON array of mirror names
	FailedMirrors datatypes.JSON `json:"failed_mirrors,omitempty"`

	Error     string    `gorm:"type:text" json:"error,omitempty"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName pins the table name.
func (Record) TableName() string {
	return "audit_records"
}

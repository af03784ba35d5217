package audit

import "time"

// Event is one recorded command: the method name, the caller the host
// delivered, and the command's descriptive attributes as a JSON object.
type Event struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Method     string    `gorm:"not null;index" json:"method"`
	Caller     string    `gorm:"index" json:"caller"`
	Attributes string    `gorm:"type:text" json:"attributes"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Event) TableName() string {
	return "audit_events"
}

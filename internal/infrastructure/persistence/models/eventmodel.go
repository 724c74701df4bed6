package models

import (
	"time"

	"gorm.io/datatypes"

	"plexward/internal/shared/constants"
)

// EventModel is the append-only audit log row.
type EventModel struct {
	ID        uint   `gorm:"primarykey"`
	Kind      string `gorm:"not null;size:64;index:idx_event_kind"`
	Payload   datatypes.JSON
	CreatedAt time.Time `gorm:"index:idx_event_created"`
}

// TableName specifies the table name for GORM
func (EventModel) TableName() string {
	return constants.TableEvents
}

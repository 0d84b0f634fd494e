package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AuditLog is one row of the audit trail written by the audit sink.
type AuditLog struct {
	ID          uuid.UUID      `gorm:"type:uuid;primary_key;" json:"id"`
	ActorUserID *string        `gorm:"type:varchar(255)" json:"actor_user_id,omitempty"`
	TenantID    uuid.UUID      `gorm:"type:uuid;index" json:"tenant_id"`
	Action      string         `gorm:"type:varchar(30);not null" json:"action"`
	EntityType  string         `gorm:"type:varchar(30);not null" json:"entity_type"`
	EntityID    *uuid.UUID     `gorm:"type:uuid;index" json:"entity_id,omitempty"`
	OldValues   datatypes.JSON `gorm:"type:jsonb" json:"old_values,omitempty"`
	NewValues   datatypes.JSON `gorm:"type:jsonb" json:"new_values,omitempty"`
	Reason      *string        `gorm:"type:text" json:"reason,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Backup kinds.
const (
	BackupTypeFullDB        = "full_db"
	BackupTypeUserInventory = "user_inventory"
)

// Backup records a dump written to the backup directory. The row is
// metadata only; the dump itself lives at FilePath.
type Backup struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	BackupType  string     `gorm:"column:backup_type;not null"`
	UserID      *uuid.UUID `gorm:"column:user_id;type:uuid;index"`
	FilePath    string     `gorm:"column:file_path;not null"`
	FileSize    int64      `gorm:"column:file_size;not null;default:0"`
	CreatedBy   *uuid.UUID `gorm:"column:created_by;type:uuid"`
	IsScheduled bool       `gorm:"column:is_scheduled;not null;default:false"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
}

package models

import "time"

// UploadedFile records a stored blob until the row that references it commits.
// Rows still unattached after ExpireAt are orphans and get swept.
type UploadedFile struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Bucket    string    `gorm:"size:64;not null" json:"bucket"`
	FilePath  string    `gorm:"size:1024;not null" json:"file_path"`
	URL       string    `gorm:"size:1024;not null;index" json:"url"`
	Attached  bool      `gorm:"not null;default:false;index" json:"attached"`
	ExpireAt  time.Time `gorm:"index" json:"expire_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

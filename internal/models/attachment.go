package models

import "gorm.io/gorm"

type Attachment struct {
	gorm.Model

	FileName   string `gorm:"not null"` // original name as uploaded
	StoredName string `gorm:"uniqueIndex;not null"`
	URL        string `gorm:"not null"`
	Size       int64  `gorm:"not null"`
	MimeType   string
	TaskID     uint `gorm:"not null;index"`
	UploaderID uint `gorm:"not null"`

	// Relationships
	Task     Task `gorm:"foreignKey:TaskID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Uploader User `gorm:"foreignKey:UploaderID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}

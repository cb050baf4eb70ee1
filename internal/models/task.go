package models

import (
	"time"

	"gorm.io/gorm"
)

type Task struct {
	gorm.Model

	Title       string `gorm:"not null"`
	Description string
	Status      string `gorm:"not null"` // "todo", "in_progress", "in_review", "completed"
	Priority    string `gorm:"not null"` // "low", "medium", "high"
	DueDate     *time.Time
	ProjectID   uint `gorm:"not null;index"`
	CreatorID   uint `gorm:"not null"`
	AssigneeID  *uint

	// Relationships
	Project     Project      `gorm:"foreignKey:ProjectID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Creator     User         `gorm:"foreignKey:CreatorID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Assignee    *User        `gorm:"foreignKey:AssigneeID;constraint:OnUpdate:Cascade,OnDelete:SET NULL"`
	Comments    []Comment    `gorm:"foreignKey:TaskID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Attachments []Attachment `gorm:"foreignKey:TaskID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}

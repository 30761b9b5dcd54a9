package models

import (
	"github.com/google/uuid"
)

// Tag classifies recipes. Name, color and slug are each unique.
type Tag struct {
	ID    uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Name  string    `gorm:"size:50;uniqueIndex;not null" json:"name"`
	Color string    `gorm:"size:7;uniqueIndex;not null" json:"color"`
	Slug  string    `gorm:"size:50;uniqueIndex;not null" json:"slug"`
}

func (Tag) TableName() string {
	return "tags"
}

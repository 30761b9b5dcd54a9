package models

import (
	"github.com/google/uuid"
)

// Ingredient is a catalog entry with its measurement unit ("g", "ml").
// Names are not unique: the same name may exist under different units.
type Ingredient struct {
	ID              uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Name            string    `gorm:"size:200;not null;index" json:"name"`
	MeasurementUnit string    `gorm:"size:50;not null" json:"measurement_unit"`
}

func (Ingredient) TableName() string {
	return "ingredients"
}

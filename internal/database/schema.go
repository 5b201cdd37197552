package database

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Example is one row of a dataset. Data holds the raw input fields as JSON.
type Example struct {
	Dataset  string         `gorm:"primaryKey;size:255"`
	Id       string         `gorm:"primaryKey;size:255"`
	Position int            `gorm:"not null;default:0"`
	Data     datatypes.JSON `gorm:"type:jsonb"`
}

type Subset struct {
	Id           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name         string    `gorm:"uniqueIndex;size:255;not null"`
	CreationTime time.Time

	Members []SubsetMember `gorm:"foreignKey:SubsetId;constraint:OnDelete:CASCADE"`
}

type SubsetMember struct {
	SubsetId  uuid.UUID `gorm:"type:uuid;primaryKey"`
	ExampleId string    `gorm:"primaryKey;size:255"`
	Position  int       `gorm:"not null"`
}

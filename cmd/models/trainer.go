package models

import (
	"gorm.io/gorm"
)

type FitnessClub struct {
	gorm.Model
	Name        string  `gorm:"column:name;size:100;not null;uniqueIndex" json:"name"`
	Address     *string `gorm:"column:address;size:255" json:"address,omitempty"`
	PhoneNumber *string `gorm:"column:phone_number;size:12" json:"phone_number,omitempty"`
	Description *string `gorm:"column:description;type:text" json:"description,omitempty"`
}

func (FitnessClub) TableName() string {
	return "fitness_clubs"
}

type Trainer struct {
	gorm.Model
	UserID          uint    `gorm:"column:user_id;not null;uniqueIndex" json:"user_id"`
	Description     *string `gorm:"column:description;type:text" json:"description,omitempty"`
	Specialization  *string `gorm:"column:specialization;size:100" json:"specialization,omitempty"`
	ExperienceYears *int    `gorm:"column:experience_years" json:"experience_years,omitempty"`

	User  *User         `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Clubs []FitnessClub `gorm:"many2many:trainer_clubs;" json:"clubs,omitempty"`
}

func (Trainer) TableName() string {
	return "trainers"
}

// WorksAt is the affiliation test consumed by schedule validation. It expects
// Clubs to be preloaded.
func (t *Trainer) WorksAt(clubID uint) bool {
	for _, c := range t.Clubs {
		if c.ID == clubID {
			return true
		}
	}
	return false
}

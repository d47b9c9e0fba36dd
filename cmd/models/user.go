package models

import (
	"regexp"
	"time"

	"gorm.io/gorm"
)

type Role string

const (
	RoleClient  Role = "client"
	RoleTrainer Role = "trainer"
	RoleAdmin   Role = "admin"
)

type Gender string

const (
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"
)

// PhonePattern is the national phone format accepted for users and clubs:
// +7 or 8 followed by exactly 10 digits.
var PhonePattern = regexp.MustCompile(`^(?:\+7|8)\d{10}$`)

type User struct {
	gorm.Model
	Username     string     `gorm:"column:username;size:150;not null;uniqueIndex" json:"username"`
	Email        string     `gorm:"column:email;size:255;not null;uniqueIndex" json:"email"`
	PasswordHash string     `gorm:"column:password_hash;size:255;not null" json:"-"`
	FirstName    string     `gorm:"column:first_name;size:150" json:"first_name"`
	LastName     string     `gorm:"column:last_name;size:150" json:"last_name"`
	Role         Role       `gorm:"column:role;size:10;not null;default:client" json:"role"`
	IsStaff      bool       `gorm:"column:is_staff;default:false" json:"is_staff"`
	Birthday     *time.Time `gorm:"column:birthday;type:date" json:"birthday,omitempty"`
	Gender       *Gender    `gorm:"column:gender;size:1" json:"gender,omitempty"`
	PhoneNumber  *string    `gorm:"column:phone_number;size:12;uniqueIndex" json:"phone_number,omitempty"`

	Refresh               string    `gorm:"column:refresh_token;size:255" json:"-"`
	RefreshTokenExpiredAt time.Time `gorm:"column:refresh_token_expired_at" json:"-"`

	TrainerProfile *Trainer `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"trainer_profile,omitempty"`
}

func (u *User) IsClient() bool  { return u.Role == RoleClient }
func (u *User) IsTrainer() bool { return u.Role == RoleTrainer }
func (u *User) IsAdmin() bool   { return u.Role == RoleAdmin }

// Staff reports whether the user carries the admin override. The admin role
// implies it so a role edit alone is enough to grant full access.
func (u *User) Staff() bool {
	return u.IsStaff || u.Role == RoleAdmin
}

func (u *User) FullName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Age returns whole years at the given moment, or -1 when no birthday is set.
func (u *User) Age(now time.Time) int {
	if u.Birthday == nil {
		return -1
	}
	b := *u.Birthday
	age := now.Year() - b.Year()
	if now.Month() < b.Month() || (now.Month() == b.Month() && now.Day() < b.Day()) {
		age--
	}
	return age
}

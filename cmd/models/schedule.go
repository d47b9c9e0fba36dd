package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

type DayOfWeek string

const (
	Monday    DayOfWeek = "monday"
	Tuesday   DayOfWeek = "tuesday"
	Wednesday DayOfWeek = "wednesday"
	Thursday  DayOfWeek = "thursday"
	Friday    DayOfWeek = "friday"
	Saturday  DayOfWeek = "saturday"
	Sunday    DayOfWeek = "sunday"
)

// dayOrdinals maps a schedule day to its ISO ordinal, Monday=0 .. Sunday=6.
var dayOrdinals = map[DayOfWeek]int{
	Monday:    0,
	Tuesday:   1,
	Wednesday: 2,
	Thursday:  3,
	Friday:    4,
	Saturday:  5,
	Sunday:    6,
}

func (d DayOfWeek) Valid() bool {
	_, ok := dayOrdinals[d]
	return ok
}

// Ordinal returns the ISO weekday ordinal (Monday=0), or -1 for an unknown day.
func (d DayOfWeek) Ordinal() int {
	ord, ok := dayOrdinals[d]
	if !ok {
		return -1
	}
	return ord
}

// ISOWeekday converts time.Weekday (Sunday=0) to the Monday-first ordinal
// used by DayOfWeek.
func ISOWeekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// ParseClock parses an "HH:MM" wall-clock value into minutes since midnight.
// Schedule and booking times are minute resolution, no date, no zone.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Schedule is a recurring weekly slot owned by one trainer at one club.
// Times are stored as "HH:MM" strings so comparisons stay wall-clock and the
// unique index behaves identically on postgres and sqlite.
type Schedule struct {
	gorm.Model
	TrainerID     uint      `gorm:"column:trainer_id;not null;uniqueIndex:idx_schedule_slot;index:idx_trainer_day,priority:1" json:"trainer_id"`
	FitnessClubID uint      `gorm:"column:fitness_club_id;not null;uniqueIndex:idx_schedule_slot;index:idx_club_day,priority:1" json:"fitness_club_id"`
	DayOfWeek     DayOfWeek `gorm:"column:day_of_week;size:10;not null;uniqueIndex:idx_schedule_slot;index:idx_trainer_day,priority:2;index:idx_club_day,priority:2" json:"day_of_week"`
	StartTime     string    `gorm:"column:start_time;size:5;not null;uniqueIndex:idx_schedule_slot" json:"start_time"`
	EndTime       string    `gorm:"column:end_time;size:5;not null;uniqueIndex:idx_schedule_slot" json:"end_time"`
	IsActive      bool      `gorm:"column:is_active;default:true" json:"is_active"`

	Trainer     *Trainer     `gorm:"foreignKey:TrainerID" json:"trainer,omitempty"`
	FitnessClub *FitnessClub `gorm:"foreignKey:FitnessClubID" json:"fitness_club,omitempty"`
}

func (Schedule) TableName() string {
	return "schedules"
}

// Window returns the slot bounds in minutes since midnight.
func (s *Schedule) Window() (start, end int, err error) {
	start, err = ParseClock(s.StartTime)
	if err != nil {
		return 0, 0, err
	}
	end, err = ParseClock(s.EndTime)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// Contains reports whether a booking time falls inside the slot window.
// The window is half-open: start inclusive, end exclusive.
func (s *Schedule) Contains(clock int) bool {
	start, end, err := s.Window()
	if err != nil {
		return false
	}
	return start <= clock && clock < end
}

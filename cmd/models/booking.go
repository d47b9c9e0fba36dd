package models

import (
	"time"

	"gorm.io/gorm"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

// statusTransitions is the booking lifecycle. Cancelled and completed are
// terminal: they have no outgoing edges.
var statusTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:   {BookingConfirmed, BookingCancelled},
	BookingConfirmed: {BookingCancelled, BookingCompleted},
	BookingCancelled: {},
	BookingCompleted: {},
}

func (s BookingStatus) Valid() bool {
	_, ok := statusTransitions[s]
	return ok
}

func (s BookingStatus) Terminal() bool {
	next, ok := statusTransitions[s]
	return ok && len(next) == 0
}

// CanTransitionTo reports whether the target status is reachable from s.
// Who may drive a transition is the authorization layer's concern, not ours.
func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	for _, t := range statusTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// Booking is a client's reservation against one calendar-date instance of a
// schedule slot. The (client, schedule, date, time) tuple is unique so the
// same client cannot file the same request twice; slot exclusivity among
// confirmed bookings is enforced by a partial unique index created at
// migration time (see db.Migrate).
type Booking struct {
	gorm.Model
	ClientID    uint          `gorm:"column:client_id;not null;uniqueIndex:idx_booking_request;index:idx_client_date,priority:1" json:"client_id"`
	ScheduleID  uint          `gorm:"column:schedule_id;not null;uniqueIndex:idx_booking_request;index:idx_slot_instance,priority:1" json:"schedule_id"`
	BookingDate time.Time     `gorm:"column:booking_date;type:date;not null;uniqueIndex:idx_booking_request;index:idx_client_date,priority:2;index:idx_slot_instance,priority:2" json:"booking_date"`
	BookingTime string        `gorm:"column:booking_time;size:5;not null;uniqueIndex:idx_booking_request;index:idx_slot_instance,priority:3" json:"booking_time"`
	Status      BookingStatus `gorm:"column:status;size:15;not null;default:pending;index" json:"status"`

	Client   *User     `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Schedule *Schedule `gorm:"foreignKey:ScheduleID" json:"schedule,omitempty"`
}

func (Booking) TableName() string {
	return "bookings"
}

package booking

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/fitbook/fitbook-server/cmd/models"
	"github.com/fitbook/fitbook-server/service/validation"
)

// AdmissionRequest is one booking attempt: a client asking for a concrete
// (schedule, date, time) triple. ExcludeID carries the id of the booking
// being updated so it does not conflict with itself; zero for new bookings.
type AdmissionRequest struct {
	Client    *models.User
	Schedule  *models.Schedule
	Date      time.Time
	Clock     string
	ExcludeID uint
}

// Admit runs the admission rules in order and reports the first violated one.
// Rule order: client role, past date, weekday consistency, window
// containment, confirmed-slot exclusivity, duplicate request. It must run
// inside the same transaction as the subsequent write; the partial unique
// index on confirmed bookings backstops the exclusivity check under
// concurrent writers.
//
// Only confirmed bookings conflict, so any number of pending bookings may
// coexist on one slot instance until one of them is confirmed.
func Admit(tx *gorm.DB, req AdmissionRequest) error {
	if !req.Client.IsClient() {
		return validation.New("client_id", validation.CodeNotAClient,
			"only a user with the client role can book a training session")
	}

	if req.Date.Before(Today()) {
		return validation.New("booking_date", validation.CodePastDate,
			"cannot book a past date")
	}

	ord := req.Schedule.DayOfWeek.Ordinal()
	if models.ISOWeekday(req.Date) != ord {
		return validation.New("booking_date", validation.CodeWeekdayMismatch,
			fmt.Sprintf("booking date %s does not fall on the schedule's day (%s)",
				req.Date.Format("2006-01-02"), req.Schedule.DayOfWeek))
	}

	clock, err := models.ParseClock(req.Clock)
	if err != nil {
		return validation.New("booking_time", validation.CodeInvalidValue, err.Error())
	}
	if !req.Schedule.Contains(clock) {
		return validation.New("booking_time", validation.CodeTimeOutOfWindow,
			fmt.Sprintf("booking time %s must fall within the schedule window %s-%s",
				req.Clock, req.Schedule.StartTime, req.Schedule.EndTime))
	}

	if err := checkConfirmedConflict(tx, req.Schedule.ID, req.Date, req.Clock, req.ExcludeID); err != nil {
		return err
	}

	var dup int64
	q := tx.Model(&models.Booking{}).
		Where("client_id = ? AND schedule_id = ? AND booking_date = ? AND booking_time = ?",
			req.Client.ID, req.Schedule.ID, req.Date, req.Clock)
	if req.ExcludeID != 0 {
		q = q.Where("id <> ?", req.ExcludeID)
	}
	if err := q.Count(&dup).Error; err != nil {
		return fmt.Errorf("checking duplicate requests: %w", err)
	}
	if dup > 0 {
		return validation.New("client_id", validation.CodeDuplicateRequest,
			"you have already requested this slot")
	}

	return nil
}

// checkConfirmedConflict reports SlotAlreadyTaken when another confirmed
// booking occupies the slot instance. It also runs on its own for status-only
// updates that confirm a booking, where the rest of the admission chain is
// skipped.
func checkConfirmedConflict(tx *gorm.DB, scheduleID uint, date time.Time, clock string, excludeID uint) error {
	var taken int64
	q := tx.Model(&models.Booking{}).
		Where("schedule_id = ? AND booking_date = ? AND booking_time = ? AND status = ?",
			scheduleID, date, clock, models.BookingConfirmed)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&taken).Error; err != nil {
		return fmt.Errorf("checking slot conflicts: %w", err)
	}
	if taken > 0 {
		return validation.New("schedule_id", validation.CodeSlotAlreadyTaken,
			"this schedule slot is already taken by another booking")
	}
	return nil
}

// Today is midnight UTC of the current date. Booking dates are stored as
// bare dates normalized to UTC midnight, so past-date checks compare in the
// same frame.
func Today() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a "YYYY-MM-DD" calendar date into the normalized form
// bookings store.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return d, nil
}

// ValidateTransition checks the lifecycle edge from current to target.
// Terminal states have no outgoing edges. Same-state writes are a no-op and
// pass so an idempotent retry does not error.
func ValidateTransition(current, target models.BookingStatus) error {
	if !target.Valid() {
		return validation.New("status", validation.CodeInvalidValue,
			fmt.Sprintf("unknown booking status %q", target))
	}
	if current == target {
		return nil
	}
	if current.Terminal() {
		return validation.New("status", validation.CodeTerminalStateViolation,
			fmt.Sprintf("booking status %q is final and cannot change", current))
	}
	if !current.CanTransitionTo(target) {
		return validation.New("status", validation.CodeTerminalStateViolation,
			fmt.Sprintf("cannot move booking from %q to %q", current, target))
	}
	return nil
}

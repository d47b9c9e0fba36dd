package schedule

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/fitbook/fitbook-server/cmd/models"
	"github.com/fitbook/fitbook-server/service/validation"
)

const (
	minSlotMinutes = 15
	maxSlotMinutes = 8 * 60
)

// Validate runs the slot invariants in order and reports the first violated
// one: time range order, duration bounds, trainer-club affiliation, and slot
// uniqueness. The trainer must have Clubs preloaded. excludeID skips the slot
// being updated in the uniqueness query.
func Validate(tx *gorm.DB, s *models.Schedule, trainer *models.Trainer, excludeID uint) error {
	if !s.DayOfWeek.Valid() {
		return validation.New("day_of_week", validation.CodeInvalidValue,
			fmt.Sprintf("unknown day of week %q", s.DayOfWeek))
	}

	start, end, err := s.Window()
	if err != nil {
		return validation.New("start_time", validation.CodeInvalidValue, err.Error())
	}

	if start >= end {
		return validation.New("end_time", validation.CodeInvalidTimeRange,
			"end time must be later than start time")
	}

	duration := end - start
	if duration < minSlotMinutes {
		return validation.New("start_time", validation.CodeTooShort,
			"a session must last at least 15 minutes")
	}
	if duration > maxSlotMinutes {
		return validation.New("end_time", validation.CodeTooLong,
			"a session must not last longer than 8 hours")
	}

	if !trainer.WorksAt(s.FitnessClubID) {
		return validation.New("fitness_club_id", validation.CodeTrainerNotInClub,
			"the selected trainer does not work at this fitness club")
	}

	var dup int64
	q := tx.Model(&models.Schedule{}).
		Where("trainer_id = ? AND fitness_club_id = ? AND day_of_week = ? AND start_time = ? AND end_time = ?",
			s.TrainerID, s.FitnessClubID, s.DayOfWeek, s.StartTime, s.EndTime)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&dup).Error; err != nil {
		return fmt.Errorf("checking duplicate slots: %w", err)
	}
	if dup > 0 {
		return validation.New("start_time", validation.CodeDuplicateSlot,
			"an identical schedule slot already exists")
	}

	return nil
}

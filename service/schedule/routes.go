package schedule

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fitbook/fitbook-server/cmd/models"
	"github.com/fitbook/fitbook-server/cmd/utils"
	"github.com/fitbook/fitbook-server/service/authz"
	"github.com/fitbook/fitbook-server/service/booking"
	"github.com/fitbook/fitbook-server/service/validation"
)

type ScheduleHandler struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewScheduleHandler(db *gorm.DB, logger *zap.Logger) *ScheduleHandler {
	return &ScheduleHandler{db: db, logger: logger}
}

func (h *ScheduleHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/schedules", utils.AuthMiddleware(h.CreateSchedule)).Methods("POST")
	router.HandleFunc("/schedules", utils.AuthMiddleware(h.GetSchedules)).Methods("GET")
	router.HandleFunc("/schedules/{id:[0-9]+}", utils.AuthMiddleware(h.GetSchedule)).Methods("GET")
	router.HandleFunc("/schedules/{id:[0-9]+}", utils.AuthMiddleware(h.UpdateSchedule)).Methods("PUT", "PATCH")
	router.HandleFunc("/schedules/{id:[0-9]+}", utils.AuthMiddleware(h.DeleteSchedule)).Methods("DELETE")
}

// trainerProfile loads the actor's trainer profile with clubs, or nil when
// the actor has none.
func (h *ScheduleHandler) trainerProfile(userID uint) (*models.Trainer, error) {
	var trainer models.Trainer
	err := h.db.Preload("Clubs").Where("user_id = ?", userID).First(&trainer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &trainer, nil
}

func (h *ScheduleHandler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	actor, err := utils.CurrentUser(h.db, r)
	if err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	if !authz.Can(actor, authz.ResourceSchedule, authz.ActionCreate) {
		http.Error(w, "Only trainers can create schedules", http.StatusForbidden)
		return
	}

	var scheduleRequest struct {
		TrainerID     uint             `json:"trainer_id"`
		FitnessClubID uint             `json:"fitness_club_id"`
		DayOfWeek     models.DayOfWeek `json:"day_of_week"`
		StartTime     string           `json:"start_time"`
		EndTime       string           `json:"end_time"`
		IsActive      *bool            `json:"is_active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&scheduleRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var trainer *models.Trainer
	if actor.Staff() {
		var t models.Trainer
		if err := h.db.Preload("Clubs").First(&t, scheduleRequest.TrainerID).Error; err != nil {
			http.Error(w, "Trainer not found", http.StatusNotFound)
			return
		}
		trainer = &t
	} else {
		// Trainers create slots for themselves only; a posted trainer_id that
		// is not their own profile is refused, an omitted one is filled in.
		trainer, err = h.trainerProfile(actor.ID)
		if err != nil {
			http.Error(w, "Error loading trainer profile", http.StatusInternalServerError)
			return
		}
		if trainer == nil {
			http.Error(w, "You cannot create a schedule without a trainer profile", http.StatusForbidden)
			return
		}
		if scheduleRequest.TrainerID != 0 && scheduleRequest.TrainerID != trainer.ID {
			http.Error(w, "You can only create schedules for yourself", http.StatusForbidden)
			return
		}
	}

	schedule := models.Schedule{
		TrainerID:     trainer.ID,
		FitnessClubID: scheduleRequest.FitnessClubID,
		DayOfWeek:     scheduleRequest.DayOfWeek,
		StartTime:     scheduleRequest.StartTime,
		EndTime:       scheduleRequest.EndTime,
		IsActive:      true,
	}
	if scheduleRequest.IsActive != nil {
		schedule.IsActive = *scheduleRequest.IsActive
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := Validate(tx, &schedule, trainer, 0); err != nil {
			return err
		}
		return tx.Create(&schedule).Error
	})
	if err != nil {
		if verr := validation.AsError(err); verr != nil {
			validation.WriteHTTP(w, verr)
			return
		}
		h.logger.Error("error creating schedule", zap.Error(err))
		http.Error(w, "Error creating schedule", http.StatusInternalServerError)
		return
	}

	h.db.Preload("Trainer.User").Preload("FitnessClub").First(&schedule, schedule.ID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(schedule)
}

func (h *ScheduleHandler) GetSchedules(w http.ResponseWriter, r *http.Request) {
	actor, err := utils.CurrentUser(h.db, r)
	if err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	if !authz.Can(actor, authz.ResourceSchedule, authz.ActionList) {
		http.Error(w, "You cannot list schedules", http.StatusForbidden)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 100
	}

	query := h.db.Model(&models.Schedule{}).
		Preload("Trainer.User").Preload("FitnessClub")

	// Trainers work against their own calendar.
	if actor.IsTrainer() && !actor.Staff() {
		trainer, err := h.trainerProfile(actor.ID)
		if err != nil {
			http.Error(w, "Error retrieving schedules", http.StatusInternalServerError)
			return
		}
		if trainer == nil {
			query = query.Where("1 = 0")
		} else {
			query = query.Where("trainer_id = ?", trainer.ID)
		}
	}

	if trainerID := r.URL.Query().Get("trainer_id"); trainerID != "" {
		query = query.Where("trainer_id = ?", trainerID)
	}
	if clubID := r.URL.Query().Get("fitness_club_id"); clubID != "" {
		query = query.Where("fitness_club_id = ?", clubID)
	}
	if dateParam := r.URL.Query().Get("date"); dateParam != "" {
		date, err := booking.ParseDate(dateParam)
		if err != nil {
			validation.WriteHTTP(w, validation.New("date", validation.CodeInvalidValue, err.Error()))
			return
		}
		query = query.Where("day_of_week = ?", dayForOrdinal(models.ISOWeekday(date)))
	}

	var total int64
	query.Count(&total)

	var schedules []models.Schedule
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).
		Order("day_of_week, start_time").Find(&schedules).Error; err != nil {
		http.Error(w, "Error retrieving schedules", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"schedules":   schedules,
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
		"total_pages": (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

// dayForOrdinal is the inverse weekday mapping used by the calendar-date
// list filter.
func dayForOrdinal(ord int) models.DayOfWeek {
	days := []models.DayOfWeek{
		models.Monday, models.Tuesday, models.Wednesday, models.Thursday,
		models.Friday, models.Saturday, models.Sunday,
	}
	if ord < 0 || ord >= len(days) {
		return ""
	}
	return days[ord]
}

func (h *ScheduleHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	actor, err := utils.CurrentUser(h.db, r)
	if err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	scheduleID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid schedule ID", http.StatusBadRequest)
		return
	}

	var schedule models.Schedule
	if err := h.db.Preload("Trainer.User").Preload("FitnessClub").
		First(&schedule, scheduleID).Error; err != nil {
		http.Error(w, "Schedule not found", http.StatusNotFound)
		return
	}

	owned := schedule.Trainer != nil && schedule.Trainer.UserID == actor.ID
	if !authz.CanObject(actor, authz.ResourceSchedule, authz.ActionRetrieve, owned) {
		http.Error(w, "Schedule not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(schedule)
}

func (h *ScheduleHandler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	actor, err := utils.CurrentUser(h.db, r)
	if err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	scheduleID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid schedule ID", http.StatusBadRequest)
		return
	}

	var schedule models.Schedule
	if err := h.db.Preload("Trainer.Clubs").First(&schedule, scheduleID).Error; err != nil {
		http.Error(w, "Schedule not found", http.StatusNotFound)
		return
	}

	owned := schedule.Trainer != nil && schedule.Trainer.UserID == actor.ID
	if !authz.CanObject(actor, authz.ResourceSchedule, authz.ActionUpdate, owned) {
		http.Error(w, "You can only update your own schedule", http.StatusForbidden)
		return
	}

	// The trainer profile may have been deleted after the slot was created;
	// an orphan slot cannot be revalidated against club affiliations.
	if schedule.Trainer == nil {
		validation.WriteHTTP(w, validation.New("trainer_id", validation.CodeInvalidValue,
			"the schedule's trainer profile no longer exists"))
		return
	}

	var updateRequest struct {
		FitnessClubID *uint             `json:"fitness_club_id"`
		DayOfWeek     *models.DayOfWeek `json:"day_of_week"`
		StartTime     *string           `json:"start_time"`
		EndTime       *string           `json:"end_time"`
		IsActive      *bool             `json:"is_active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&updateRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if updateRequest.FitnessClubID != nil {
		schedule.FitnessClubID = *updateRequest.FitnessClubID
	}
	if updateRequest.DayOfWeek != nil {
		schedule.DayOfWeek = *updateRequest.DayOfWeek
	}
	if updateRequest.StartTime != nil {
		schedule.StartTime = *updateRequest.StartTime
	}
	if updateRequest.EndTime != nil {
		schedule.EndTime = *updateRequest.EndTime
	}
	if updateRequest.IsActive != nil {
		schedule.IsActive = *updateRequest.IsActive
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := Validate(tx, &schedule, schedule.Trainer, schedule.ID); err != nil {
			return err
		}
		return tx.Save(&schedule).Error
	})
	if err != nil {
		if verr := validation.AsError(err); verr != nil {
			validation.WriteHTTP(w, verr)
			return
		}
		h.logger.Error("error updating schedule", zap.Uint("schedule_id", schedule.ID), zap.Error(err))
		http.Error(w, "Error updating schedule", http.StatusInternalServerError)
		return
	}

	h.db.Preload("Trainer.User").Preload("FitnessClub").First(&schedule, schedule.ID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(schedule)
}

func (h *ScheduleHandler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	actor, err := utils.CurrentUser(h.db, r)
	if err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	scheduleID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid schedule ID", http.StatusBadRequest)
		return
	}

	var schedule models.Schedule
	if err := h.db.First(&schedule, scheduleID).Error; err != nil {
		http.Error(w, "Schedule not found", http.StatusNotFound)
		return
	}

	// Destroy is an admin-only action, trainers included: they deactivate
	// slots with is_active instead.
	if !actor.Staff() {
		http.Error(w, "Only administrators can delete schedules", http.StatusForbidden)
		return
	}

	if err := h.db.Delete(&schedule).Error; err != nil {
		http.Error(w, "Error deleting schedule", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

package booking

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
	"github.com/fitbook/fitbook-server/db"
	"github.com/fitbook/fitbook-server/service/authz"
	"github.com/fitbook/fitbook-server/service/validation"
)

type BookingHandler struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewBookingHandler(db *gorm.DB, logger *zap.Logger) *BookingHandler {
	return &BookingHandler{db: db, logger: logger}
}

func (h *BookingHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/bookings", utils.AuthMiddleware(h.CreateBooking)).Methods("POST")
	router.HandleFunc("/bookings", utils.AuthMiddleware(h.GetBookings)).Methods("GET")
	router.HandleFunc("/bookings/{id:[0-9]+}", utils.AuthMiddleware(h.GetBooking)).Methods("GET")
	router.HandleFunc("/bookings/{id:[0-9]+}", utils.AuthMiddleware(h.UpdateBooking)).Methods("PUT", "PATCH")
	router.HandleFunc("/bookings/{id:[0-9]+}", utils.AuthMiddleware(h.DeleteBooking)).Methods("DELETE")
}

func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	actor, err := utils.CurrentUser(h.db, r)
	if err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	if !authz.Can(actor, authz.ResourceBooking, authz.ActionCreate) {
		http.Error(w, "Only clients can create bookings", http.StatusForbidden)
		return
	}

	var bookingRequest struct {
		ClientID    uint   `json:"client_id"`
		ScheduleID  uint   `json:"schedule_id"`
		BookingDate string `json:"booking_date"`
		BookingTime string `json:"booking_time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&bookingRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	date, err := ParseDate(bookingRequest.BookingDate)
	if err != nil {
		validation.WriteHTTP(w, validation.New("booking_date", validation.CodeInvalidValue, err.Error()))
		return
	}

	// Clients always book for themselves: any client-supplied id is ignored.
	// Staff may book on behalf of any client.
	client := actor
	if actor.Staff() && bookingRequest.ClientID != 0 && bookingRequest.ClientID != actor.ID {
		var other models.User
		if err := h.db.First(&other, bookingRequest.ClientID).Error; err != nil {
			http.Error(w, "Client not found", http.StatusNotFound)
			return
		}
		client = &other
	}

	var schedule models.Schedule
	if err := h.db.First(&schedule, bookingRequest.ScheduleID).Error; err != nil {
		http.Error(w, "Schedule not found", http.StatusNotFound)
		return
	}

	booking := models.Booking{
		ClientID:    client.ID,
		ScheduleID:  schedule.ID,
		BookingDate: date,
		BookingTime: bookingRequest.BookingTime,
		Status:      models.BookingPending,
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := Admit(tx, AdmissionRequest{
			Client:   client,
			Schedule: &schedule,
			Date:     date,
			Clock:    bookingRequest.BookingTime,
		}); err != nil {
			return err
		}
		return tx.Create(&booking).Error
	})
	if err != nil {
		if verr := validation.AsError(err); verr != nil {
			validation.WriteHTTP(w, verr)
			return
		}
		h.logger.Error("error creating booking", zap.Error(err))
		http.Error(w, "Error creating booking", http.StatusInternalServerError)
		return
	}

	h.db.Preload("Client").Preload("Schedule.Trainer").Preload("Schedule.FitnessClub").First(&booking, booking.ID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(booking)
}

func (h *BookingHandler) GetBookings(w http.ResponseWriter, r *http.Request) {
	actor, err := utils.CurrentUser(h.db, r)
	if err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	if !authz.Can(actor, authz.ResourceBooking, authz.ActionList) {
		http.Error(w, "You cannot list bookings", http.StatusForbidden)
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

	query := h.db.Model(&models.Booking{}).
		Preload("Client").Preload("Schedule.Trainer").Preload("Schedule.FitnessClub")

	query, err = h.scopeToActor(query, actor)
	if err != nil {
		http.Error(w, "Error retrieving bookings", http.StatusInternalServerError)
		return
	}

	if scheduleID := r.URL.Query().Get("schedule_id"); scheduleID != "" {
		query = query.Where("bookings.schedule_id = ?", scheduleID)
	}
	if bookingDate := r.URL.Query().Get("booking_date"); bookingDate != "" {
		date, err := ParseDate(bookingDate)
		if err != nil {
			validation.WriteHTTP(w, validation.New("booking_date", validation.CodeInvalidValue, err.Error()))
			return
		}
		query = query.Where("bookings.booking_date = ?", date)
	}
	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("bookings.status = ?", status)
	}

	var total int64
	query.Count(&total)

	var bookings []models.Booking
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).
		Order("booking_date DESC, booking_time DESC").Find(&bookings).Error; err != nil {
		http.Error(w, "Error retrieving bookings", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"bookings":    bookings,
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
		"total_pages": (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

// scopeToActor narrows the booking queryset to what the actor may see:
// clients their own bookings, trainers the bookings referencing their
// schedules, staff everything.
func (h *BookingHandler) scopeToActor(query *gorm.DB, actor *models.User) (*gorm.DB, error) {
	if actor.Staff() {
		return query, nil
	}
	switch actor.Role {
	case models.RoleClient:
		return query.Where("bookings.client_id = ?", actor.ID), nil
	case models.RoleTrainer:
		var trainer models.Trainer
		if err := h.db.Where("user_id = ?", actor.ID).First(&trainer).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// Trainer without a profile owns no schedules, sees nothing.
				return query.Where("1 = 0"), nil
			}
			return nil, err
		}
		return query.Joins("JOIN schedules ON schedules.id = bookings.schedule_id").
			Where("schedules.trainer_id = ?", trainer.ID), nil
	default:
		return query.Where("1 = 0"), nil
	}
}

// ownsBooking reports the actor's ownership of a booking under the policy's
// ownership rule: clients own their bookings, trainers own bookings placed
// against their schedules.
func (h *BookingHandler) ownsBooking(actor *models.User, booking *models.Booking) bool {
	switch actor.Role {
	case models.RoleClient:
		return booking.ClientID == actor.ID
	case models.RoleTrainer:
		if booking.Schedule == nil || booking.Schedule.Trainer == nil {
			return false
		}
		return booking.Schedule.Trainer.UserID == actor.ID
	default:
		return false
	}
}

func (h *BookingHandler) loadBooking(w http.ResponseWriter, r *http.Request) (*models.Booking, bool) {
	vars := mux.Vars(r)
	bookingID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid booking ID", http.StatusBadRequest)
		return nil, false
	}

	var booking models.Booking
	if err := h.db.Preload("Client").Preload("Schedule.Trainer").Preload("Schedule.FitnessClub").
		First(&booking, bookingID).Error; err != nil {
		http.Error(w, "Booking not found", http.StatusNotFound)
		return nil, false
	}
	return &booking, true
}

func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	actor, err := utils.CurrentUser(h.db, r)
	if err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	booking, ok := h.loadBooking(w, r)
	if !ok {
		return
	}

	// A booking the actor may not read is reported as missing, not forbidden,
	// so its existence does not leak.
	if !authz.CanObject(actor, authz.ResourceBooking, authz.ActionRetrieve, h.ownsBooking(actor, booking)) {
		http.Error(w, "Booking not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(booking)
}

func (h *BookingHandler) UpdateBooking(w http.ResponseWriter, r *http.Request) {
	actor, err := utils.CurrentUser(h.db, r)
	if err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	booking, ok := h.loadBooking(w, r)
	if !ok {
		return
	}

	owned := h.ownsBooking(actor, booking)
	if !authz.CanObject(actor, authz.ResourceBooking, authz.ActionRetrieve, owned) {
		http.Error(w, "Booking not found", http.StatusNotFound)
		return
	}
	if !authz.CanObject(actor, authz.ResourceBooking, authz.ActionUpdate, owned) {
		http.Error(w, "You cannot update this booking", http.StatusForbidden)
		return
	}

	var updateRequest struct {
		Status      *models.BookingStatus `json:"status"`
		BookingDate *string               `json:"booking_date"`
		BookingTime *string               `json:"booking_time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&updateRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if !actor.Staff() {
		// Client updates are scoped to a single field and a single value:
		// status=cancelled. Anything else is out of scope for the role.
		if updateRequest.BookingDate != nil || updateRequest.BookingTime != nil ||
			updateRequest.Status == nil || *updateRequest.Status != models.BookingCancelled {
			validation.WriteHTTP(w, validation.New("status", validation.CodeClientUpdateScopeViolation,
				"you may only cancel your own booking"))
			return
		}
	}

	if updateRequest.Status != nil {
		if err := ValidateTransition(booking.Status, *updateRequest.Status); err != nil {
			validation.WriteHTTP(w, validation.AsError(err))
			return
		}
		booking.Status = *updateRequest.Status
	}

	// Staff may move a booking to another slot instance; the change goes back
	// through admission. A plain status change does not: cancelling a booking
	// whose date already passed must still work.
	slotChanged := updateRequest.BookingDate != nil || updateRequest.BookingTime != nil
	if slotChanged {
		// Admission needs both sides of the booking; either may have been
		// deleted since the booking was placed.
		if booking.Client == nil {
			validation.WriteHTTP(w, validation.New("client_id", validation.CodeInvalidValue,
				"the booking's client no longer exists"))
			return
		}
		if booking.Schedule == nil {
			validation.WriteHTTP(w, validation.New("schedule_id", validation.CodeInvalidValue,
				"the booking's schedule no longer exists"))
			return
		}
	}
	if updateRequest.BookingDate != nil {
		date, err := ParseDate(*updateRequest.BookingDate)
		if err != nil {
			validation.WriteHTTP(w, validation.New("booking_date", validation.CodeInvalidValue, err.Error()))
			return
		}
		booking.BookingDate = date
	}
	if updateRequest.BookingTime != nil {
		booking.BookingTime = *updateRequest.BookingTime
	}

	confirming := updateRequest.Status != nil && *updateRequest.Status == models.BookingConfirmed
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if slotChanged {
			if err := Admit(tx, AdmissionRequest{
				Client:    booking.Client,
				Schedule:  booking.Schedule,
				Date:      booking.BookingDate,
				Clock:     booking.BookingTime,
				ExcludeID: booking.ID,
			}); err != nil {
				return err
			}
		} else if confirming {
			// Confirming skips the full admission chain but still must not
			// seat two confirmed bookings on one slot instance.
			if err := checkConfirmedConflict(tx, booking.ScheduleID, booking.BookingDate,
				booking.BookingTime, booking.ID); err != nil {
				return err
			}
		}
		return tx.Save(booking).Error
	})
	if err != nil {
		if verr := validation.AsError(err); verr != nil {
			validation.WriteHTTP(w, verr)
			return
		}
		// A writer that raced past the check trips the partial unique index;
		// that is still caller-visible contention, not a storage fault.
		if db.IsUniqueViolation(err) {
			validation.WriteHTTP(w, validation.New("schedule_id", validation.CodeSlotAlreadyTaken,
				"this schedule slot is already taken by another booking"))
			return
		}
		h.logger.Error("error updating booking", zap.Uint("booking_id", booking.ID), zap.Error(err))
		http.Error(w, "Error updating booking", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(booking)
}

func (h *BookingHandler) DeleteBooking(w http.ResponseWriter, r *http.Request) {
	actor, err := utils.CurrentUser(h.db, r)
	if err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	booking, ok := h.loadBooking(w, r)
	if !ok {
		return
	}

	owned := h.ownsBooking(actor, booking)
	if !authz.CanObject(actor, authz.ResourceBooking, authz.ActionRetrieve, owned) {
		http.Error(w, "Booking not found", http.StatusNotFound)
		return
	}
	if !authz.CanObject(actor, authz.ResourceBooking, authz.ActionDestroy, owned) {
		http.Error(w, "You cannot delete this booking", http.StatusForbidden)
		return
	}

	if actor.Staff() {
		if err := h.db.Delete(booking).Error; err != nil {
			http.Error(w, "Error deleting booking", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	// A client "delete" is a cancellation: the record stays. Finalized
	// bookings cannot be cancelled again.
	if booking.Status.Terminal() {
		validation.WriteHTTP(w, validation.New("status", validation.CodeCannotCancelFinalized,
			"cannot cancel a booking that is already cancelled or completed"))
		return
	}

	booking.Status = models.BookingCancelled
	if err := h.db.Save(booking).Error; err != nil {
		http.Error(w, "Error cancelling booking", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

package trainer

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fitbook/fitbook-server/cmd/models"
	"github.com/fitbook/fitbook-server/cmd/utils"
	"github.com/fitbook/fitbook-server/db"
	"github.com/fitbook/fitbook-server/service/authz"
	"github.com/fitbook/fitbook-server/service/validation"
)

type TrainerHandler struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewTrainerHandler(db *gorm.DB, logger *zap.Logger) *TrainerHandler {
	return &TrainerHandler{db: db, logger: logger}
}

func (h *TrainerHandler) RegisterRoutes(router *mux.Router) {
	// The trainer listing is a public catalog; writes stay role-gated.
	router.HandleFunc("/trainers", utils.OptionalAuth(h.GetTrainers)).Methods("GET")
	router.HandleFunc("/trainers/{id:[0-9]+}", utils.OptionalAuth(h.GetTrainer)).Methods("GET")
	router.HandleFunc("/trainers", utils.AuthMiddleware(h.CreateTrainer)).Methods("POST")
	router.HandleFunc("/trainers/{id:[0-9]+}", utils.AuthMiddleware(h.UpdateTrainer)).Methods("PUT", "PATCH")
	router.HandleFunc("/trainers/{id:[0-9]+}", utils.AuthMiddleware(h.DeleteTrainer)).Methods("DELETE")
}

type trainerPayload struct {
	UserID          uint    `json:"user_id"`
	Description     *string `json:"description"`
	Specialization  *string `json:"specialization" validate:"omitempty,max=100"`
	ExperienceYears *int    `json:"experience_years" validate:"omitempty,min=0,max=60"`
	ClubIDs         []uint  `json:"club_ids"`
}

// validateProfile enforces the trainer profile invariants: the owning user
// must hold the trainer role and be an adult when a birthday is known.
func validateProfile(owner *models.User) *validation.Error {
	if !owner.IsTrainer() {
		return validation.New("user_id", validation.CodeInvalidValue,
			"a trainer profile can only be attached to a user with the trainer role")
	}
	if age := owner.Age(time.Now()); age >= 0 && age < 18 {
		return validation.New("user_id", validation.CodeInvalidValue,
			"a trainer must be at least 18 years old")
	}
	return nil
}

// loadClubs resolves the posted club id list, rejecting ids that do not
// exist so the affiliation set never points at phantom clubs.
func (h *TrainerHandler) loadClubs(ids []uint) ([]models.FitnessClub, *validation.Error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var clubs []models.FitnessClub
	if err := h.db.Find(&clubs, ids).Error; err != nil {
		return nil, validation.New("club_ids", validation.CodeInvalidValue, "error resolving clubs")
	}
	if len(clubs) != len(ids) {
		return nil, validation.New("club_ids", validation.CodeInvalidValue, "one or more clubs do not exist")
	}
	return clubs, nil
}

func (h *TrainerHandler) GetTrainers(w http.ResponseWriter, r *http.Request) {
	actor, err := utils.MaybeCurrentUser(h.db, r)
	if err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	if !authz.Can(actor, authz.ResourceTrainer, authz.ActionList) {
		http.Error(w, "You cannot list trainers", http.StatusForbidden)
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

	query := h.db.Model(&models.Trainer{}).Preload("User").Preload("Clubs")

	if specialization := r.URL.Query().Get("specialization"); specialization != "" {
		query = query.Where("specialization LIKE ?", "%"+specialization+"%")
	}
	if clubID := r.URL.Query().Get("club_id"); clubID != "" {
		query = query.Joins("JOIN trainer_clubs ON trainer_clubs.trainer_id = trainers.id").
			Where("trainer_clubs.fitness_club_id = ?", clubID)
	}

	var total int64
	query.Count(&total)

	var trainers []models.Trainer
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).
		Order("id").Find(&trainers).Error; err != nil {
		http.Error(w, "Error retrieving trainers", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"trainers":    trainers,
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
		"total_pages": (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

func (h *TrainerHandler) GetTrainer(w http.ResponseWriter, r *http.Request) {
	actor, err := utils.MaybeCurrentUser(h.db, r)
	if err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	if !authz.Can(actor, authz.ResourceTrainer, authz.ActionRetrieve) {
		http.Error(w, "You cannot view trainers", http.StatusForbidden)
		return
	}

	vars := mux.Vars(r)
	trainerID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid trainer ID", http.StatusBadRequest)
		return
	}

	var trainer models.Trainer
	if err := h.db.Preload("User").Preload("Clubs").First(&trainer, trainerID).Error; err != nil {
		http.Error(w, "Trainer not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(trainer)
}

func (h *TrainerHandler) CreateTrainer(w http.ResponseWriter, r *http.Request) {
	actor, err := utils.CurrentUser(h.db, r)
	if err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	if !authz.Can(actor, authz.ResourceTrainer, authz.ActionCreate) {
		http.Error(w, "You cannot create a trainer profile", http.StatusForbidden)
		return
	}

	var payload trainerPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if errs := validation.Struct(payload); errs != nil {
		validation.WriteHTTP(w, errs...)
		return
	}

	// Trainers create their own profile, once. Staff may create a profile for
	// any trainer-role user.
	owner := actor
	if actor.Staff() && payload.UserID != 0 && payload.UserID != actor.ID {
		var other models.User
		if err := h.db.First(&other, payload.UserID).Error; err != nil {
			http.Error(w, "User not found", http.StatusNotFound)
			return
		}
		owner = &other
	} else if !actor.Staff() && payload.UserID != 0 && payload.UserID != actor.ID {
		http.Error(w, "You can only create a trainer profile for yourself", http.StatusForbidden)
		return
	}

	if verr := validateProfile(owner); verr != nil {
		validation.WriteHTTP(w, verr)
		return
	}

	var existing models.Trainer
	if err := h.db.Where("user_id = ?", owner.ID).First(&existing).Error; err == nil {
		http.Error(w, "This user already has a trainer profile", http.StatusForbidden)
		return
	}

	clubs, verr := h.loadClubs(payload.ClubIDs)
	if verr != nil {
		validation.WriteHTTP(w, verr)
		return
	}

	trainer := models.Trainer{
		UserID:          owner.ID,
		Description:     payload.Description,
		Specialization:  payload.Specialization,
		ExperienceYears: payload.ExperienceYears,
		Clubs:           clubs,
	}

	if err := h.db.Create(&trainer).Error; err != nil {
		if db.IsUniqueViolation(err) {
			http.Error(w, "This user already has a trainer profile", http.StatusConflict)
			return
		}
		h.logger.Error("error creating trainer profile", zap.Error(err))
		http.Error(w, "Error creating trainer profile", http.StatusInternalServerError)
		return
	}

	h.db.Preload("User").Preload("Clubs").First(&trainer, trainer.ID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(trainer)
}


func (h *TrainerHandler) UpdateTrainer(w http.ResponseWriter, r *http.Request) {
	actor, err := utils.CurrentUser(h.db, r)
	if err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	trainerID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid trainer ID", http.StatusBadRequest)
		return
	}

	var trainer models.Trainer
	if err := h.db.Preload("User").Preload("Clubs").First(&trainer, trainerID).Error; err != nil {
		http.Error(w, "Trainer not found", http.StatusNotFound)
		return
	}

	owned := trainer.UserID == actor.ID
	if !authz.CanObject(actor, authz.ResourceTrainer, authz.ActionUpdate, owned) {
		http.Error(w, "You can only update your own trainer profile", http.StatusForbidden)
		return
	}

	var payload struct {
		Description     *string `json:"description"`
		Specialization  *string `json:"specialization" validate:"omitempty,max=100"`
		ExperienceYears *int    `json:"experience_years" validate:"omitempty,min=0,max=60"`
		ClubIDs         []uint  `json:"club_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if errs := validation.Struct(payload); errs != nil {
		validation.WriteHTTP(w, errs...)
		return
	}

	if trainer.User != nil {
		if verr := validateProfile(trainer.User); verr != nil {
			validation.WriteHTTP(w, verr)
			return
		}
	}

	if payload.Description != nil {
		trainer.Description = payload.Description
	}
	if payload.Specialization != nil {
		trainer.Specialization = payload.Specialization
	}
	if payload.ExperienceYears != nil {
		trainer.ExperienceYears = payload.ExperienceYears
	}

	if err := h.db.Save(&trainer).Error; err != nil {
		http.Error(w, "Error updating trainer profile", http.StatusInternalServerError)
		return
	}

	if payload.ClubIDs != nil {
		clubs, verr := h.loadClubs(payload.ClubIDs)
		if verr != nil {
			validation.WriteHTTP(w, verr)
			return
		}
		if err := h.db.Model(&trainer).Association("Clubs").Replace(clubs); err != nil {
			http.Error(w, "Error updating club affiliations", http.StatusInternalServerError)
			return
		}
	}

	h.db.Preload("User").Preload("Clubs").First(&trainer, trainer.ID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(trainer)
}

func (h *TrainerHandler) DeleteTrainer(w http.ResponseWriter, r *http.Request) {
	actor, err := utils.CurrentUser(h.db, r)
	if err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	// Profiles are removed by administrators only; owners cannot delete
	// themselves out of their schedule obligations.
	if !actor.Staff() {
		http.Error(w, "Only administrators can delete trainer profiles", http.StatusForbidden)
		return
	}

	vars := mux.Vars(r)
	trainerID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid trainer ID", http.StatusBadRequest)
		return
	}

	result := h.db.Delete(&models.Trainer{}, trainerID)
	if result.Error != nil {
		http.Error(w, "Error deleting trainer profile", http.StatusInternalServerError)
		return
	}
	if result.RowsAffected == 0 {
		http.Error(w, "Trainer not found", http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

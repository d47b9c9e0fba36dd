package club

import (
	"encoding/json"
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

type ClubHandler struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewClubHandler(db *gorm.DB, logger *zap.Logger) *ClubHandler {
	return &ClubHandler{db: db, logger: logger}
}

func (h *ClubHandler) RegisterRoutes(router *mux.Router) {
	// The club catalog is public; mutation is admin-only.
	router.HandleFunc("/clubs", utils.OptionalAuth(h.GetClubs)).Methods("GET")
	router.HandleFunc("/clubs/{id:[0-9]+}", utils.OptionalAuth(h.GetClub)).Methods("GET")
	router.HandleFunc("/clubs", utils.AuthMiddleware(h.CreateClub)).Methods("POST")
	router.HandleFunc("/clubs/{id:[0-9]+}", utils.AuthMiddleware(h.UpdateClub)).Methods("PUT", "PATCH")
	router.HandleFunc("/clubs/{id:[0-9]+}", utils.AuthMiddleware(h.DeleteClub)).Methods("DELETE")
}

type clubPayload struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Address     *string `json:"address"`
	PhoneNumber *string `json:"phone_number" validate:"omitempty,ruphone"`
	Description *string `json:"description"`
}

func (h *ClubHandler) GetClubs(w http.ResponseWriter, r *http.Request) {
	actor, err := utils.MaybeCurrentUser(h.db, r)
	if err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	if !authz.Can(actor, authz.ResourceClub, authz.ActionList) {
		http.Error(w, "You cannot list clubs", http.StatusForbidden)
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

	query := h.db.Model(&models.FitnessClub{})

	if name := r.URL.Query().Get("name"); name != "" {
		query = query.Where("name LIKE ?", "%"+name+"%")
	}

	var total int64
	query.Count(&total)

	var clubs []models.FitnessClub
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).
		Order("name").Find(&clubs).Error; err != nil {
		http.Error(w, "Error retrieving clubs", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"clubs":       clubs,
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
		"total_pages": (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

func (h *ClubHandler) GetClub(w http.ResponseWriter, r *http.Request) {
	actor, err := utils.MaybeCurrentUser(h.db, r)
	if err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	if !authz.Can(actor, authz.ResourceClub, authz.ActionRetrieve) {
		http.Error(w, "You cannot view clubs", http.StatusForbidden)
		return
	}

	vars := mux.Vars(r)
	clubID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid club ID", http.StatusBadRequest)
		return
	}

	var fitnessClub models.FitnessClub
	if err := h.db.First(&fitnessClub, clubID).Error; err != nil {
		http.Error(w, "Club not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(fitnessClub)
}

func (h *ClubHandler) CreateClub(w http.ResponseWriter, r *http.Request) {
	actor, err := utils.CurrentUser(h.db, r)
	if err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	if !authz.Can(actor, authz.ResourceClub, authz.ActionCreate) {
		http.Error(w, "Only administrators can create clubs", http.StatusForbidden)
		return
	}

	var payload clubPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if errs := validation.Struct(payload); errs != nil {
		validation.WriteHTTP(w, errs...)
		return
	}

	fitnessClub := models.FitnessClub{
		Name:        payload.Name,
		Address:     payload.Address,
		PhoneNumber: payload.PhoneNumber,
		Description: payload.Description,
	}

	if err := h.db.Create(&fitnessClub).Error; err != nil {
		if db.IsUniqueViolation(err) {
			http.Error(w, "A club with this name already exists", http.StatusConflict)
			return
		}
		h.logger.Error("error creating club", zap.Error(err))
		http.Error(w, "Error creating club", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(fitnessClub)
}


func (h *ClubHandler) UpdateClub(w http.ResponseWriter, r *http.Request) {
	actor, err := utils.CurrentUser(h.db, r)
	if err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	if !authz.Can(actor, authz.ResourceClub, authz.ActionUpdate) {
		http.Error(w, "Only administrators can update clubs", http.StatusForbidden)
		return
	}

	vars := mux.Vars(r)
	clubID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid club ID", http.StatusBadRequest)
		return
	}

	var fitnessClub models.FitnessClub
	if err := h.db.First(&fitnessClub, clubID).Error; err != nil {
		http.Error(w, "Club not found", http.StatusNotFound)
		return
	}

	var payload struct {
		Name        *string `json:"name" validate:"omitempty,max=100"`
		Address     *string `json:"address"`
		PhoneNumber *string `json:"phone_number" validate:"omitempty,ruphone"`
		Description *string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if errs := validation.Struct(payload); errs != nil {
		validation.WriteHTTP(w, errs...)
		return
	}

	if payload.Name != nil {
		fitnessClub.Name = *payload.Name
	}
	if payload.Address != nil {
		fitnessClub.Address = payload.Address
	}
	if payload.PhoneNumber != nil {
		fitnessClub.PhoneNumber = payload.PhoneNumber
	}
	if payload.Description != nil {
		fitnessClub.Description = payload.Description
	}

	if err := h.db.Save(&fitnessClub).Error; err != nil {
		if db.IsUniqueViolation(err) {
			http.Error(w, "A club with this name already exists", http.StatusConflict)
			return
		}
		http.Error(w, "Error updating club", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(fitnessClub)
}

func (h *ClubHandler) DeleteClub(w http.ResponseWriter, r *http.Request) {
	actor, err := utils.CurrentUser(h.db, r)
	if err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	if !authz.Can(actor, authz.ResourceClub, authz.ActionDestroy) {
		http.Error(w, "Only administrators can delete clubs", http.StatusForbidden)
		return
	}

	vars := mux.Vars(r)
	clubID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid club ID", http.StatusBadRequest)
		return
	}

	result := h.db.Delete(&models.FitnessClub{}, clubID)
	if result.Error != nil {
		http.Error(w, "Error deleting club", http.StatusInternalServerError)
		return
	}
	if result.RowsAffected == 0 {
		http.Error(w, "Club not found", http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

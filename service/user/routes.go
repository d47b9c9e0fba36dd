package user

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/fitbook/fitbook-server/cmd/models"
	"github.com/fitbook/fitbook-server/cmd/utils"
	"github.com/fitbook/fitbook-server/db"
	"github.com/fitbook/fitbook-server/service/validation"
)

type Handler struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewHandler(db *gorm.DB, logger *zap.Logger) *Handler {
	return &Handler{db: db, logger: logger}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/register", h.HandleRegister).Methods("POST")
	router.HandleFunc("/login", h.handleLogin).Methods("POST")
	router.HandleFunc("/refresh", h.handleRefreshToken).Methods("POST")

	router.HandleFunc("/me", utils.AuthMiddleware(h.GetMe)).Methods("GET")
	router.HandleFunc("/me", utils.AuthMiddleware(h.UpdateMe)).Methods("PUT", "PATCH")
	router.HandleFunc("/me", utils.AuthMiddleware(h.DeleteMe)).Methods("DELETE")

	router.HandleFunc("/users", utils.AuthMiddleware(h.GetUsers)).Methods("GET")
	router.HandleFunc("/users", utils.AuthMiddleware(h.CreateUser)).Methods("POST")
	router.HandleFunc("/users/{id:[0-9]+}", utils.AuthMiddleware(h.GetUser)).Methods("GET")
	router.HandleFunc("/users/{id:[0-9]+}", utils.AuthMiddleware(h.UpdateUser)).Methods("PUT", "PATCH")
	router.HandleFunc("/users/{id:[0-9]+}", utils.AuthMiddleware(h.DeleteUser)).Methods("DELETE")
}

type registerPayload struct {
	Username    string  `json:"username" validate:"required,min=3,max=150"`
	Email       string  `json:"email" validate:"required,email"`
	Password    string  `json:"password" validate:"required,min=6"`
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	Birthday    *string `json:"birthday"`
	Gender      *string `json:"gender" validate:"omitempty,oneof=M F"`
	PhoneNumber *string `json:"phone_number" validate:"omitempty,ruphone"`
}

// buildUser turns a validated register payload into a user row. The role is
// the caller's to decide: self-registration always passes client.
func (h *Handler) buildUser(payload registerPayload, role models.Role) (*models.User, *validation.Error) {
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(payload.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, validation.New("password", validation.CodeInvalidValue, "could not hash password")
	}

	user := &models.User{
		Username:     payload.Username,
		Email:        payload.Email,
		PasswordHash: string(passwordHash),
		FirstName:    payload.FirstName,
		LastName:     payload.LastName,
		Role:         role,
		PhoneNumber:  payload.PhoneNumber,
	}

	if payload.Birthday != nil {
		birthday, err := time.Parse("2006-01-02", *payload.Birthday)
		if err != nil {
			return nil, validation.New("birthday", validation.CodeInvalidValue, "invalid date, expected YYYY-MM-DD")
		}
		user.Birthday = &birthday
	}
	if payload.Gender != nil {
		g := models.Gender(*payload.Gender)
		user.Gender = &g
	}

	return user, nil
}

// HandleRegister is public self-registration. The role is forced to client
// regardless of what the payload claims.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var payload registerPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if errs := validation.Struct(payload); errs != nil {
		validation.WriteHTTP(w, errs...)
		return
	}

	user, verr := h.buildUser(payload, models.RoleClient)
	if verr != nil {
		validation.WriteHTTP(w, verr)
		return
	}

	if err := h.db.Create(user).Error; err != nil {
		if db.IsUniqueViolation(err) {
			http.Error(w, "Username, email or phone number is already in use", http.StatusConflict)
			return
		}
		h.logger.Error("error registering user", zap.Error(err))
		http.Error(w, "Error registering user", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var loginRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&loginRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var user models.User
	if err := h.db.Where("email = ?", loginRequest.Email).First(&user).Error; err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(loginRequest.Password)); err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	accessToken, err := generateJWT(user.ID, 24*time.Hour)
	if err != nil {
		http.Error(w, "Error generating access token", http.StatusInternalServerError)
		return
	}

	refreshToken, err := generateRefreshToken(user.ID)
	if err != nil {
		http.Error(w, "Error generating refresh token", http.StatusInternalServerError)
		return
	}

	if err := saveRefreshToken(h.db, user.ID, refreshToken); err != nil {
		http.Error(w, "Error saving refresh token", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"message":       "Login successful",
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"user_id":       user.ID,
		"role":          user.Role,
	}

	if user.IsTrainer() {
		var trainer models.Trainer
		result := h.db.Where("user_id = ?", user.ID).First(&trainer)
		if result.Error == nil {
			response["trainer_id"] = trainer.ID
		} else if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			http.Error(w, "Error fetching trainer profile", http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (h *Handler) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	var refreshRequest struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&refreshRequest); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	tx := h.db.Begin()

	var user models.User
	if err := tx.Where("refresh_token = ?", refreshRequest.RefreshToken).First(&user).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Invalid refresh token", http.StatusUnauthorized)
		return
	}

	if user.RefreshTokenExpiredAt.Before(time.Now()) {
		tx.Rollback()
		http.Error(w, "Refresh token expired", http.StatusUnauthorized)
		return
	}

	newAccessToken, err := generateJWT(user.ID, 24*time.Hour)
	if err != nil {
		tx.Rollback()
		http.Error(w, "Error generating new token", http.StatusInternalServerError)
		return
	}

	// Rotate the refresh token on every use.
	newRefreshToken, err := generateRefreshToken(user.ID)
	if err != nil {
		tx.Rollback()
		http.Error(w, "Error generating refresh token", http.StatusInternalServerError)
		return
	}

	if err := tx.Model(&user).Updates(map[string]interface{}{
		"refresh_token":            newRefreshToken,
		"refresh_token_expired_at": time.Now().Add(30 * 24 * time.Hour),
	}).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error updating refresh token", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit().Error; err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"access_token":  newAccessToken,
		"refresh_token": newRefreshToken,
	})
}

func generateJWT(userID uint, ttl time.Duration) (string, error) {
	claims := &jwt.RegisteredClaims{
		Subject:   fmt.Sprint(userID),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(os.Getenv("SECRET_KEY")))
}

func generateRefreshToken(userID uint) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	mac := hmac.New(sha256.New, []byte(os.Getenv("SECRET_KEY")))
	mac.Write([]byte(fmt.Sprintf("%d", userID)))
	mac.Write(b)

	signature := mac.Sum(nil)
	return fmt.Sprintf("%d_%x_%x", userID, b, signature), nil
}

func saveRefreshToken(db *gorm.DB, userID uint, refreshToken string) error {
	return db.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"refresh_token":            refreshToken,
		"refresh_token_expired_at": time.Now().Add(30 * 24 * time.Hour),
	}).Error
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	actor, err := utils.CurrentUser(h.db, r)
	if err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	h.db.Preload("TrainerProfile.Clubs").First(actor, actor.ID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(actor)
}

type updatePayload struct {
	FirstName   *string `json:"first_name"`
	LastName    *string `json:"last_name"`
	Email       *string `json:"email" validate:"omitempty,email"`
	Birthday    *string `json:"birthday"`
	Gender      *string `json:"gender" validate:"omitempty,oneof=M F"`
	PhoneNumber *string `json:"phone_number" validate:"omitempty,ruphone"`
	Role        *string `json:"role" validate:"omitempty,oneof=client trainer admin"`
}

// applyUpdate copies an update payload onto a user row. allowRole gates the
// role field: only admins may change roles.
func applyUpdate(user *models.User, payload updatePayload, allowRole bool) *validation.Error {
	if payload.FirstName != nil {
		user.FirstName = *payload.FirstName
	}
	if payload.LastName != nil {
		user.LastName = *payload.LastName
	}
	if payload.Email != nil {
		user.Email = *payload.Email
	}
	if payload.Birthday != nil {
		birthday, err := time.Parse("2006-01-02", *payload.Birthday)
		if err != nil {
			return validation.New("birthday", validation.CodeInvalidValue, "invalid date, expected YYYY-MM-DD")
		}
		user.Birthday = &birthday
	}
	if payload.Gender != nil {
		g := models.Gender(*payload.Gender)
		user.Gender = &g
	}
	if payload.PhoneNumber != nil {
		user.PhoneNumber = payload.PhoneNumber
	}
	if payload.Role != nil {
		if !allowRole {
			return validation.New("role", validation.CodeInvalidValue, "only administrators can change roles")
		}
		user.Role = models.Role(*payload.Role)
	}
	return nil
}

func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	actor, err := utils.CurrentUser(h.db, r)
	if err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	var payload updatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if errs := validation.Struct(payload); errs != nil {
		validation.WriteHTTP(w, errs...)
		return
	}

	if verr := applyUpdate(actor, payload, actor.Staff()); verr != nil {
		validation.WriteHTTP(w, verr)
		return
	}

	if err := h.db.Save(actor).Error; err != nil {
		if db.IsUniqueViolation(err) {
			http.Error(w, "Email or phone number is already in use", http.StatusConflict)
			return
		}
		http.Error(w, "Error updating user", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(actor)
}

func (h *Handler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	actor, err := utils.CurrentUser(h.db, r)
	if err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	if err := h.db.Delete(actor).Error; err != nil {
		http.Error(w, "Error deleting user", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// requireStaff guards the admin user collection.
func (h *Handler) requireStaff(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	actor, err := utils.CurrentUser(h.db, r)
	if err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return nil, false
	}
	if !actor.Staff() {
		http.Error(w, "Administrator access required", http.StatusForbidden)
		return nil, false
	}
	return actor, true
}

func (h *Handler) GetUsers(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireStaff(w, r); !ok {
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

	query := h.db.Model(&models.User{})

	if role := r.URL.Query().Get("role"); role != "" {
		query = query.Where("role = ?", role)
	}

	var total int64
	query.Count(&total)

	var users []models.User
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).
		Order("id").Find(&users).Error; err != nil {
		http.Error(w, "Error retrieving users", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"users":       users,
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
		"total_pages": (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

// CreateUser is the admin variant of registration: the role comes from the
// payload instead of being forced to client.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireStaff(w, r); !ok {
		return
	}

	var payload struct {
		registerPayload
		Role    string `json:"role" validate:"omitempty,oneof=client trainer admin"`
		IsStaff bool   `json:"is_staff"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if errs := validation.Struct(payload); errs != nil {
		validation.WriteHTTP(w, errs...)
		return
	}

	role := models.Role(payload.Role)
	if role == "" {
		role = models.RoleClient
	}

	user, verr := h.buildUser(payload.registerPayload, role)
	if verr != nil {
		validation.WriteHTTP(w, verr)
		return
	}
	user.IsStaff = payload.IsStaff

	if err := h.db.Create(user).Error; err != nil {
		if db.IsUniqueViolation(err) {
			http.Error(w, "Username, email or phone number is already in use", http.StatusConflict)
			return
		}
		http.Error(w, "Error creating user", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireStaff(w, r); !ok {
		return
	}

	vars := mux.Vars(r)
	userID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	var user models.User
	if err := h.db.Preload("TrainerProfile.Clubs").First(&user, userID).Error; err != nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireStaff(w, r); !ok {
		return
	}

	vars := mux.Vars(r)
	userID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	var user models.User
	if err := h.db.First(&user, userID).Error; err != nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	var payload updatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if errs := validation.Struct(payload); errs != nil {
		validation.WriteHTTP(w, errs...)
		return
	}

	if verr := applyUpdate(&user, payload, true); verr != nil {
		validation.WriteHTTP(w, verr)
		return
	}

	if err := h.db.Save(&user).Error; err != nil {
		if db.IsUniqueViolation(err) {
			http.Error(w, "Email or phone number is already in use", http.StatusConflict)
			return
		}
		http.Error(w, "Error updating user", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireStaff(w, r); !ok {
		return
	}

	vars := mux.Vars(r)
	userID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	result := h.db.Delete(&models.User{}, userID)
	if result.Error != nil {
		http.Error(w, "Error deleting user", http.StatusInternalServerError)
		return
	}
	if result.RowsAffected == 0 {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

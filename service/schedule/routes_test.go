package schedule

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fitbook/fitbook-server/cmd/models"
)

func bearerToken(t *testing.T, userID uint) string {
	t.Helper()
	claims := &jwt.RegisteredClaims{
		Subject:   fmt.Sprint(userID),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
		SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return "Bearer " + token
}

func scheduleRouter(conn *gorm.DB) *mux.Router {
	router := mux.NewRouter()
	NewScheduleHandler(conn, zap.NewNop()).RegisterRoutes(router)
	return router
}

func TestUpdateOrphanedSchedule(t *testing.T) {
	t.Setenv("SECRET_KEY", "test-secret")
	conn := testDB(t)
	trainer, club := seedTrainer(t, conn)
	router := scheduleRouter(conn)

	admin := &models.User{
		Username:     "admin",
		Email:        "admin@example.com",
		PasswordHash: "x",
		Role:         models.RoleAdmin,
	}
	if err := conn.Create(admin).Error; err != nil {
		t.Fatalf("creating admin: %v", err)
	}

	s := slot(trainer, club, models.Monday, "10:00", "11:00")
	if err := conn.Create(s).Error; err != nil {
		t.Fatalf("creating schedule: %v", err)
	}

	// Deleting the trainer profile leaves the slot behind without an owner.
	if err := conn.Delete(&models.Trainer{}, trainer.ID).Error; err != nil {
		t.Fatalf("deleting trainer: %v", err)
	}

	body, _ := json.Marshal(map[string]string{"start_time": "09:00"})
	req := httptest.NewRequest(http.MethodPatch, fmt.Sprintf("/schedules/%d", s.ID), bytes.NewReader(body))
	req.Header.Set("Authorization", bearerToken(t, admin.ID))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Errors map[string]string `json:"errors"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if resp.Errors["trainer_id"] == "" {
		t.Errorf("expected an error attributed to trainer_id, got %v", resp.Errors)
	}
}

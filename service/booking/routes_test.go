package booking

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

func bookingRouter(conn *gorm.DB) *mux.Router {
	router := mux.NewRouter()
	NewBookingHandler(conn, zap.NewNop()).RegisterRoutes(router)
	return router
}

func doJSON(t *testing.T, router *mux.Router, method, path, auth string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encoding payload: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &body)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateBookingEndpoint(t *testing.T) {
	t.Setenv("SECRET_KEY", "test-secret")
	conn := testDB(t)
	fx := seed(t, conn)
	router := bookingRouter(conn)
	date := nextOn(models.Wednesday).Format("2006-01-02")

	rec := doJSON(t, router, http.MethodPost, "/bookings", bearerToken(t, fx.client.ID), map[string]interface{}{
		"schedule_id":  fx.schedule.ID,
		"booking_date": date,
		"booking_time": "10:00",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var created models.Booking
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if created.Status != models.BookingPending {
		t.Errorf("new booking status = %q, want pending", created.Status)
	}
	if created.ClientID != fx.client.ID {
		t.Errorf("client_id = %d, want %d", created.ClientID, fx.client.ID)
	}

	// The same request again is a duplicate.
	rec = doJSON(t, router, http.MethodPost, "/bookings", bearerToken(t, fx.client.ID), map[string]interface{}{
		"schedule_id":  fx.schedule.ID,
		"booking_date": date,
		"booking_time": "10:00",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("duplicate: status = %d, want 400", rec.Code)
	}
}

func TestCreateBookingIgnoresClientIDFromClients(t *testing.T) {
	t.Setenv("SECRET_KEY", "test-secret")
	conn := testDB(t)
	fx := seed(t, conn)
	router := bookingRouter(conn)

	victim := &models.User{
		Username:     "victim",
		Email:        "victim@example.com",
		PasswordHash: "x",
		Role:         models.RoleClient,
	}
	if err := conn.Create(victim).Error; err != nil {
		t.Fatalf("creating user: %v", err)
	}

	rec := doJSON(t, router, http.MethodPost, "/bookings", bearerToken(t, fx.client.ID), map[string]interface{}{
		"client_id":    victim.ID,
		"schedule_id":  fx.schedule.ID,
		"booking_date": nextOn(models.Wednesday).Format("2006-01-02"),
		"booking_time": "10:00",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var created models.Booking
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if created.ClientID != fx.client.ID {
		t.Errorf("client_id = %d, booking must belong to the requester %d", created.ClientID, fx.client.ID)
	}
}

func TestBookingVisibilityScopes(t *testing.T) {
	t.Setenv("SECRET_KEY", "test-secret")
	conn := testDB(t)
	fx := seed(t, conn)
	router := bookingRouter(conn)

	other := &models.User{
		Username:     "client2",
		Email:        "client2@example.com",
		PasswordHash: "x",
		Role:         models.RoleClient,
	}
	if err := conn.Create(other).Error; err != nil {
		t.Fatalf("creating user: %v", err)
	}

	booking := &models.Booking{
		ClientID:    fx.client.ID,
		ScheduleID:  fx.schedule.ID,
		BookingDate: nextOn(models.Wednesday),
		BookingTime: "10:00",
		Status:      models.BookingPending,
	}
	if err := conn.Create(booking).Error; err != nil {
		t.Fatalf("creating booking: %v", err)
	}
	path := fmt.Sprintf("/bookings/%d", booking.ID)

	// Owner sees it.
	if rec := doJSON(t, router, http.MethodGet, path, bearerToken(t, fx.client.ID), nil); rec.Code != http.StatusOK {
		t.Errorf("owner: status = %d, want 200", rec.Code)
	}

	// The schedule's trainer sees it.
	if rec := doJSON(t, router, http.MethodGet, path, bearerToken(t, fx.trainer.UserID), nil); rec.Code != http.StatusOK {
		t.Errorf("trainer: status = %d, want 200", rec.Code)
	}

	// Another client gets 404, not 403: the record must not leak.
	if rec := doJSON(t, router, http.MethodGet, path, bearerToken(t, other.ID), nil); rec.Code != http.StatusNotFound {
		t.Errorf("other client: status = %d, want 404", rec.Code)
	}

	// The other client's list is empty.
	rec := doJSON(t, router, http.MethodGet, "/bookings", bearerToken(t, other.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status = %d", rec.Code)
	}
	var list struct {
		Total int64 `json:"total"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decoding list: %v", err)
	}
	if list.Total != 0 {
		t.Errorf("other client's list total = %d, want 0", list.Total)
	}
}

func TestClientCancelFlow(t *testing.T) {
	t.Setenv("SECRET_KEY", "test-secret")
	conn := testDB(t)
	fx := seed(t, conn)
	router := bookingRouter(conn)

	booking := &models.Booking{
		ClientID:    fx.client.ID,
		ScheduleID:  fx.schedule.ID,
		BookingDate: nextOn(models.Wednesday),
		BookingTime: "10:00",
		Status:      models.BookingPending,
	}
	if err := conn.Create(booking).Error; err != nil {
		t.Fatalf("creating booking: %v", err)
	}
	path := fmt.Sprintf("/bookings/%d", booking.ID)
	auth := bearerToken(t, fx.client.ID)

	// A client delete is a cancellation, not a removal.
	if rec := doJSON(t, router, http.MethodDelete, path, auth, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("cancel: status = %d", rec.Code)
	}

	var after models.Booking
	if err := conn.First(&after, booking.ID).Error; err != nil {
		t.Fatalf("booking should still exist: %v", err)
	}
	if after.Status != models.BookingCancelled {
		t.Fatalf("status = %q, want cancelled", after.Status)
	}

	// Cancelling a finalized booking fails.
	if rec := doJSON(t, router, http.MethodDelete, path, auth, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("second cancel: status = %d, want 400", rec.Code)
	}
}

func TestClientUpdateScope(t *testing.T) {
	t.Setenv("SECRET_KEY", "test-secret")
	conn := testDB(t)
	fx := seed(t, conn)
	router := bookingRouter(conn)

	booking := &models.Booking{
		ClientID:    fx.client.ID,
		ScheduleID:  fx.schedule.ID,
		BookingDate: nextOn(models.Wednesday),
		BookingTime: "10:00",
		Status:      models.BookingPending,
	}
	if err := conn.Create(booking).Error; err != nil {
		t.Fatalf("creating booking: %v", err)
	}
	path := fmt.Sprintf("/bookings/%d", booking.ID)
	auth := bearerToken(t, fx.client.ID)

	// Clients cannot confirm their own booking.
	rec := doJSON(t, router, http.MethodPatch, path, auth, map[string]string{"status": "confirmed"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("client confirm: status = %d, want 400", rec.Code)
	}

	// Clients cannot move the booking to another slot instance.
	rec = doJSON(t, router, http.MethodPatch, path, auth, map[string]string{"booking_time": "11:00"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("client reschedule: status = %d, want 400", rec.Code)
	}

	// status=cancelled is the one client update that goes through.
	rec = doJSON(t, router, http.MethodPatch, path, auth, map[string]string{"status": "cancelled"})
	if rec.Code != http.StatusOK {
		t.Errorf("client cancel via update: status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestStaffConfirmAndTerminalImmutability(t *testing.T) {
	t.Setenv("SECRET_KEY", "test-secret")
	conn := testDB(t)
	fx := seed(t, conn)
	router := bookingRouter(conn)

	admin := &models.User{
		Username:     "admin",
		Email:        "admin@example.com",
		PasswordHash: "x",
		Role:         models.RoleAdmin,
	}
	if err := conn.Create(admin).Error; err != nil {
		t.Fatalf("creating admin: %v", err)
	}

	booking := &models.Booking{
		ClientID:    fx.client.ID,
		ScheduleID:  fx.schedule.ID,
		BookingDate: nextOn(models.Wednesday),
		BookingTime: "10:00",
		Status:      models.BookingPending,
	}
	if err := conn.Create(booking).Error; err != nil {
		t.Fatalf("creating booking: %v", err)
	}
	path := fmt.Sprintf("/bookings/%d", booking.ID)
	auth := bearerToken(t, admin.ID)

	rec := doJSON(t, router, http.MethodPatch, path, auth, map[string]string{"status": "confirmed"})
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm: status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodPatch, path, auth, map[string]string{"status": "completed"})
	if rec.Code != http.StatusOK {
		t.Fatalf("complete: status = %d, body %s", rec.Code, rec.Body.String())
	}

	// Completed is terminal: even staff cannot move it.
	rec = doJSON(t, router, http.MethodPatch, path, auth, map[string]string{"status": "pending"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("reopen terminal: status = %d, want 400", rec.Code)
	}
}

func TestStaffSlotChangeWithDeletedClient(t *testing.T) {
	t.Setenv("SECRET_KEY", "test-secret")
	conn := testDB(t)
	fx := seed(t, conn)
	router := bookingRouter(conn)

	admin := &models.User{
		Username:     "admin",
		Email:        "admin@example.com",
		PasswordHash: "x",
		Role:         models.RoleAdmin,
	}
	if err := conn.Create(admin).Error; err != nil {
		t.Fatalf("creating admin: %v", err)
	}

	booking := &models.Booking{
		ClientID:    fx.client.ID,
		ScheduleID:  fx.schedule.ID,
		BookingDate: nextOn(models.Wednesday),
		BookingTime: "10:00",
		Status:      models.BookingPending,
	}
	if err := conn.Create(booking).Error; err != nil {
		t.Fatalf("creating booking: %v", err)
	}

	// The client account goes away; the booking row survives.
	if err := conn.Delete(&models.User{}, fx.client.ID).Error; err != nil {
		t.Fatalf("deleting client: %v", err)
	}

	rec := doJSON(t, router, http.MethodPatch, fmt.Sprintf("/bookings/%d", booking.ID),
		bearerToken(t, admin.ID), map[string]string{"booking_time": "11:00"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Errors map[string]string `json:"errors"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if resp.Errors["client_id"] == "" {
		t.Errorf("expected an error attributed to client_id, got %v", resp.Errors)
	}
}

func TestConfirmSecondPendingConflicts(t *testing.T) {
	t.Setenv("SECRET_KEY", "test-secret")
	conn := testDB(t)
	fx := seed(t, conn)
	router := bookingRouter(conn)

	admin := &models.User{
		Username:     "admin",
		Email:        "admin@example.com",
		PasswordHash: "x",
		Role:         models.RoleAdmin,
	}
	other := &models.User{
		Username:     "client2",
		Email:        "client2@example.com",
		PasswordHash: "x",
		Role:         models.RoleClient,
	}
	for _, u := range []*models.User{admin, other} {
		if err := conn.Create(u).Error; err != nil {
			t.Fatalf("creating user: %v", err)
		}
	}

	date := nextOn(models.Wednesday)
	first := &models.Booking{
		ClientID:    fx.client.ID,
		ScheduleID:  fx.schedule.ID,
		BookingDate: date,
		BookingTime: "10:00",
		Status:      models.BookingPending,
	}
	second := &models.Booking{
		ClientID:    other.ID,
		ScheduleID:  fx.schedule.ID,
		BookingDate: date,
		BookingTime: "10:00",
		Status:      models.BookingPending,
	}
	for _, b := range []*models.Booking{first, second} {
		if err := conn.Create(b).Error; err != nil {
			t.Fatalf("creating booking: %v", err)
		}
	}
	auth := bearerToken(t, admin.ID)

	rec := doJSON(t, router, http.MethodPatch, fmt.Sprintf("/bookings/%d", first.ID),
		auth, map[string]string{"status": "confirmed"})
	if rec.Code != http.StatusOK {
		t.Fatalf("first confirm: status = %d, body %s", rec.Code, rec.Body.String())
	}

	// The second pending booking on the same slot instance cannot also be
	// confirmed; the conflict is the caller's problem, not a server fault.
	rec = doJSON(t, router, http.MethodPatch, fmt.Sprintf("/bookings/%d", second.ID),
		auth, map[string]string{"status": "confirmed"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("second confirm: status = %d, want 400, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Errors map[string]string `json:"errors"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if resp.Errors["schedule_id"] == "" {
		t.Errorf("expected a slot conflict on schedule_id, got %v", resp.Errors)
	}

	// Cancelling the loser still works afterwards.
	rec = doJSON(t, router, http.MethodPatch, fmt.Sprintf("/bookings/%d", second.ID),
		auth, map[string]string{"status": "cancelled"})
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel loser: status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestBookingListPageSize(t *testing.T) {
	t.Setenv("SECRET_KEY", "test-secret")
	conn := testDB(t)
	fx := seed(t, conn)
	router := bookingRouter(conn)

	date := nextOn(models.Wednesday)
	for _, clock := range []string{"10:00", "11:00"} {
		b := &models.Booking{
			ClientID:    fx.client.ID,
			ScheduleID:  fx.schedule.ID,
			BookingDate: date,
			BookingTime: clock,
			Status:      models.BookingPending,
		}
		if err := conn.Create(b).Error; err != nil {
			t.Fatalf("creating booking: %v", err)
		}
	}

	rec := doJSON(t, router, http.MethodGet, "/bookings?page_size=1", bearerToken(t, fx.client.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status = %d", rec.Code)
	}

	var list struct {
		Bookings   []models.Booking `json:"bookings"`
		Total      int64            `json:"total"`
		PageSize   int              `json:"page_size"`
		TotalPages int64            `json:"total_pages"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decoding list: %v", err)
	}
	if len(list.Bookings) != 1 {
		t.Errorf("got %d bookings, want 1", len(list.Bookings))
	}
	if list.Total != 2 || list.PageSize != 1 || list.TotalPages != 2 {
		t.Errorf("total = %d, page_size = %d, total_pages = %d, want 2/1/2",
			list.Total, list.PageSize, list.TotalPages)
	}

	// Out-of-range values fall back to the default.
	rec = doJSON(t, router, http.MethodGet, "/bookings?page_size=0", bearerToken(t, fx.client.ID), nil)
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decoding list: %v", err)
	}
	if list.PageSize != 100 {
		t.Errorf("page_size = %d, want default 100", list.PageSize)
	}
}

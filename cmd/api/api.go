package api

import (
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fitbook/fitbook-server/service/booking"
	"github.com/fitbook/fitbook-server/service/club"
	"github.com/fitbook/fitbook-server/service/schedule"
	"github.com/fitbook/fitbook-server/service/trainer"
	"github.com/fitbook/fitbook-server/service/user"
)

type APIServer struct {
	address string
	db      *gorm.DB
	logger  *zap.Logger
}

func NewAPIServer(address string, db *gorm.DB, logger *zap.Logger) *APIServer {
	return &APIServer{
		address: address,
		db:      db,
		logger:  logger,
	}
}

func (s *APIServer) Run() error {
	router := mux.NewRouter()
	router.Use(RequestIDMiddleware, RequestLogMiddleware(s.logger))

	subrouter := router.PathPrefix("/api/v1").Subrouter()

	userHandler := user.NewHandler(s.db, s.logger)
	userHandler.RegisterRoutes(subrouter)

	clubHandler := club.NewClubHandler(s.db, s.logger)
	clubHandler.RegisterRoutes(subrouter)

	trainerHandler := trainer.NewTrainerHandler(s.db, s.logger)
	trainerHandler.RegisterRoutes(subrouter)

	scheduleHandler := schedule.NewScheduleHandler(s.db, s.logger)
	scheduleHandler.RegisterRoutes(subrouter)

	bookingHandler := booking.NewBookingHandler(s.db, s.logger)
	bookingHandler.RegisterRoutes(subrouter)

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)

	s.logger.Info("server running", zap.String("address", s.address))
	return http.ListenAndServe(s.address, cors(router))
}
